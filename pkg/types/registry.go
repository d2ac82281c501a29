package types

import (
	"strings"

	"github.com/google/uuid"
)

// ConnectionState enumerates the reachability states of a registry.
type ConnectionState string

// Connection states reported by a ping.
const (
	StateUnknown      ConnectionState = "Unknown"
	StateConnected    ConnectionState = "Connected"
	StateDisconnected ConnectionState = "Disconnected"
	StateError        ConnectionState = "Error"
)

// ConnectionStatus is the last observed reachability of a registry.
// Message is only set for StateError.
type ConnectionStatus struct {
	State   ConnectionState `json:"state"`
	Message string          `json:"message,omitempty"`
}

// String returns the state, followed by the message for errors.
func (s ConnectionStatus) String() string {
	if s.State == "" {
		return string(StateUnknown)
	}

	if s.State == StateError && s.Message != "" {
		return string(s.State) + ": " + s.Message
	}

	return string(s.State)
}

// RegistryConfig is a named registry endpoint.
//
// ID is assigned once by NewRegistryConfig and never changes. Status is
// runtime-only and is excluded from persistence.
type RegistryConfig struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	URL    string           `json:"url"`
	Auth   AuthConfig       `json:"auth"`
	Status ConnectionStatus `json:"-"`
}

// NewRegistryConfig creates a registry configuration with a fresh identifier
// and a normalized URL.
func NewRegistryConfig(name, url string, auth AuthConfig) RegistryConfig {
	return RegistryConfig{
		ID:     uuid.NewString(),
		Name:   name,
		URL:    NormalizeURL(url),
		Auth:   auth,
		Status: ConnectionStatus{State: StateUnknown},
	}
}

// NormalizeURL strips a single trailing slash.
func NormalizeURL(url string) string {
	return strings.TrimSuffix(url, "/")
}
