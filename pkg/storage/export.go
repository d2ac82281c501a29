package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nicholas-fedor/regman/pkg/types"
)

// ErrInvalidExport is returned when import input is not an export document.
var ErrInvalidExport = errors.New("invalid JSON")

// ExportedRegistry is the secret-free form of a registry used for transfer.
type ExportedRegistry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	AuthType string `json:"auth_type"`
}

// ExportRegistries renders registries as an indented JSON array without any secret.
func ExportRegistries(registries []types.RegistryConfig) ([]byte, error) {
	exported := make([]ExportedRegistry, 0, len(registries))

	for _, registry := range registries {
		exported = append(exported, ExportedRegistry{
			ID:       registry.ID,
			Name:     registry.Name,
			URL:      registry.URL,
			AuthType: registry.Auth.Describe(),
		})
	}

	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return nil, newError(KindSerialization, "", err)
	}

	return data, nil
}

// ImportRegistries parses an export document. Secrets are left empty and must
// be supplied by the operator before the registries can authenticate.
func ImportRegistries(data []byte) ([]types.RegistryConfig, error) {
	var exported []ExportedRegistry
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}

	registries := make([]types.RegistryConfig, 0, len(exported))

	for _, entry := range exported {
		registries = append(registries, types.RegistryConfig{
			ID:   entry.ID,
			Name: entry.Name,
			URL:  entry.URL,
			Auth: types.ParseAuthDescription(entry.AuthType),
		})
	}

	return registries, nil
}

// colonSpace matches a colon followed by whitespace.
var colonSpace = regexp.MustCompile(`:\s+`)

// ContainsCredentials reports whether a JSON document looks like it carries a
// password, a token or a literal Authorization value.
// Whitespace after a colon is ignored, so indented documents match too.
func ContainsCredentials(document string) bool {
	lower := colonSpace.ReplaceAllString(strings.ToLower(document), ":")

	for _, marker := range []string{`"password"`, `"token"`, `:"bearer `, `:"basic `} {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}
