package types

import (
	"fmt"
	"strings"
)

// AuthType identifies the active AuthConfig variant.
type AuthType string

// Supported authentication variants. The values double as the persisted "type" tag.
const (
	AuthAnonymous AuthType = "Anonymous"
	AuthBasic     AuthType = "BasicAuth"
	AuthBearer    AuthType = "BearerToken"
	AuthTLSCert   AuthType = "TlsCert"
)

// AuthConfig holds exactly one authentication variant, selected by Type.
//
// Password and Token carry plaintext only in memory. EncryptedPassword and
// EncryptedToken are the only forms written to storage; at any serialization
// boundary at most one of each plaintext/ciphertext pair is non-empty.
type AuthConfig struct {
	Type              AuthType `json:"type"`
	Username          string   `json:"username,omitempty"`
	Password          string   `json:"password,omitempty"`
	EncryptedPassword string   `json:"encrypted_password,omitempty"`
	Token             string   `json:"token,omitempty"`
	EncryptedToken    string   `json:"encrypted_token,omitempty"`
	CertPath          string   `json:"cert_path,omitempty"`
	KeyPath           string   `json:"key_path,omitempty"`
}

// Anonymous returns an AuthConfig that sends no credentials.
func Anonymous() AuthConfig {
	return AuthConfig{Type: AuthAnonymous}
}

// BasicAuth returns an AuthConfig for HTTP Basic authentication.
func BasicAuth(username, password string) AuthConfig {
	return AuthConfig{Type: AuthBasic, Username: username, Password: password}
}

// BearerToken returns an AuthConfig that presents a pre-issued bearer token.
func BearerToken(token string) AuthConfig {
	return AuthConfig{Type: AuthBearer, Token: token}
}

// TLSCert returns an AuthConfig that presents a client certificate at the transport layer.
func TLSCert(certPath, keyPath string) AuthConfig {
	return AuthConfig{Type: AuthTLSCert, CertPath: certPath, KeyPath: keyPath}
}

// Kind returns the active variant, treating an empty tag as anonymous.
func (a AuthConfig) Kind() AuthType {
	if a.Type == "" {
		return AuthAnonymous
	}

	return a.Type
}

// HasSecret reports whether the variant carries secret material.
func (a AuthConfig) HasSecret() bool {
	switch a.Kind() {
	case AuthBasic, AuthBearer:
		return true
	default:
		return false
	}
}

// Describe returns the credential-free form used in exports:
// "anonymous", "basic:<username>", "bearer" or "tls".
func (a AuthConfig) Describe() string {
	switch a.Kind() {
	case AuthBasic:
		return "basic:" + a.Username
	case AuthBearer:
		return "bearer"
	case AuthTLSCert:
		return "tls"
	default:
		return "anonymous"
	}
}

// String implements fmt.Stringer without exposing secrets.
func (a AuthConfig) String() string {
	return fmt.Sprintf("AuthConfig(%s)", a.Describe())
}

// ParseAuthDescription rebuilds an AuthConfig skeleton from Describe output.
// Secrets and certificate paths are left empty for the operator to re-enter.
// Unknown descriptions fall back to anonymous.
func ParseAuthDescription(description string) AuthConfig {
	if username, ok := strings.CutPrefix(description, "basic:"); ok {
		return AuthConfig{Type: AuthBasic, Username: username}
	}

	switch description {
	case "bearer":
		return AuthConfig{Type: AuthBearer}
	case "tls":
		return AuthConfig{Type: AuthTLSCert}
	default:
		return Anonymous()
	}
}
