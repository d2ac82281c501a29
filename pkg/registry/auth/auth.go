// Package auth provides functionality for authenticating with container registries.
// It parses WWW-Authenticate challenges and builds Authorization header values
// from a stored AuthConfig.
package auth

import (
	"encoding/base64"
	"strings"

	"github.com/nicholas-fedor/regman/pkg/types"
)

// Authorization scheme prefixes.
const (
	basicPrefix  = "Basic "
	bearerPrefix = "Bearer "
)

// AuthorizationHeader returns the Authorization header value for auth.
// Anonymous and TlsCert configurations need no header; client certificates
// are presented by the transport.
//
// An empty basic password is valid and still produces a header. Bearer tokens
// are sent verbatim without validation or refresh.
func AuthorizationHeader(auth types.AuthConfig) (string, bool) {
	switch auth.Kind() {
	case types.AuthBasic:
		return basicPrefix + base64.StdEncoding.EncodeToString([]byte(auth.Username+":"+auth.Password)), true
	case types.AuthBearer:
		return bearerPrefix + auth.Token, true
	default:
		return "", false
	}
}

// DecodeBasicAuth recovers the username and password from a Basic header.
// The credentials are split on the first colon, so passwords may contain colons.
func DecodeBasicAuth(header string) (string, string, bool) {
	encoded, ok := strings.CutPrefix(header, basicPrefix)
	if !ok {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}

	return username, password, true
}

// MaskAuthorization replaces the credentials of an Authorization value
// so it can be logged or displayed.
func MaskAuthorization(value string) string {
	switch {
	case strings.HasPrefix(value, basicPrefix):
		return basicPrefix + "***"
	case strings.HasPrefix(value, bearerPrefix):
		return bearerPrefix + "***"
	case value == "":
		return ""
	default:
		return "***"
	}
}
