package auth

import "strings"

// ChallengeHeader is the HTTP Header containing challenge instructions.
const ChallengeHeader = "WWW-Authenticate"

// Challenge is one parsed WWW-Authenticate header instance.
// Params keeps every parameter, including ones regman does not interpret.
type Challenge struct {
	Scheme string            `json:"scheme"`
	Params map[string]string `json:"params,omitempty"`
}

// ParseChallenge parses a WWW-Authenticate header value such as
//
//	Bearer realm="https://auth.docker.io/token",service="registry.docker.io",scope="repository:library/alpine:pull"
//
// It returns false only for empty or whitespace-only input. Pairs without "="
// are skipped and a repeated key keeps its last value.
func ParseChallenge(header string) (*Challenge, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, false
	}

	scheme, rest, _ := strings.Cut(header, " ")

	return &Challenge{
		Scheme: scheme,
		Params: parseParams(strings.TrimSpace(rest)),
	}, true
}

// parseParams consumes comma separated key=value pairs.
func parseParams(rest string) map[string]string {
	params := make(map[string]string)

	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		comma := strings.IndexByte(rest, ',')

		// No "=" before the next separator: skip the malformed pair.
		if eq < 0 || (comma >= 0 && comma < eq) {
			if comma < 0 {
				break
			}

			rest = trimSeparator(rest[comma:])

			continue
		}

		key := strings.TrimSpace(rest[:eq])
		rest = strings.TrimLeft(rest[eq+1:], " \t")

		var value string
		if strings.HasPrefix(rest, `"`) {
			value, rest = readQuoted(rest[1:])
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				end = len(rest)
			}

			value = strings.TrimSpace(rest[:end])
			rest = rest[end:]
		}

		if key != "" {
			params[key] = value
		}

		rest = trimSeparator(rest)
	}

	return params
}

// readQuoted reads a quoted-string body up to the closing quote, honouring
// backslash escapes. An unterminated string runs to the end of input.
func readQuoted(s string) (string, string) {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		case c == '"':
			rest := s[i+1:]
			// Drop anything between the closing quote and the next separator.
			if end := strings.IndexByte(rest, ','); end >= 0 {
				rest = rest[end:]
			} else {
				rest = ""
			}

			return b.String(), rest
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), ""
}

func trimSeparator(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), ","))
}

// Get returns a parameter value and whether it was present.
func (c *Challenge) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}

	v, ok := c.Params[key]

	return v, ok
}

// Realm returns the realm parameter, or an empty string when absent.
func (c *Challenge) Realm() string { return c.param("realm") }

// Service returns the service parameter, used by bearer token endpoints.
func (c *Challenge) Service() string { return c.param("service") }

// Scope returns the scope parameter, used by bearer token endpoints.
func (c *Challenge) Scope() string { return c.param("scope") }

func (c *Challenge) param(key string) string {
	v, _ := c.Get(key)

	return v
}

// IsBearer reports whether the challenge uses the Bearer scheme.
func (c *Challenge) IsBearer() bool {
	return c != nil && strings.EqualFold(c.Scheme, "bearer")
}

// IsBasic reports whether the challenge uses the Basic scheme.
func (c *Challenge) IsBasic() bool {
	return c != nil && strings.EqualFold(c.Scheme, "basic")
}
