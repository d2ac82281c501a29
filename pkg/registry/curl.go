package registry

import (
	"net/http"
	"slices"
	"strings"

	"github.com/nicholas-fedor/regman/pkg/registry/auth"
)

// CurlCommand renders an equivalent curl invocation for debugging.
// Authorization values are masked and header names are sorted.
func CurlCommand(method, url string, header http.Header) string {
	parts := []string{"curl"}

	if method != "" && method != http.MethodGet {
		parts = append(parts, "-X", method)
	}

	keys := make([]string, 0, len(header))
	for key := range header {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		for _, value := range header[key] {
			if strings.EqualFold(key, "Authorization") {
				value = auth.MaskAuthorization(value)
			}

			parts = append(parts, "-H", shellQuote(key+": "+value))
		}
	}

	parts = append(parts, shellQuote(url))

	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
