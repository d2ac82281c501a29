// Package helpers provides utility functions for registry-related operations in regman.
// It includes methods for resolving registry hosts, reading pagination links,
// and validating repository names, references and digests.
package helpers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"
)

// Domains for Docker Hub, the default registry.
const (
	DefaultRegistryDomain = "docker.io"
	DefaultRegistryHost   = "index.docker.io"
)

// Errors for argument validation.
var (
	errEmptyRegistryURL  = errors.New("empty registry URL")
	errInvalidRepository = errors.New("invalid repository name")
	errInvalidReference  = errors.New("invalid tag or digest")
	errInvalidDigest     = errors.New("invalid digest")
)

// GetRegistryAddress extracts the registry host from a registry URL.
// A bare host is accepted as well as a URL with scheme. Docker Hub's default domain
// is mapped to its canonical host address.
func GetRegistryAddress(registryURL string) (string, error) {
	if strings.TrimSpace(registryURL) == "" {
		return "", errEmptyRegistryURL
	}

	raw := registryURL
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse registry URL: %w", err)
	}

	address := parsed.Host
	if address == "" {
		return "", fmt.Errorf("%w: %q", errEmptyRegistryURL, registryURL)
	}

	if address == DefaultRegistryDomain {
		address = DefaultRegistryHost
	}

	return address, nil
}

// ParseLinkHeader extracts the continuation query from a pagination Link header
// such as `</v2/_catalog?n=50&last=foo>; rel="next"`, returning "n=50&last=foo".
// Both rel="next" and rel=next are accepted.
func ParseLinkHeader(header string) (string, bool) {
	for part := range strings.SplitSeq(header, ",") {
		if !strings.Contains(part, `rel="next"`) && !strings.Contains(part, "rel=next") {
			continue
		}

		target, _, _ := strings.Cut(part, ";")
		target = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(target), "<"), ">")

		_, query, found := strings.Cut(target, "?")

		return query, found
	}

	return "", false
}

// ValidateRepository checks that repo is a valid repository path such as "library/alpine".
func ValidateRepository(repo string) error {
	if _, err := reference.WithName(repo); err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidRepository, repo, err)
	}

	return nil
}

// ValidateReference checks that ref is either a tag or a digest.
func ValidateReference(repo, ref string) error {
	named, err := reference.WithName(repo)
	if err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidRepository, repo, err)
	}

	if _, err := digest.Parse(ref); err == nil {
		return nil
	}

	if _, err := reference.WithTag(named, ref); err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidReference, ref, err)
	}

	return nil
}

// ValidateDigest checks that dgst is a well-formed "algorithm:hex" digest.
func ValidateDigest(dgst string) error {
	if _, err := digest.Parse(dgst); err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidDigest, dgst, err)
	}

	return nil
}

// NormalizeDigest standardizes a digest string for consistent comparison.
// It trims common prefixes (e.g., "sha256:") to return the raw digest value,
// ensuring compatibility across different registry formats.
func NormalizeDigest(digest string) string {
	prefixes := []string{"sha256:"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(digest, prefix) {
			return strings.TrimPrefix(digest, prefix)
		}
	}

	return digest
}

// ShortDigest returns the first twelve hex characters of a digest, for display.
func ShortDigest(dgst string) string {
	hex := NormalizeDigest(dgst)
	if len(hex) > 12 {
		return hex[:12]
	}

	return hex
}
