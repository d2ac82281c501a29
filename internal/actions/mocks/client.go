// Package mocks provides mock implementations for testing regman actions.
package mocks

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/nicholas-fedor/regman/pkg/registry"
	"github.com/nicholas-fedor/regman/pkg/registry/auth"
	"github.com/nicholas-fedor/regman/pkg/registry/manifest"
)

// MockClient is an in-memory registry used by action tests.
// Its behavior is configured through TestData.
type MockClient struct {
	mu       sync.Mutex
	TestData *TestData
}

// TestData holds the repositories and failure injections for a MockClient.
type TestData struct {
	Digests         map[string]string // "repo:tag" to digest; tags without an entry are missing.
	FailDelete      map[string]error  // Digest to error returned by DeleteManifest.
	FailManifest    map[string]error  // "repo:tag" to error returned by Manifest.
	Repositories    []string          // Catalog returned by Repositories.
	PingErr         error             // Error returned by Ping.
	PingChallenge   *auth.Challenge   // Challenge returned by Ping.
	RepositoriesErr error             // Error returned by Repositories.
	Requests        []string          // Log of "METHOD target" calls, in order.
	Deleted         []string          // Digests that were deleted.
}

// CreateMockClient constructs a MockClient with the given test data.
func CreateMockClient(data *TestData) *MockClient {
	if data.Digests == nil {
		data.Digests = map[string]string{}
	}

	return &MockClient{TestData: data}
}

// Manifest returns an empty V2 manifest and the configured digest for the tag.
func (client *MockClient) Manifest(_ context.Context, repo, reference string) (*manifest.Manifest, string, error) {
	client.mu.Lock()
	defer client.mu.Unlock()

	key := repo + ":" + reference
	client.TestData.Requests = append(client.TestData.Requests, "GET "+key)

	if err := client.TestData.FailManifest[key]; err != nil {
		return nil, "", err
	}

	digest, found := client.TestData.Digests[key]
	if !found {
		return nil, "", registry.FromStatus(http.StatusNotFound, fmt.Sprintf("Failed to get manifest for %s", key))
	}

	return &manifest.Manifest{Kind: manifest.KindV2, V2: &manifest.V2{SchemaVersion: 2}}, digest, nil
}

// DeleteManifest records the deletion unless a failure is configured for the digest.
func (client *MockClient) DeleteManifest(_ context.Context, repo, digest string) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	client.TestData.Requests = append(client.TestData.Requests, "DELETE "+repo+"@"+digest)

	if err := client.TestData.FailDelete[digest]; err != nil {
		return err
	}

	client.TestData.Deleted = append(client.TestData.Deleted, digest)

	return nil
}

// Ping returns the configured challenge and error.
func (client *MockClient) Ping(_ context.Context) (*auth.Challenge, error) {
	return client.TestData.PingChallenge, client.TestData.PingErr
}

// Repositories returns the configured catalog.
func (client *MockClient) Repositories(_ context.Context) ([]string, error) {
	return client.TestData.Repositories, client.TestData.RepositoriesErr
}
