// Package types defines the core data model shared across regman.
// It provides registry configurations, authentication variants, catalog and blob
// responses, and the persisted theme and cache settings.
//
// Key components:
//   - RegistryConfig: A named registry endpoint with its authentication settings.
//   - AuthConfig: Tagged authentication variant (anonymous, basic, bearer, TLS client cert).
//   - ConnectionStatus: Ephemeral reachability state, never persisted.
//   - CatalogResponse, TagsResponse, BlobInfo, TagInfo: Registry API results.
//   - Theme, CacheConfig: Persisted operator preferences.
//
// Usage example:
//
//	cfg := types.NewRegistryConfig("local", "http://localhost:5000/", types.BasicAuth("admin", "secret"))
//	fmt.Println(cfg.URL) // http://localhost:5000
//
// Secret material lives in AuthConfig only transiently in plaintext; the storage
// package replaces it with ciphertext before anything is written to disk.
package types
