// Package registry provides a client for the container registry /v2/ HTTP API.
// It lists catalogs and tags, fetches and deletes manifests, and inspects blobs.
//
// Key components:
//   - Client: Issues registry requests with the configured credentials.
//   - APIError: Typed failure carrying operation context and an errdefs class.
//   - auth: Challenge parsing and Authorization header construction.
//   - helpers: Link header pagination and argument validation.
//   - manifest: Decoding of Docker v2, OCI and Docker v1 manifests.
//
// Usage example:
//
//	client, err := registry.NewClient("https://registry.example.com", types.BasicAuth("admin", "secret"))
//	if err != nil {
//	    logrus.WithError(err).Fatal("Invalid registry")
//	}
//	tags, err := client.Tags(ctx, "library/alpine")
//	if errors.Is(err, registry.ErrUnauthorized) {
//	    logrus.Warn("Credentials rejected")
//	}
//
// The client never retries. Bearer token negotiation is not performed; the parsed
// WWW-Authenticate challenge is attached to Unauthorized errors instead.
package registry
