// Package api provides the HTTP server for regman's API endpoints.
// Every registered route requires a bearer token.
//
// Key components:
//   - API: Manages server setup and endpoint registration.
//   - RequireToken: Wraps HTTP handlers with token validation.
//   - WriteJSON, WriteError: JSON responses with errdefs-based status codes.
//
// Usage example:
//
//	api := api.New("secure-token", ":8080")
//	api.RegisterFunc("GET /v1/registries", listHandler)
//	if err := api.Start(ctx, true); err != nil {
//	    logrus.WithError(err).Error("API start failed")
//	}
package api
