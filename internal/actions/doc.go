// Package actions provides regman's multi-step registry operations.
//
// Key components:
//   - DeleteTags: Deletes a batch of tags one at a time and tallies the outcome.
//   - RefreshRegistries: Pings each configured registry and caches its catalog.
//
// Usage example:
//
//	report := actions.DeleteTags(ctx, client, "library/alpine", []string{"3.18", "3.19"}, nil)
//	if err := report.Err(); err != nil {
//	    logrus.WithError(err).Warn("Some tags were not deleted")
//	}
//
// The package integrates with the registry, session, cache and metrics packages,
// using logrus for logging operations and errors.
package actions
