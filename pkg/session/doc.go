// Package session tracks tag states and reporting during a batch tag deletion.
// It records per-tag progress in request order and produces the final tally of
// deleted and failed tags.
//
// Key components:
//   - State: Enum for tag states (e.g., Deleted, Failed).
//   - TagStatus: Tracks an individual tag's digest, state and error.
//   - Progress: Ordered tag statuses during a batch.
//   - Report: Deleted/failed counts with per-tag error messages.
//
// Usage example:
//
//	progress := session.NewProgress("library/alpine", []string{"3.19", "3.20"})
//	progress.MarkDeleted("3.19", digest)
//	progress.MarkFailed("3.20", "", err)
//	report := progress.Report()
//	fmt.Println(report) // library/alpine: 1 deleted, 1 failed
//
// The package uses go-multierror to aggregate per-tag failures and logrus for logging.
package session
