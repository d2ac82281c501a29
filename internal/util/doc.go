// Package util provides formatting and token helpers for regman commands.
//
// Key components:
//   - FormatSize: Renders byte counts as B, KB, MB or GB.
//   - FormatDuration: Renders durations as "1 hour, 2 minutes, 3 seconds".
//   - GenerateToken: Creates random 64-character API tokens.
//
// Usage example:
//
//	fmt.Println(util.FormatSize(manifest.TotalSize()))
//	fmt.Println(util.FormatDuration(time.Until(next)))
//	token := util.GenerateToken()
package util
