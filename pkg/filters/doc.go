// Package filters provides filtering and ordering of repository and tag names.
//
// Key components:
//   - Filter Functions: Select names (e.g., FilterBySubstring, FilterByPatterns).
//   - BuildFilter: Combines filters into a single function.
//   - SortAlphabetically: Case-insensitive ordering.
//
// Usage example:
//
//	filter, desc := filters.BuildFilter("alp", nil, []string{`.*-rc\d+`})
//	repos = filters.Sorted(filters.Apply(repos, filter))
//	logrus.Info(desc)
package filters
