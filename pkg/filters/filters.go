// Package filters provides filtering and ordering of repository and tag names.
package filters

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// Filter reports whether a name is selected.
type Filter func(name string) bool

// NoFilter allows all names through.
func NoFilter(string) bool {
	return true
}

// FilterBySubstring selects names containing search, ignoring case.
// An empty search returns baseFilter unchanged.
//
// Parameters:
//   - search: Text to look for.
//   - baseFilter: Base filter to chain.
//
// Returns:
//   - Filter: Filter function combining the substring check with the base filter.
func FilterBySubstring(search string, baseFilter Filter) Filter {
	if search == "" {
		return baseFilter
	}

	needle := strings.ToLower(search)

	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), needle) && baseFilter(name)
	}
}

// FilterByPatterns selects names equal to one of patterns or fully matching
// one of them as a regular expression.
//
// Parameters:
//   - patterns: Names or regex patterns to match.
//   - baseFilter: Base filter to chain.
//
// Returns:
//   - Filter: Filter function combining the pattern check with the base filter.
func FilterByPatterns(patterns []string, baseFilter Filter) Filter {
	if len(patterns) == 0 {
		return baseFilter
	}

	matchers := compile(patterns)

	return func(name string) bool {
		if matchAny(name, patterns, matchers) {
			return baseFilter(name)
		}

		return false
	}
}

// FilterByExclusions rejects names equal to or fully matching one of excluded.
//
// Parameters:
//   - excluded: Names or regex patterns to reject.
//   - baseFilter: Base filter to chain.
//
// Returns:
//   - Filter: Filter function excluding names and applying the base filter.
func FilterByExclusions(excluded []string, baseFilter Filter) Filter {
	if len(excluded) == 0 {
		return baseFilter
	}

	matchers := compile(excluded)

	return func(name string) bool {
		if matchAny(name, excluded, matchers) {
			logrus.WithField("name", name).Debug("Name excluded")

			return false
		}

		return baseFilter(name)
	}
}

// BuildFilter constructs a composite filter and a description of it.
//
// Parameters:
//   - search: Case-insensitive substring, may be empty.
//   - patterns: Names or patterns to select, may be empty.
//   - excluded: Names or patterns to reject, may be empty.
//
// Returns:
//   - Filter: Composite filter function.
//   - string: Human-readable description of the filter.
func BuildFilter(search string, patterns, excluded []string) (Filter, string) {
	filter := NoFilter
	filter = FilterBySubstring(search, filter)
	filter = FilterByPatterns(patterns, filter)
	filter = FilterByExclusions(excluded, filter)

	var parts []string

	if search != "" {
		parts = append(parts, `containing "`+search+`"`)
	}

	if len(patterns) > 0 {
		parts = append(parts, `matching "`+strings.Join(patterns, `" or "`)+`"`)
	}

	if len(excluded) > 0 {
		parts = append(parts, `not matching "`+strings.Join(excluded, `" or "`)+`"`)
	}

	desc := "all names"
	if len(parts) > 0 {
		desc = "names " + strings.Join(parts, ", ")
	}

	logrus.WithField("filter_desc", desc).Debug("Filter built")

	return filter, desc
}

// Apply returns the names selected by filter, preserving order.
func Apply(names []string, filter Filter) []string {
	selected := make([]string, 0, len(names))

	for _, name := range names {
		if filter(name) {
			selected = append(selected, name)
		}
	}

	return selected
}

// FilterStrings returns the names containing search, ignoring case.
func FilterStrings(names []string, search string) []string {
	return Apply(names, FilterBySubstring(search, NoFilter))
}

// SortAlphabetically sorts names in place, ignoring case. Names that differ
// only in case keep their relative order.
func SortAlphabetically(names []string) {
	slices.SortStableFunc(names, compareFold)
}

// Sorted returns a case-insensitively sorted copy of names.
func Sorted(names []string) []string {
	sorted := slices.Clone(names)
	SortAlphabetically(sorted)

	return sorted
}

// IsSorted reports whether names are in case-insensitive order.
func IsSorted(names []string) bool {
	return slices.IsSortedFunc(names, compareFold)
}

func compareFold(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compile(patterns []string) []*regexp.Regexp {
	matchers := make([]*regexp.Regexp, len(patterns))

	for i, pattern := range patterns {
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			logrus.WithField("pattern", pattern).WithError(err).Debug("Treating pattern as a literal name")

			continue
		}

		matchers[i] = re
	}

	return matchers
}

func matchAny(name string, patterns []string, matchers []*regexp.Regexp) bool {
	for i, pattern := range patterns {
		if name == pattern {
			return true
		}

		if matchers[i] != nil && matchers[i].MatchString(name) {
			return true
		}
	}

	return false
}
