package util

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders d as hours, minutes and seconds, omitting zero
// units, for example "1 hour, 2 minutes, 3 seconds". Durations under one
// second render as "0 seconds".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := int64(d / time.Hour)
	minutes := int64(d % time.Hour / time.Minute)
	seconds := int64(d % time.Minute / time.Second)

	parts := make([]string, 0, 3)
	parts = appendUnit(parts, hours, "hour")
	parts = appendUnit(parts, minutes, "minute")
	parts = appendUnit(parts, seconds, "second")

	if len(parts) == 0 {
		return "0 seconds"
	}

	return strings.Join(parts, ", ")
}

func appendUnit(parts []string, value int64, unit string) []string {
	switch {
	case value == 1:
		return append(parts, "1 "+unit)
	case value > 1:
		return append(parts, fmt.Sprintf("%d %ss", value, unit))
	default:
		return parts
	}
}
