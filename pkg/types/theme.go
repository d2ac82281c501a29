package types

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownTheme is returned when a theme name is not recognized.
var ErrUnknownTheme = errors.New("unknown theme")

// Theme is the operator's display preference, persisted as "Light", "Dark" or "System".
type Theme string

// Supported themes.
const (
	ThemeLight  Theme = "Light"
	ThemeDark   Theme = "Dark"
	ThemeSystem Theme = "System"
)

// DefaultTheme is used when no preference has been stored.
const DefaultTheme = ThemeSystem

// ParseTheme resolves a theme name case-insensitively.
func ParseTheme(name string) (Theme, error) {
	theme := Theme(cases.Title(language.English).String(strings.TrimSpace(name)))

	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
		return theme, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, name)
	}
}
