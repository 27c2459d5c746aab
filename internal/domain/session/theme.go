package session

import (
	"fmt"
	"strings"
)

// Theme is the persisted appearance flag.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark" in any case.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
	}
}

// Toggle flips light and dark.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Resolve picks the stored theme when one was saved, otherwise follows the
// platform preference.
func Resolve(stored string, prefersDark bool) Theme {
	if t, err := ParseTheme(stored); err == nil {
		return t
	}
	if prefersDark {
		return ThemeDark
	}
	return ThemeLight
}
