package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase renders catalog names for display: "fresh FRUITS" -> "Fresh Fruits".
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
