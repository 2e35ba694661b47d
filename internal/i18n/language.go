// Package i18n resolves the analysis output language.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Default is used whenever a requested language is unknown.
const Default = "en"

var supported = []language.Tag{
	language.English,
	language.Polish,
	language.Ukrainian,
	language.German,
}

var matcher = language.NewMatcher(supported)

// Supported returns the codes of all output languages in display order.
func Supported() []string {
	codes := make([]string, len(supported))
	for i, tag := range supported {
		base, _ := tag.Base()
		codes[i] = base.String()
	}
	return codes
}

// IsSupported reports whether code names one of the output languages exactly.
func IsSupported(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, c := range Supported() {
		if c == code {
			return true
		}
	}
	return false
}

// Match maps a language code or BCP 47 tag (e.g. "pl-PL", "de_AT") to a
// supported code, falling back to English.
func Match(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return Default
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Default
	}
	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return Default
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// EnglishName returns the English display name used in model prompts.
// Unknown codes yield "English".
func EnglishName(code string) string {
	if !IsSupported(code) {
		return "English"
	}
	return display.English.Languages().Name(language.MustParse(code))
}

// NativeName returns the language name in the language itself, for pickers.
func NativeName(code string) string {
	if !IsSupported(code) {
		code = Default
	}
	tag := language.MustParse(code)
	name := display.Self.Name(tag)
	if name == "" {
		return EnglishName(code)
	}
	return name
}
