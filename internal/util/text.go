package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	reDigits = regexp.MustCompile(`^\d+$`)
)

const utf8BOM = "\uFEFF"

// NormalizeHeader canonicalizes a CSV column name: BOM stripped, NFC,
// trimmed, upper-cased, whitespace runs collapsed to one space.
func NormalizeHeader(input string) string {
	s := strings.TrimPrefix(input, utf8BOM)
	s = norm.NFC.String(s)
	s = strings.ToUpper(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CollapseSpaces trims and collapses internal whitespace runs.
func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	return reDigits.MatchString(s)
}

func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// LeftPad pads s with zeros on the left up to width.
func LeftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
