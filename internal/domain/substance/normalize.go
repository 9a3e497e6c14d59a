package substance

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeID trims s and strips the ".0" suffix that spreadsheet exports add
// to integer ids ("42.0" → "42"). Ids that are not purely numeric keep their
// suffix, so "1.0.0" and "7-1.0" are left alone.
func NormalizeID(s string) string {
	s = strings.TrimSpace(s)
	head, ok := strings.CutSuffix(s, ".0")
	if !ok || head == "" {
		return s
	}
	for _, r := range head {
		if r < '0' || r > '9' {
			return s
		}
	}
	return head
}

// NormalizeText trims s and composes it to Unicode NFC so that visually equal
// strings compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Fold returns the comparison key for case-insensitive equality.
func Fold(s string) string {
	return strings.ToLower(NormalizeText(s))
}

// IsBlank reports whether s is empty after trimming.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
