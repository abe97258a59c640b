package inspector

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// similarity is 1 - distance/maxLen over normalized identifiers.
func similarity(a, b string) float64 {
	na, nb := normalizeIdent(a), normalizeIdent(b)
	maxLen := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(na, nb))/float64(maxLen)
}

// normalizeIdent lower-cases s and strips separators, so "Phone Number",
// "phone_number" and "phone-number" compare equal.
func normalizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == '_' || r == '-' || r == '.' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
