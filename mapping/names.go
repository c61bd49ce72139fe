package mapping

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier turns an arbitrary source field name into an ASCII
// identifier: accents are stripped, runs of other characters become a
// single underscore. Case is preserved.
func NormalizeIdentifier(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				prevUnderscore = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "col"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// nameSet hands out unique output column names.
type nameSet map[string]bool

// claim returns name if free, otherwise the first free candidate among
// "<qualifier>_<name>" and "<name>_<n>".
func (s nameSet) claim(name, qualifier string) string {
	if !s[name] {
		s[name] = true
		return name
	}
	if qualifier != "" && qualifier != RootSegment {
		q := NormalizeIdentifier(qualifier) + "_" + name
		if !s[q] {
			s[q] = true
			return q
		}
	}
	for n := 2; ; n++ {
		c := name + "_" + strconv.Itoa(n)
		if !s[c] {
			s[c] = true
			return c
		}
	}
}
