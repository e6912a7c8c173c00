package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Canonicalizer maps entity names to the natural key used for deduplication.
// Every lookup and upsert of a canonical entity goes through Key, so that
// "Python", "python " and "PYTHON" address the same node.
//
// A Canonicalizer is safe for concurrent use once constructed.
type Canonicalizer struct {
	aliases map[string]string
}

// NewCanonicalizer builds a Canonicalizer. Alias keys and values are
// themselves normalized, so {"Golang": "Go"} maps "golang" to "go".
func NewCanonicalizer(aliases map[string]string) *Canonicalizer {
	c := &Canonicalizer{aliases: make(map[string]string, len(aliases))}
	for from, to := range aliases {
		f, t := Normalize(from), Normalize(to)
		if f == "" || t == "" || f == t {
			continue
		}
		c.aliases[f] = t
	}
	return c
}

// Key returns the canonical key of name, or "" when name is blank.
func (c *Canonicalizer) Key(name string) string {
	key := Normalize(name)
	if c == nil {
		return key
	}
	if alias, ok := c.aliases[key]; ok {
		return alias
	}
	return key
}

// Normalize applies NFKC, drops control characters, collapses runs of
// whitespace into a single space, trims, and folds case.
func Normalize(name string) string {
	s := norm.NFKC.String(name)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}

	return cases.Fold().String(b.String())
}

// DisplayName cleans a name for display without changing its case.
func DisplayName(name string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(name)), " ")
}
