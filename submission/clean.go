// submission/clean.go
package submission

import (
	"strings"

	"golang.org/x/net/html"
)

// injectionTokens are removed from every value because rendered values end
// up in mail headers and bodies. Matching is case-sensitive.
var injectionTokens = []string{"content-type", "bcc:", "to:", "cc:", "href"}

// Clean strips markup tags and injection tokens from s. It repeats both
// steps until nothing changes, so Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	for {
		next := removeInjectionTokens(StripTags(s))
		if next == s {
			return s
		}
		s = next
	}
}

// StripTags removes HTML/XML tags, comments and doctypes, keeping text
// content byte for byte (entities are not decoded).
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}

func removeInjectionTokens(s string) string {
	for {
		before := s
		for _, tok := range injectionTokens {
			s = strings.ReplaceAll(s, tok, "")
		}
		if s == before {
			return s
		}
	}
}

// SanitizeEmail drops every character that cannot appear in an address:
// anything except ASCII letters, digits and !#$%&'*+-=?^_`{|}~@.[]
func SanitizeEmail(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("!#$%&'*+-=?^_`{|}~@.[]", r):
			return r
		}
		return -1
	}, s)
}
