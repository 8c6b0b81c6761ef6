package rules

import (
	"regexp"
	"strings"
)

// GlobToRegexp translates a filename glob into an anchored, case-insensitive
// pattern. Only '*' (any run) and '?' (any single character) are special.
func GlobToRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
