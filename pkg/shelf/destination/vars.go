package destination

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var tokenPattern = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

// maxComponentLen caps the length of a sanitized metadata value in runes.
const maxComponentLen = 100

// Vars is an insertion-ordered set of template variables.
type Vars struct {
	keys   []string
	values map[string]string
}

// NewVars returns an empty variable set.
func NewVars() *Vars {
	return &Vars{values: make(map[string]string)}
}

// Set stores value under key. Numbers are formatted with %v; an existing key
// keeps its position.
func (v *Vars) Set(key string, value any) {
	var s string
	switch val := value.(type) {
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if _, ok := v.values[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.values[key] = s
}

// SetDefault stores value only when key is not already set.
func (v *Vars) SetDefault(key string, value any) {
	if _, ok := v.values[key]; !ok {
		v.Set(key, value)
	}
}

// Get returns the value for key.
func (v *Vars) Get(key string) (string, bool) {
	s, ok := v.values[key]
	return s, ok
}

// Keys returns the keys in insertion order.
func (v *Vars) Keys() []string {
	return append([]string(nil), v.keys...)
}

// Len returns the number of variables.
func (v *Vars) Len() int { return len(v.keys) }

// Interpolate replaces every {key} token in tmpl. Tokens with no value are
// left as written.
func (v *Vars) Interpolate(tmpl string) string {
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := token[1 : len(token)-1]
		if s, ok := v.values[key]; ok {
			return s
		}
		if s, ok := v.values[strings.ToLower(key)]; ok {
			return s
		}
		return token
	})
}

// Sanitize makes free text safe to use as a single path component. It
// strips reserved and control characters, trims whitespace and trailing dots,
// and caps the length.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimRight(strings.TrimSpace(b.String()), ".")
	if runes := []rune(out); len(runes) > maxComponentLen {
		out = strings.TrimSpace(string(runes[:maxComponentLen]))
	}
	return out
}
