// Package normalize converts free-text symptom and disease names into the stable
// keys used by the rule files, and keys back into display text.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Key lowercases text, trims surrounding whitespace and joins words with
// underscores.
func Key(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(text)), " ", "_")
}

// CompactKey is the CSV cell variant of Key: every space is removed instead of
// being turned into an underscore.
func CompactKey(cell string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(cell), " ", ""))
}

// Display turns a key into title-cased words. Display(Key(x)) is not x in
// general; case and punctuation are lost on the way in.
func Display(key string) string {
	return title(strings.ReplaceAll(key, "_", " "))
}

// Valid reports whether key can be carried by the rule grammar.
func Valid(key string) bool {
	return keyPattern.MatchString(key)
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// Keys normalizes every entry, dropping blanks and repeats while keeping order.
func Keys(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := Key(item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// SplitList splits a comma separated form value into trimmed, non-empty parts.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// title upper-cases a letter that follows a non-letter and lower-cases every
// other letter.
func title(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
