// Package placeholder finds and substitutes ${name} tokens in document text.
package placeholder

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// tokenRe matches ${name} where name is any run of non-} characters.
// An empty name (${}) matches too so callers can skip it explicitly.
var tokenRe = regexp.MustCompile(`\$\{([^}]*)\}`)

// DefaultFiller is the blank used when previewing a template.
const DefaultFiller = "____"

// MaxNameLength is the longest name, in characters, treated as a
// placeholder. Longer matches come from a stray "${" in running text and
// are left alone.
const MaxNameLength = 255

func isName(name string) bool {
	return name != "" && utf8.RuneCountInString(name) <= MaxNameLength
}

// Token returns the literal token text for name.
func Token(name string) string {
	return "${" + name + "}"
}

// Scan returns the distinct placeholder names in text in first-seen order.
// Tokens with an empty name or one longer than MaxNameLength are skipped.
func Scan(text string) []string {
	matches := tokenRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if !isName(name) || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Contains reports whether text holds at least one token.
func Contains(text string) bool {
	return strings.Contains(text, "${") && tokenRe.MatchString(text)
}

// Replace substitutes every token whose name is a key of subst with its value.
// Tokens without an entry are left as-is. Replacement is single-pass: values
// that themselves contain tokens are not expanded again.
func Replace(text string, subst map[string]string) string {
	if len(subst) == 0 || !strings.Contains(text, "${") {
		return text
	}
	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		name := tok[2 : len(tok)-1]
		if v, ok := subst[name]; ok {
			return v
		}
		return tok
	})
}

// Blank replaces every token Scan would report with filler.
func Blank(text, filler string) string {
	if !strings.Contains(text, "${") {
		return text
	}
	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		if !isName(tok[2 : len(tok)-1]) {
			return tok
		}
		return filler
	})
}

// BlankMap maps every name to filler.
func BlankMap(names []string, filler string) map[string]string {
	m := make(map[string]string, len(names))
	for _, n := range names {
		m[n] = filler
	}
	return m
}
