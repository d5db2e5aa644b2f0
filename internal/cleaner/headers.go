package cleaner

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	headerPunct      = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	headerWhitespace = regexp.MustCompile(`\s+`)
	headerUnderscore = regexp.MustCompile(`_+`)
)

// foldAccents strips combining marks: "Café Número" -> "Cafe Numero".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// StandardizeHeader trims, folds accents, drops punctuation, collapses
// whitespace runs to a single underscore and lowercases.
func StandardizeHeader(h string) string {
	h = strings.TrimSpace(foldAccents(h))
	h = headerPunct.ReplaceAllString(h, " ")
	h = strings.TrimSpace(h)
	h = headerWhitespace.ReplaceAllString(h, "_")
	h = headerUnderscore.ReplaceAllString(h, "_")
	return strings.ToLower(strings.Trim(h, "_"))
}

// StandardizeHeaders standardizes every header and resolves collisions with
// numeric suffixes (name, name_2). Blank results become column_N. The
// returned map goes from original to standardized header.
func StandardizeHeaders(headers []string) ([]string, map[string]string, []string) {
	out := make([]string, len(headers))
	mapping := make(map[string]string, len(headers))
	used := make(map[string]bool, len(headers))
	var renames []string

	for i, h := range headers {
		base := StandardizeHeader(h)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		candidate := base
		for n := 2; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", base, n)
		}
		if candidate != base {
			renames = append(renames, fmt.Sprintf("%q -> %q", h, candidate))
		}
		used[candidate] = true
		out[i] = candidate
		mapping[h] = candidate
	}
	return out, mapping, renames
}
