// Package dataset holds helpers over CleanedDataset shared by the cleaner,
// chart factory and analyzers.
package dataset

import (
	"math"
	"strings"
	"unicode"

	"integralq/pkg/contracts/domain"
)

var identifierTokens = map[string]bool{
	"id": true, "code": true, "key": true, "pk": true,
	"fk": true, "ssn": true, "uuid": true, "guid": true,
}

// gluedSuffixes are identifier words that also appear run together with a
// qualifier (customerid, barcode, productkey).
var gluedSuffixes = []string{"code", "key", "uuid", "guid"}

// keyWords end in "key" without naming a key.
var keyWords = map[string]bool{
	"turkey": true, "whiskey": true, "hockey": true,
	"monkey": true, "jockey": true, "donkey": true,
}

// IsIdentifierColumn reports whether a header names a surrogate key rather
// than a measure. It matches whole tokens (employee_id, zip code) and glued
// suffixes on the last token (customerid, barcode, productkey, orderuuid);
// it does not match words that merely contain the letters, such as "paid"
// or "keyboard".
func IsIdentifierColumn(header string) bool {
	tokens := tokenize(header)
	for _, tok := range tokens {
		if identifierTokens[tok] {
			return true
		}
	}
	if len(tokens) == 0 {
		return false
	}
	last := tokens[len(tokens)-1]
	if len(last) >= 6 && strings.HasSuffix(last, "id") && !hasAnySuffix(last, "aid", "lid", "oid", "pid", "mid") {
		return true
	}
	for _, suf := range gluedSuffixes {
		if len(last) >= len(suf)+3 && strings.HasSuffix(last, suf) && !keyWords[last] {
			return true
		}
	}
	return false
}

// IsContactColumn reports phone, zip, postal, ssn and pin columns, which are
// numeric-looking but meaningless to correlate.
func IsContactColumn(header string) bool {
	for _, tok := range tokenize(header) {
		switch {
		case strings.Contains(tok, "phone"), strings.Contains(tok, "zip"), strings.Contains(tok, "postal"):
			return true
		case tok == "ssn", tok == "pin":
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func tokenize(header string) []string {
	return strings.FieldsFunc(strings.ToLower(header), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// MeaningfulNumeric returns numeric columns that are not identifiers. When
// every numeric column looks like an identifier, all numeric columns are
// returned instead so ID-heavy datasets still get charts.
func MeaningfulNumeric(ds *domain.CleanedDataset) []string {
	numeric := ds.ColumnsOfType(domain.ColumnNumeric)
	var out []string
	for _, h := range numeric {
		if !IsIdentifierColumn(h) {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return numeric
	}
	return out
}

// NumericVector returns column values as floats, NaN where the cell is not a number.
func NumericVector(ds *domain.CleanedDataset, header string) []float64 {
	out := make([]float64, len(ds.Rows))
	for i, r := range ds.Rows {
		if f, ok := r[header].Number(); ok {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Finite drops NaN entries.
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// DistinctCount counts distinct non-null rendered values of a column.
func DistinctCount(ds *domain.CleanedDataset, header string) int {
	seen := make(map[string]struct{})
	for _, r := range ds.Rows {
		v := r[header]
		if v.IsNull() {
			continue
		}
		seen[v.String()] = struct{}{}
	}
	return len(seen)
}

// Label renders a cell as a category label; null becomes "Unknown".
func Label(v domain.Value) string {
	if v.IsNull() {
		return "Unknown"
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return "Unknown"
	}
	return s
}

// Humanize turns a snake_case header into a title fragment.
func Humanize(header string) string {
	words := strings.FieldsFunc(header, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
