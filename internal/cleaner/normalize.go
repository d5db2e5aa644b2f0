package cleaner

import (
	"regexp"
	"strconv"
	"strings"

	"integralq/pkg/contracts/domain"
)

// Transform names the normalization that fired for a cell.
type Transform int

const (
	TransformNone Transform = iota
	TransformNull
	TransformNegative
	TransformCurrency
	TransformPercent
	TransformThousands
	TransformNumber
)

var (
	currencyPattern    = regexp.MustCompile(`^(-?)\s*[$€£¥]\s*(-?)\s*(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?$`)
	parenPattern       = regexp.MustCompile(`^\(\s*[$€£¥]?\s*(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?\s*\)$`)
	percentPattern     = regexp.MustCompile(`^(-?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)\s*%$`)
	thousandsPattern   = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	plainNumberPattern = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?$`)
)

// IsNullToken reports whether s (already trimmed) denotes a missing value.
func IsNullToken(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "n/a":
		return true
	}
	return false
}

// NormalizeCell applies the per-cell rules to a trimmed string: null tokens,
// parenthesized negatives, currency, percentages, thousands separators and
// plain numbers. Non-matching strings are returned unchanged.
func NormalizeCell(s string) (domain.Value, Transform) {
	if IsNullToken(s) {
		return domain.Null(), TransformNull
	}

	if m := parenPattern.FindStringSubmatch(s); m != nil {
		if f, ok := parseDigits(m[1] + m[2]); ok {
			return domain.Num(-f), TransformNegative
		}
	}

	if m := currencyPattern.FindStringSubmatch(s); m != nil {
		if f, ok := parseDigits(m[3] + m[4]); ok {
			if m[1] == "-" || m[2] == "-" {
				f = -f
			}
			return domain.Num(f), TransformCurrency
		}
	}

	if m := percentPattern.FindStringSubmatch(s); m != nil {
		if f, ok := parseDigits(m[1]); ok {
			return domain.Num(f / 100), TransformPercent
		}
	}

	if thousandsPattern.MatchString(s) {
		if f, ok := parseDigits(s); ok {
			return domain.Num(f), TransformThousands
		}
	}

	if plainNumberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return domain.Num(f), TransformNumber
		}
	}

	return domain.Str(s), TransformNone
}

// TypedCell converts parser text into a Value with no logging side effects:
// empty becomes null, plain numbers become numbers, true/false become bools.
func TypedCell(s string) domain.Value {
	if s == "" {
		return domain.Null()
	}
	if plainNumberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return domain.Num(f)
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return domain.Bool(true)
	case "false":
		return domain.Bool(false)
	}
	return domain.Str(s)
}

func parseDigits(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return f, err == nil
}
