package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ToNumber coerces a cell to float64. Values that cannot be read as a finite
// number (blank, nil, text, NaN, Inf) yield ok=false.
func ToNumber(v any) (f float64, ok bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case string:
		var err error
		f, err = parseNumber(x)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Number is ToNumber with the failure case mapped to 0.
func Number(v any) float64 {
	f, _ := ToNumber(v)
	return f
}

// FormatNumber renders f with the shortest representation that parses back
// to the same value.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var errNotNumber = errors.New("not a number")

// parseNumber accepts plain decimals plus the spreadsheet-ish variants users
// type: "1,234.5" and "1.234,5" (the later separator is the decimal point),
// "1,234" and "1,234,567" (groups of three after a comma are thousands) and
// "12,5" (a lone comma not followed by a thousands group is a decimal comma).
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		whole, frac, sep := s[:dot], s[dot+1:], ","
		if comma > dot {
			whole, frac, sep = s[:comma], s[comma+1:], "."
		}
		digits, ok := ungroup(whole, sep)
		if !ok || !allDigits(frac) {
			return 0, errNotNumber
		}
		s = digits + "." + frac
	case comma >= 0:
		if digits, ok := ungroup(s, ","); ok {
			s = digits
		} else if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		if digits, ok := ungroup(s, "."); ok {
			s = digits
		}
	}
	return strconv.ParseFloat(s, 64)
}

// ungroup strips sep from an integer written in groups of three, e.g.
// "-1,234,567". A string without sep must be plain digits.
func ungroup(s, sep string) (string, bool) {
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	groups := strings.Split(s, sep)
	if len(groups[0]) == 0 || !allDigits(groups[0]) {
		return "", false
	}
	if len(groups) > 1 && len(groups[0]) > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return "", false
		}
	}
	return sign + strings.Join(groups, ""), true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseCell turns user-entered text into a cell value the way a spreadsheet
// would: blank becomes nil, plain finite decimals become float64 and anything
// else stays a string.
func ParseCell(s string) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// IsTextColumn reports whether a column holds labels that must never be
// coerced to numbers.
func IsTextColumn(column string) bool {
	switch strings.TrimSpace(column) {
	case ColCategory, ColMetric:
		return true
	}
	return false
}

// ParseColumnCell is ParseCell for a cell under the given header: label
// columns keep their text verbatim (trimmed), so "007" stays "007".
func ParseColumnCell(column, s string) any {
	if !IsTextColumn(column) {
		return ParseCell(s)
	}
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return nil
}
