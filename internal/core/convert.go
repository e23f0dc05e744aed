package core

// convert.go turns raw cell strings into typed values.
//
// The type-check validators and the transform stage share these functions,
// so any value the validator chain accepts is guaranteed to convert later.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// orderDateLayouts are tried in order. The "15" hour verb accepts one or two
// digits, so the first layout covers both "HH:mm" and "H:mm".
var orderDateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
}

// ErrInvalidValue is wrapped by every conversion failure.
var ErrInvalidValue = errors.New("invalid value")

// ParseOrderDate parses an order date in one of the accepted layouts.
// The result is in UTC.
func ParseOrderDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidValue, s)
}

// PriceScale is the number of decimal places kept for monetary amounts.
const PriceScale = 2

// ParseQuantity parses a base-10 integer with an optional sign. Values must
// fit in 32 bits, matching the quantity column.
func ParseQuantity(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: integer %q", ErrInvalidValue, s)
	}
	return int(n), nil
}

// ParseDecimal parses a monetary amount.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ParseDecimal(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: decimal %q", ErrInvalidValue, raw)
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	// Remove common currency symbols and thousands separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: decimal %q", ErrInvalidValue, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: decimal %q", ErrInvalidValue, raw)
	}
	return d, nil
}

// NormalizeKey is the case-insensitive lookup key for names and emails.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanCell removes common CSV artifacts from a header cell:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

// HeaderIndex maps column names (lowercase) to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching; the last duplicate wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[NormalizeKey(CleanCell(h))] = i
	}
	return idx
}
