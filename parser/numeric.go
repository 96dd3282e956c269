// Package parser normalises the text fragments pulled out of wishlist pages.
package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	starsExpr = regexp.MustCompile(`(\d[.,]\d)`)
	// anything that is not part of a pt-BR formatted number
	nonNumeric = regexp.MustCompile(`[^0-9.,-]`)
)

// ParseDecimal reads a pt-BR formatted amount such as "R$ 1.234,56".
// Dots are thousands separators and the comma is the decimal point.
func ParseDecimal(text string) (float64, error) {
	cleaned := nonNumeric.ReplaceAllString(text, "")
	cleaned = strings.Trim(cleaned, ".,")
	if cleaned == "" || cleaned == "-" {
		return 0, &NumericParseError{Input: text}
	}
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, &NumericParseError{Input: text, Err: err}
	}
	return value, nil
}

// ParseCount reads an integer written with thousands separators, e.g. "12.345".
func ParseCount(text string) (int, error) {
	cleaned := nonNumeric.ReplaceAllString(text, "")
	cleaned = strings.NewReplacer(".", "", ",", "").Replace(cleaned)
	if cleaned == "" {
		return 0, &NumericParseError{Input: text}
	}

	value, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, &NumericParseError{Input: text, Err: err}
	}
	return value, nil
}

// ReviewStars returns the leading one-decimal rating token of a longer label,
// e.g. "4,5 de 5 estrelas" becomes "4.5". The result is empty when no token is present.
func ReviewStars(text string) string {
	match := starsExpr.FindString(text)
	return strings.Replace(match, ",", ".", 1)
}
