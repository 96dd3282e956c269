package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// "Item adicionado 5 de março de 2023"
var addedDateExpr = regexp.MustCompile(`(\d{1,2})\s+de\s+([\p{L}\d]+)\s+de\s+(\d{4})`)

// MonthTable maps month names of one locale to month numbers.
type MonthTable struct {
	Tag   language.Tag
	Names map[string]int
}

var monthTables = map[language.Tag]MonthTable{
	language.BrazilianPortuguese: {
		Tag: language.BrazilianPortuguese,
		Names: map[string]int{
			"janeiro":   1,
			"fevereiro": 2,
			"março":     3,
			"abril":     4,
			"maio":      5,
			"junho":     6,
			"julho":     7,
			"agosto":    8,
			"setembro":  9,
			"outubro":   10,
			"novembro":  11,
			"dezembro":  12,
		},
	},
	language.English: {
		Tag: language.English,
		Names: map[string]int{
			"january":   1,
			"february":  2,
			"march":     3,
			"april":     4,
			"may":       5,
			"june":      6,
			"july":      7,
			"august":    8,
			"september": 9,
			"october":   10,
			"november":  11,
			"december":  12,
		},
	},
}

// MonthTableFor returns the built-in table for a locale tag such as "pt-BR" or "en".
func MonthTableFor(tag string) (MonthTable, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return MonthTable{}, fmt.Errorf("parse locale %q: %w", tag, err)
	}
	if table, ok := monthTables[parsed]; ok {
		return table, nil
	}
	base, _ := parsed.Base()
	for known, table := range monthTables {
		if knownBase, _ := known.Base(); knownBase == base {
			return table, nil
		}
	}
	return MonthTable{}, fmt.Errorf("no month table for locale %q", tag)
}

// Lookup resolves a month name, folding case with the table's own locale rules.
func (m MonthTable) Lookup(name string) (int, bool) {
	key := cases.Lower(m.Tag).String(strings.TrimSpace(name))
	month, ok := m.Names[key]
	return month, ok
}

// NormalizeDate turns "<label> <day> de <month> de <year>" into "day/month/year".
// The day and year are kept as written; the month name is resolved through table.
func NormalizeDate(phrase string, table MonthTable) (string, error) {
	parts := addedDateExpr.FindStringSubmatch(phrase)
	if parts == nil {
		return "", &DateParseError{Phrase: phrase, Reason: "unexpected format"}
	}

	// fold left to right: (day, month) first, then append the year
	acc := parts[1]
	for i, part := range parts[2:] {
		if i == 0 {
			month, err := resolveMonth(part, table)
			if err != nil {
				return "", &DateParseError{Phrase: phrase, Reason: err.Error()}
			}
			acc = acc + "/" + strconv.Itoa(month)
			continue
		}
		acc = acc + "/" + part
	}
	return acc, nil
}

func resolveMonth(token string, table MonthTable) (int, error) {
	if n, err := strconv.Atoi(token); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range", n)
		}
		return n, nil
	}
	month, ok := table.Lookup(token)
	if !ok {
		return 0, fmt.Errorf("unknown month %q", token)
	}
	return month, nil
}
