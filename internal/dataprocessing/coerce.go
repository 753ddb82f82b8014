package dataprocessing

import (
	"strconv"
	"strings"
	"time"

	"opsunify/pkg/contracts/domain"
)

// ParseNumber coerces a possibly locale-formatted cell to a number. It is
// the single coercion rule of the whole pipeline:
//
//   - a leading "R$" marker and surrounding whitespace are stripped;
//   - when both comma and period appear, the rightmost one is the decimal
//     separator (comma-rightmost is the Brazilian convention,
//     period-rightmost the US one);
//   - a lone comma is the decimal separator;
//   - anything unparsable coerces to null, never an error.
//
// The rightmost-separator rule is heuristic by nature; it is fixed here as
// the contract so every code path coerces identically.
func ParseNumber(cell string) domain.NullFloat {
	s := strings.TrimSpace(cell)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.NullFloat{}
	}

	comma := strings.LastIndex(s, ",")
	period := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && period >= 0:
		if comma > period {
			// Brazilian: periods group thousands, the comma is decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// US: commas group thousands, the period is decimal.
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.NullFloat{}
	}
	return domain.NullFloatFrom(v)
}

// dateLayouts are tried in order. Day-first is the desk convention; ISO is
// tolerated because re-exported spreadsheets sometimes carry it.
var dateLayouts = []string{
	"2/1/2006",
	"2/1/06",
	"2006-1-2",
	"2-1-2006",
	"2.1.2006",
}

// ParseDate normalizes a cell to calendar-day granularity using day-first
// parsing. Unparsable values map to the null date, which never matches any
// join key.
func ParseDate(cell string) domain.NullDate {
	s := strings.TrimSpace(cell)
	if s == "" {
		return domain.NullDate{}
	}
	// Spreadsheet date cells sometimes carry a time-of-day suffix.
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.NullDateFrom(t.Date())
		}
	}
	return domain.NullDate{}
}

// NormalizeAsset canonicalizes an asset symbol for join comparison: trimmed
// and upper-cased. Null stays null.
func NormalizeAsset(cell domain.NullString) domain.NullString {
	if !cell.Valid {
		return domain.NullString{}
	}
	return domain.NullStringFrom(strings.ToUpper(strings.TrimSpace(cell.Value)))
}

// AccountNumber coerces an account cell to its numeric join form.
// Non-numeric accounts coerce to null and therefore never match.
func AccountNumber(cell domain.NullString) domain.NullFloat {
	if !cell.Valid {
		return domain.NullFloat{}
	}
	return ParseNumber(cell.Value)
}
