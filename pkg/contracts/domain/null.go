package domain

import (
	"encoding/json"
	"time"
)

// NullString is a string cell that distinguishes empty cells from present
// values. The zero value is null. Comparable, so it can be part of map keys.
type NullString struct {
	Value string
	Valid bool
}

// NullStringFrom returns a valid NullString holding v.
func NullStringFrom(v string) NullString {
	return NullString{Value: v, Valid: true}
}

// Or returns the held value, or fallback when null.
func (n NullString) Or(fallback string) string {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

// MarshalJSON renders null for empty cells and the bare string otherwise.
func (n NullString) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON accepts either null or a JSON string.
func (n *NullString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullString{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*n = NullStringFrom(s)
	return nil
}

// NullFloat is a numeric cell that distinguishes missing or unparsable
// values from real numbers. The zero value is null.
type NullFloat struct {
	Value float64
	Valid bool
}

// NullFloatFrom returns a valid NullFloat holding v.
func NullFloatFrom(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

// Or returns the held value, or fallback when null.
func (n NullFloat) Or(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

// MarshalJSON renders null for missing values and the bare number otherwise.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON accepts either null or a JSON number.
func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullFloat{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = NullFloatFrom(f)
	return nil
}

// NullDate is a calendar date with day granularity, or null. Unparsable
// source dates map to the null date, which never equals a valid one.
// Comparable, so it can be part of composite join keys.
type NullDate struct {
	Year  int
	Month time.Month
	Day   int
	Valid bool
}

// NullDateFrom returns a valid, normalized NullDate. Out-of-range components
// roll over the way time.Date rolls them.
func NullDateFrom(year int, month time.Month, day int) NullDate {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return NullDate{Year: t.Year(), Month: t.Month(), Day: t.Day(), Valid: true}
}

// Time returns the date at midnight UTC; the zero time when null.
func (n NullDate) Time() time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Date(n.Year, n.Month, n.Day, 0, 0, 0, 0, time.UTC)
}

// String formats the date as 2006-01-02, or "" when null.
func (n NullDate) String() string {
	if !n.Valid {
		return ""
	}
	return n.Time().Format("2006-01-02")
}

// MarshalJSON renders null or the ISO date string.
func (n NullDate) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.String())
}
