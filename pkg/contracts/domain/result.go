package domain

import "time"

// ResultTable is the exportable outcome of a pipeline run: ordered column
// names plus one row per unified operation, in order of first appearance of
// each group key. Cells are strings (formatted/display columns), float64
// (numeric columns) or nil (null cells).
type ResultTable struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RowCount returns the number of data rows.
func (t *ResultTable) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *ResultTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// DistinctStrings returns the distinct non-empty string cells of the named
// column, in row order. Nil and non-string cells are skipped.
func (t *ResultTable) DistinctStrings(column string) []string {
	if t == nil {
		return nil
	}
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	seen := make(map[string]bool, len(t.Rows))
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx >= len(row) {
			continue
		}
		s, ok := row[idx].(string)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		values = append(values, s)
	}
	return values
}

// RunSummary is what the unify endpoint returns: identity and shape of a
// finished pipeline run plus where to fetch the exported result.
type RunSummary struct {
	ID          string    `json:"id"`
	Variant     Variant   `json:"variant"`
	LegsIn      int       `json:"legs_in"`
	RowsOut     int       `json:"rows_out"`
	Columns     []string  `json:"columns"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url"`
}
