package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is one tabular input: a header row plus data rows, every cell
// trimmed. The empty cell "" stands for null throughout the pipeline.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string

	index map[string]int
}

// NewTable builds a table and its header index. When a header name repeats,
// the first occurrence wins.
func NewTable(name string, headers []string, rows [][]string) *Table {
	t := &Table{Name: name, Headers: headers, Rows: rows, index: make(map[string]int, len(headers))}
	for i, h := range headers {
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
	return t
}

// Column returns the position of the named column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns the cell of row under the named column, or "" when the column
// is absent or the row is short.
func (t *Table) Cell(row []string, name string) string {
	i, ok := t.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ReadOptions configures table reading.
type ReadOptions struct {
	// Delimiter is the CSV field delimiter. Zero means ';', the delimiter
	// the desk systems export with (decimals use the comma).
	Delimiter rune
	// Sheet selects the XLSX sheet by name. Empty means the first sheet.
	Sheet string
}

// ReadCSV reads a semicolon-delimited CSV into a Table. The first row is the
// header; a UTF-8 BOM is tolerated. Rows whose every cell is empty are
// dropped: desk exports pad trailing blank rows and those are not legs.
func ReadCSV(name string, r io.Reader, opts ReadOptions) (*Table, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = ';'
	}

	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", name, err)
	}
	if len(records) == 0 {
		return NewTable(name, nil, nil), nil
	}

	headers := trimCells(records[0])
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		cells := trimCells(rec)
		if !allEmpty(cells) {
			rows = append(rows, cells)
		}
	}
	return NewTable(name, headers, rows), nil
}

// ReadXLSX reads one sheet of a spreadsheet into a Table. The first row is
// the header. Cells arrive as their formatted display values, the same as
// the CSV path, so both feed the identical coercion rules downstream.
func ReadXLSX(name string, r io.Reader, opts ReadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", name, err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet %s has no sheets", name)
		}
		sheet = sheets[0]
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, name, err)
	}
	if len(raw) == 0 {
		return NewTable(name, nil, nil), nil
	}

	headers := trimCells(raw[0])
	rows := make([][]string, 0, len(raw)-1)
	for _, rec := range raw[1:] {
		cells := trimCells(rec)
		if !allEmpty(cells) {
			rows = append(rows, cells)
		}
	}
	return NewTable(name, headers, rows), nil
}

// ReadTable dispatches on the file extension: .csv or .xlsx/.xlsm. Legacy
// .xls workbooks are not supported and must be re-saved as .xlsx.
func ReadTable(name, filename string, r io.Reader, opts ReadOptions) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ReadCSV(name, r, opts)
	case ".xlsx", ".xlsm":
		return ReadXLSX(name, r, opts)
	default:
		return nil, fmt.Errorf("unsupported file type %q for %s: want .csv or .xlsx", filepath.Ext(filename), name)
	}
}

// ReadTableFile opens path and reads it with ReadTable.
func ReadTableFile(name, path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	return ReadTable(name, path, f, opts)
}

func trimCells(rec []string) []string {
	cells := make([]string, len(rec))
	for i, c := range rec {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
