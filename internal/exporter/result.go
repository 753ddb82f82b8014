package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"opsunify/internal/config"
	"opsunify/pkg/contracts/domain"
)

// ResultExporter renders unified-operation result tables to their export
// targets: an XLSX workbook with a single Resultado sheet, or a CSV with the
// same projection. Numeric cells stay numeric in the workbook; the CSV
// renders them with minimal digits.
type ResultExporter struct {
	csvWriter *CSVWriter
	paths     *config.Paths
}

// NewResultExporter creates a result exporter rooted at the given paths.
func NewResultExporter(paths *config.Paths) *ResultExporter {
	return &ResultExporter{
		csvWriter: NewCSVWriter(paths),
		paths:     paths,
	}
}

// ExportXLSX writes the table to an XLSX file. A relative path lands in the
// reports directory; empty means the default result file.
func (e *ResultExporter) ExportXLSX(filePath string, table *domain.ResultTable) error {
	fullPath := e.resolveXLSXPath(filePath)

	slog.Info("Writing XLSX result",
		slog.String("full_path", fullPath),
		slog.Int("row_count", table.RowCount()))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return e.WriteXLSX(file, table)
}

// WriteXLSX streams the workbook to an arbitrary writer.
func (e *ResultExporter) WriteXLSX(out io.Writer, table *domain.ResultTable) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := config.ResultSheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		headers[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &table.Rows[i]); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ExportCSV writes the table to a CSV file with the given delimiter, BOM
// prefixed so spreadsheet tools pick up the accents. Rows stream to disk one
// at a time rather than materializing the rendered records.
func (e *ResultExporter) ExportCSV(filePath string, table *domain.ResultTable, delimiter rune) error {
	if filePath == "" {
		filePath = e.paths.ResultCSV
	}

	stream, err := e.csvWriter.CreateStreamWriter(filePath, table.Columns, delimiter)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	for i, row := range table.Rows {
		record := make([]string, len(row))
		for j, cell := range row {
			record[j] = formatCell(cell)
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// WriteCSV streams the CSV payload to an arbitrary writer.
func (e *ResultExporter) WriteCSV(out io.Writer, table *domain.ResultTable, delimiter rune) error {
	return e.csvWriter.WriteTo(out, WriteOptions{
		Headers:   table.Columns,
		Records:   renderRecords(table),
		BOMPrefix: true,
		Delimiter: delimiter,
	})
}

func (e *ResultExporter) resolveXLSXPath(filePath string) string {
	switch {
	case filePath == "":
		return e.paths.ResultXLSX
	case filepath.IsAbs(filePath):
		return filePath
	default:
		return e.paths.GetReportPath(filePath)
	}
}

func renderRecords(table *domain.ResultTable) [][]string {
	records := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		records = append(records, record)
	}
	return records
}
