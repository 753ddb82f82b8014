// Package exporter writes pipeline results to their export targets.
//
// This package contains two main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, configurable delimiters, and UTF-8 BOM for Excel compatibility.
//
// ResultExporter: Renders a unified-operation result table to an XLSX
// workbook (single Resultado sheet) or a CSV file with the same projection,
// either on disk under the reports directory or streamed to a writer for
// HTTP downloads.
//
// Example usage:
//
//	exp := exporter.NewResultExporter(paths)
//
//	// Default result file: data/reports/resultado_unificado.xlsx
//	err := exp.ExportXLSX("", table)
//
//	// Stream a CSV download
//	err = exp.WriteCSV(w, table, ';')
package exporter
