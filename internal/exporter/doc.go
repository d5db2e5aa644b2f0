// Package exporter writes cleaned datasets as CSV or XLSX.
//
// Both writers take an io.Writer so the same code serves the CLI --export
// flag and the session export endpoint:
//
//	ex := exporter.New(logger, exporter.WithBOM(true))
//	err := ex.Write(w, dataset, exporter.FormatXLSX)
package exporter
