package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"integralq/pkg/contracts/domain"
)

// Sheet names used in exported workbooks.
const (
	DataSheet = "Data"
	LogSheet  = "Cleaning Log"
)

// WriteXLSX writes ds to a workbook with a Data sheet and, when the dataset
// has one, a Cleaning Log sheet. Numbers stay numeric cells.
func (e *Exporter) WriteXLSX(w io.Writer, ds *domain.CleanedDataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(DataSheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	header := make([]interface{}, len(ds.Headers))
	for i, h := range ds.Headers {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i, row := range ds.Rows {
		cells := make([]interface{}, len(ds.Headers))
		for j, h := range ds.Headers {
			cells[j] = row[h].Any()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if len(ds.CleaningLog) > 0 {
		if _, err := f.NewSheet(LogSheet); err != nil {
			return fmt.Errorf("failed to add log sheet: %w", err)
		}
		for i, line := range ds.CleaningLog {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			if err := f.SetCellValue(LogSheet, cell, line); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
