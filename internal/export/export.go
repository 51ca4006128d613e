// Package export writes extracted transaction rows to a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/inkveil/inkveil/internal/extract"
)

const sheetName = "Transactions"

// column order matches the record shape the extractor returns.
var columns = []struct {
	header string
	value  func(extract.Record) string
}{
	{"Date", func(r extract.Record) string { return r.Date }},
	{"Description", func(r extract.Record) string { return r.Description }},
	{"Debit", func(r extract.Record) string { return r.Debit }},
	{"Credit", func(r extract.Record) string { return r.Credit }},
	{"Balance", func(r extract.Record) string { return r.Balance }},
	{"Currency", func(r extract.Record) string { return r.Currency }},
	{"Category", func(r extract.Record) string { return r.Category }},
}

// WriteXLSX writes the records as one worksheet. Columns that are
// empty across every record are hidden rather than dropped, so the
// stored data stays uniform.
func WriteXLSX(w io.Writer, records []extract.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create worksheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default worksheet: %w", err)
	}

	for col, c := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, c.header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	populated := make([]bool, len(columns))
	for row, r := range records {
		for col, c := range columns {
			v := c.value(r)
			if v != "" {
				populated[col] = true
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	for col := range columns {
		if populated[col] {
			continue
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to resolve column name: %w", err)
		}
		if err := f.SetColVisible(sheetName, name, false); err != nil {
			return fmt.Errorf("failed to hide empty column: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}
	return nil
}
