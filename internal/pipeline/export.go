package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	errorsSheet  = "errors"
	summarySheet = "summary"
)

// ExportErrorsToXLSX writes a report for one processed file: a summary sheet
// and one row per error message.
func ExportErrorsToXLSX(res FileResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), errorsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	headers := []string{"line", "message"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(errorsSheet, cell, h)
	}
	for i, e := range res.Errors {
		r := i + 2
		lineCell, _ := excelize.CoordinatesToCellName(1, r)
		msgCell, _ := excelize.CoordinatesToCellName(2, r)
		if e.Line > 0 {
			_ = f.SetCellValue(errorsSheet, lineCell, e.Line)
		}
		_ = f.SetCellValue(errorsSheet, msgCell, e.Message)
	}
	_ = f.SetColWidth(errorsSheet, "B", "B", 100)

	summary := [][2]any{
		{"trace_id", res.TraceID},
		{"file", res.FileName},
		{"regime", res.Regime},
		{"period", res.Period},
		{"status", string(res.Status)},
		{"rows_read", res.RowsRead},
		{"accepted", res.Accepted},
		{"skipped", res.Skipped},
		{"sent", res.TotalSent},
		{"errors", len(res.Errors)},
	}
	for i, kv := range summary {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valueCell, _ := excelize.CoordinatesToCellName(2, i+1)
		_ = f.SetCellValue(summarySheet, keyCell, kv[0])
		_ = f.SetCellValue(summarySheet, valueCell, kv[1])
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
