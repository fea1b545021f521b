package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes tabular request data to an Excel workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
	nextRow int
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName     string `json:"sheet_name"`
	IncludeHeader bool   `json:"include_header"`
	FreezeHeader  bool   `json:"freeze_header"`
	AutoFilter    bool   `json:"auto_filter"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:     "Requests",
		IncludeHeader: true,
		FreezeHeader:  true,
		AutoFilter:    true,
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)
	return &ExcelExporter{file: file, options: options, nextRow: 1}
}

// WriteHeader writes a bold, frozen header row
func (e *ExcelExporter) WriteHeader(columns []string) error {
	if !e.options.IncludeHeader {
		return nil
	}
	sheet := e.options.SheetName
	styleID, err := e.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		e.file.SetCellValue(sheet, cell, col)
		e.file.SetCellStyle(sheet, cell, cell, styleID)
	}
	if e.options.FreezeHeader {
		e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter {
		lastCol, _ := excelize.CoordinatesToCellName(len(columns), 1)
		e.file.AutoFilter(sheet, "A1:"+lastCol, nil)
	}
	e.nextRow = 2
	return nil
}

// WriteRow appends one row of data
func (e *ExcelExporter) WriteRow(row []any) error {
	sheet := e.options.SheetName
	for i, val := range row {
		cell, _ := excelize.CoordinatesToCellName(i+1, e.nextRow)
		if err := e.setCellValue(sheet, cell, val); err != nil {
			return fmt.Errorf("failed to set cell value: %w", err)
		}
	}
	e.nextRow++
	return nil
}

// WriteTo writes the Excel file to a writer
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) setCellValue(sheet, cell string, val any) error {
	switch v := val.(type) {
	case nil:
		return e.file.SetCellValue(sheet, cell, "")
	case *time.Time:
		if v == nil || v.IsZero() {
			return e.file.SetCellValue(sheet, cell, "")
		}
		return e.file.SetCellValue(sheet, cell, *v)
	case fmt.Stringer:
		return e.file.SetCellValue(sheet, cell, v.String())
	default:
		return e.file.SetCellValue(sheet, cell, v)
	}
}
