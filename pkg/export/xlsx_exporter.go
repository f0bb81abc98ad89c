package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	titleFillColor  = "1454FB"
	headerFillColor = "203864"
	passFillColor   = "C6EFCE"
	failFillColor   = "FFC7CE"
	borderColor     = "9E9E9E"
)

// XLSXExporter renders datasets into a styled spreadsheet. When ResultHeader
// names one of the dataset headers, Pass/Fail cells in that column are
// highlighted green/red.
type XLSXExporter struct {
	ResultHeader string
}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{ResultHeader: "Result"}
}

// Render produces spreadsheet bytes with a merged title row, a styled header
// row, frozen panes and an auto filter over the data range.
func (e *XLSXExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	if title != "" {
		f.SetSheetName(sheet, title)
		sheet = title
	}

	thin := []excelize.Border{
		{Type: "left", Color: borderColor, Style: 1},
		{Type: "right", Color: borderColor, Style: 1},
		{Type: "top", Color: borderColor, Style: 1},
		{Type: "bottom", Color: borderColor, Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{titleFillColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Alignment: center,
		Border:    thin,
	})
	if err != nil {
		return nil, fmt.Errorf("build title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Alignment: center,
		Border:    thin,
	})
	if err != nil {
		return nil, fmt.Errorf("build header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: thin})
	if err != nil {
		return nil, fmt.Errorf("build cell style: %w", err)
	}
	passStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{passFillColor}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	if err != nil {
		return nil, fmt.Errorf("build pass style: %w", err)
	}
	failStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{failFillColor}, Pattern: 1},
		Alignment: center,
		Border:    thin,
	})
	if err != nil {
		return nil, fmt.Errorf("build fail style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, fmt.Errorf("resolve last column: %w", err)
	}

	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		return nil, fmt.Errorf("merge title row: %w", err)
	}
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A1", lastCol+"1", titleStyle)
	_ = f.SetRowHeight(sheet, 1, 26)

	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header %s: %w", header, err)
		}
	}
	_ = f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle)
	_ = f.SetRowHeight(sheet, 2, 20)

	for rowIdx, row := range data.Rows {
		for colIdx, header := range data.Headers {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+3)
			if err := f.SetCellValue(sheet, cell, row[header]); err != nil {
				return nil, fmt.Errorf("write row %d: %w", rowIdx+1, err)
			}
			style := cellStyle
			if header == e.ResultHeader {
				switch row[header] {
				case "Pass":
					style = passStyle
				case "Fail":
					style = failStyle
				}
			}
			_ = f.SetCellStyle(sheet, cell, cell, style)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze panes: %w", err)
	}
	if len(data.Rows) > 0 {
		rangeRef := fmt.Sprintf("A2:%s%d", lastCol, 2+len(data.Rows))
		if err := f.AutoFilter(sheet, rangeRef, nil); err != nil {
			return nil, fmt.Errorf("set auto filter: %w", err)
		}
	}

	widths := map[string]float64{"No": 6, "Item ID": 12, "Result": 10, "Scan Time": 20}
	for i, header := range data.Headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width, ok := widths[header]
		if !ok {
			width = 22
		}
		_ = f.SetColWidth(sheet, col, col, width)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
