// Package export renders scoring reports as downloadable workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"kpiboard/internal/scoring"
)

const (
	DetailSheet    = "Detail"
	SummarySheet   = "Summary"
	UnmatchedSheet = "Unmatched"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	DetailHeaders  = []string{"Category", "Metric", "Weight", "Target", "Actual", "Achievement_%", "Weighted_Score"}
	SummaryHeaders = []string{"Category", "Total_Weighted_Score"}
)

// Filename is the suggested download name for a report.
func Filename(r scoring.Report) string {
	return fmt.Sprintf("kpi_report_%s.xlsx", r.Period)
}

// Workbook builds an XLSX file with a Detail sheet, a Summary sheet and,
// when some metrics did not join, an Unmatched sheet.
func Workbook(r scoring.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DetailSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	// Built-in number format 2 is "0.00".
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, fmt.Errorf("number style: %w", err)
	}

	if err := writeHeader(f, DetailSheet, DetailHeaders, headerStyle); err != nil {
		return nil, err
	}
	for i, row := range r.Detail {
		values := []any{row.Category, row.Metric, row.Weight, row.Target, row.Actual, row.AchievementPct, row.WeightedScore}
		if err := f.SetSheetRow(DetailSheet, cellName(1, i+2), &values); err != nil {
			return nil, fmt.Errorf("write detail row %d: %w", i+1, err)
		}
	}
	if len(r.Detail) > 0 {
		if err := f.SetCellStyle(DetailSheet, cellName(3, 2), cellName(len(DetailHeaders), len(r.Detail)+1), numberStyle); err != nil {
			return nil, fmt.Errorf("style detail: %w", err)
		}
	}

	if err := writeHeader(f, SummarySheet, SummaryHeaders, headerStyle); err != nil {
		return nil, err
	}
	for i, s := range r.Summary {
		values := []any{s.Category, s.TotalWeightedScore}
		if err := f.SetSheetRow(SummarySheet, cellName(1, i+2), &values); err != nil {
			return nil, fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	if len(r.Summary) > 0 {
		if err := f.SetCellStyle(SummarySheet, "B2", cellName(2, len(r.Summary)+1), numberStyle); err != nil {
			return nil, fmt.Errorf("style summary: %w", err)
		}
	}

	if len(r.Unmatched) > 0 {
		if _, err := f.NewSheet(UnmatchedSheet); err != nil {
			return nil, fmt.Errorf("create unmatched sheet: %w", err)
		}
		if err := writeHeader(f, UnmatchedSheet, []string{"Metric"}, headerStyle); err != nil {
			return nil, err
		}
		for i, m := range r.Unmatched {
			if err := f.SetCellValue(UnmatchedSheet, cellName(1, i+2), m); err != nil {
				return nil, fmt.Errorf("write unmatched: %w", err)
			}
		}
	}

	for _, sheet := range []string{DetailSheet, SummarySheet} {
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, fmt.Errorf("freeze header on %s: %w", sheet, err)
		}
	}
	if err := f.SetColWidth(DetailSheet, "A", "G", 16); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "B", 22); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		if err := f.SetCellValue(sheet, cellName(i+1, 1), h); err != nil {
			return fmt.Errorf("write header on %s: %w", sheet, err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", cellName(len(headers), 1), style); err != nil {
		return fmt.Errorf("style header on %s: %w", sheet, err)
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
