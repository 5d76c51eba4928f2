package google

import (
	"strings"

	"kpiboard/internal/core"
)

// fromValues converts a values matrix (as returned by the Sheets API) into a
// table. Header cells are rendered as text and empty strings become nil.
func fromValues(name string, values [][]any) core.Table {
	t := core.Table{Name: name}
	if len(values) == 0 {
		return t
	}
	t.Columns = make([]string, len(values[0]))
	for i, v := range values[0] {
		t.Columns[i] = core.CellString(v)
	}
	for _, raw := range values[1:] {
		row := make([]any, len(raw))
		for i, v := range raw {
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// toValues renders t as a rectangular grid at least oldRows x oldCols so an
// update overwrites everything previously on the sheet.
func toValues(t core.Table, oldRows, oldCols int) [][]any {
	width := len(t.Columns)
	for _, r := range t.Rows {
		width = max(width, len(r))
	}
	width = max(width, oldCols)
	height := max(len(t.Rows)+1, oldRows)
	if width == 0 {
		return nil
	}

	grid := make([][]any, height)
	for i := range grid {
		grid[i] = make([]any, width)
		for j := range grid[i] {
			grid[i][j] = ""
		}
	}
	for j, c := range t.Columns {
		grid[0][j] = c
	}
	for i, r := range t.Rows {
		for j, v := range r {
			if v == nil {
				continue
			}
			grid[i+1][j] = v
			if j < len(t.Columns) && core.IsTextColumn(t.Columns[j]) {
				grid[i+1][j] = asText(v)
			}
		}
	}
	return grid
}

// asText keeps a label from being reinterpreted by USER_ENTERED input: a
// leading apostrophe makes Sheets store "007" as text instead of 7.
func asText(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if _, numeric := core.ToNumber(s); numeric || strings.HasPrefix(s, "'") {
		return "'" + s
	}
	return s
}

func extent(values [][]any) (rows, cols int) {
	for _, r := range values {
		cols = max(cols, len(r))
	}
	return len(values), cols
}
