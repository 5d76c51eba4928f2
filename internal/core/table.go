package core

import (
	"fmt"
	"strings"
)

// Table names persisted by the data store.
const (
	ConfigTable  = "KPI_Config"
	ActualsTable = "KPI_Actuals"
)

// Columns used by the scoring engine besides the per-period ones.
const (
	ColCategory = "Category"
	ColMetric   = "Metric"
	ColWeight   = "Weight"
)

// TableNames lists the editable tables in display order.
var TableNames = []string{ConfigTable, ActualsTable}

// KnownTable reports whether name is one of TableNames.
func KnownTable(name string) bool {
	for _, n := range TableNames {
		if n == name {
			return true
		}
	}
	return false
}

// Table is a named grid with a header row. Cells keep whatever type the
// backend produced (float64, int64, string, nil, ...); rows may be shorter
// than the header.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// ColumnIndex returns the index of the column whose trimmed name equals name,
// or -1. Matching is case sensitive.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.TrimSpace(c) == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has a column called name.
func (t Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Cell returns the value at row r, column c, or nil when out of range.
func (t Table) Cell(r, c int) any {
	if r < 0 || r >= len(t.Rows) || c < 0 {
		return nil
	}
	row := t.Rows[r]
	if c >= len(row) {
		return nil
	}
	return row[c]
}

// Clone returns a deep copy of the grid. Cell values are copied by value.
func (t Table) Clone() Table {
	out := Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	if t.Rows != nil {
		out.Rows = make([][]any, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = append([]any(nil), r...)
		}
	}
	return out
}

// Normalize trims header names, pads or truncates every row to the header
// width and drops rows whose cells are all blank.
func (t Table) Normalize() Table {
	out := Table{Name: t.Name, Columns: make([]string, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = strings.TrimSpace(c)
	}
	width := len(out.Columns)
	for _, r := range t.Rows {
		if IsBlankRow(r) {
			continue
		}
		row := make([]any, width)
		copy(row, r)
		out.Rows = append(out.Rows, row)
	}
	return out
}

// Validate checks the invariants every stored table must satisfy.
func (t Table) Validate() error {
	if len(t.Columns) == 0 {
		return ErrEmptyHeader
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for i, c := range t.Columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return fmt.Errorf("%w: column %d has an empty name", ErrInvalidTable, i+1)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidTable, c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// IsBlankRow reports whether every cell in r is nil or whitespace.
func IsBlankRow(r []any) bool {
	for _, v := range r {
		if !IsBlank(v) {
			return false
		}
	}
	return true
}

// IsBlank reports whether v is nil or a whitespace-only string.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

// CellString renders a cell for display or for text-based storage.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case float32:
		return FormatNumber(float64(x))
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
