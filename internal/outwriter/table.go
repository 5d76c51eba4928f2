package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"kpiboard/internal/core"
)

// WriteTable outputs a stored table. XLSX is not offered for single tables.
func WriteTable(t core.Table, opts Options) error {
	switch opts.Format {
	case JSONOut:
		return writeWithFile(opts.OutputFile, func(w io.Writer) error {
			return writeJSON(w, tableJSON(t))
		}, "Wrote JSON")
	case CSVOut:
		return writeWithFile(opts.OutputFile, func(w io.Writer) error {
			return writeTableCSV(w, t)
		}, "Wrote CSV")
	case XLSXOut:
		return fmt.Errorf("xlsx output is only available for reports")
	default:
		return writeWithFile(opts.OutputFile, func(w io.Writer) error {
			return writeTableText(w, t)
		}, "Wrote table")
	}
}

func writeTableText(w io.Writer, t core.Table) error {
	if _, err := fmt.Fprintf(w, "%s (%d rows)\n", t.Name, len(t.Rows)); err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header(t.Columns)
	if err := table.Bulk(cellStrings(t)); err != nil {
		return err
	}
	return table.Render()
}

func writeTableCSV(w io.Writer, t core.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(cellStrings(t)); err != nil {
		return err
	}
	return cw.Error()
}

// tableJSON shapes a table as records keyed by column name.
func tableJSON(t core.Table) map[string]any {
	records := make([]map[string]any, 0, len(t.Rows))
	for r := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for c, col := range t.Columns {
			rec[col] = t.Cell(r, c)
		}
		records = append(records, rec)
	}
	return map[string]any{
		"name":    t.Name,
		"columns": t.Columns,
		"rows":    records,
	}
}

func cellStrings(t core.Table) [][]string {
	out := make([][]string, len(t.Rows))
	for r := range t.Rows {
		row := make([]string, len(t.Columns))
		for c := range t.Columns {
			row[c] = core.CellString(t.Cell(r, c))
		}
		out[r] = row
	}
	return out
}
