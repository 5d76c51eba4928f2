package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"kpiboard/internal/export"
	"kpiboard/internal/scoring"
)

// WriteReport outputs a scoring report in the configured format.
func WriteReport(r scoring.Report, opts Options) error {
	fmtFloat := createFormatter(opts.precision())

	switch opts.Format {
	case JSONOut:
		return writeWithFile(opts.OutputFile, func(w io.Writer) error {
			return writeReportJSON(w, r)
		}, "Wrote JSON")
	case CSVOut:
		return writeWithFile(opts.OutputFile, func(w io.Writer) error {
			return writeReportCSV(w, r, fmtFloat)
		}, "Wrote CSV")
	case XLSXOut:
		if opts.OutputFile == "" {
			return fmt.Errorf("xlsx output needs an output file")
		}
		data, err := export.Workbook(r)
		if err != nil {
			return err
		}
		return writeWithFile(opts.OutputFile, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}, "Wrote workbook")
	default:
		colorize := opts.UseColor()
		return writeWithFile(opts.OutputFile, func(w io.Writer) error {
			return writeReportTable(w, r, fmtFloat, colorize)
		}, "Wrote table")
	}
}

// writeReportTable prints the detail table, the category summary and any
// unmatched metrics.
func writeReportTable(w io.Writer, r scoring.Report, fmtFloat func(float64) string, colorize bool) error {
	if _, err := fmt.Fprintf(w, "KPI report for %s\n", r.Period); err != nil {
		return err
	}
	if r.Empty() {
		_, err := fmt.Fprintln(w, "No metrics matched between KPI_Config and KPI_Actuals.")
		return err
	}

	detail := tablewriter.NewWriter(w)
	detail.Header([]string{"Category", "Metric", "Weight", "Target", "Actual", "Achievement %", "Weighted", "Status"})
	detail.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var rows [][]string
	for _, d := range r.Detail {
		rows = append(rows, []string{
			d.Category,
			d.Metric,
			fmtFloat(d.Weight),
			fmtFloat(d.Target),
			fmtFloat(d.Actual),
			fmtFloat(d.AchievementPct),
			fmtFloat(d.WeightedScore),
			ColorLabel(d.AchievementPct, colorize),
		})
	}
	if err := detail.Bulk(rows); err != nil {
		return err
	}
	if err := detail.Render(); err != nil {
		return err
	}

	summary := tablewriter.NewWriter(w)
	summary.Header([]string{"Category", "Total Weighted Score"})
	summary.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	var srows [][]string
	for _, s := range r.Summary {
		srows = append(srows, []string{s.Category, fmtFloat(s.TotalWeightedScore)})
	}
	if err := summary.Bulk(srows); err != nil {
		return err
	}
	if err := summary.Render(); err != nil {
		return err
	}

	if len(r.Unmatched) > 0 {
		note := fmt.Sprintf("Unmatched metrics (ignored): %v", r.Unmatched)
		if _, err := fmt.Fprintln(w, paint(note, colorize, atRiskAttrs...)); err != nil {
			return err
		}
	}
	return nil
}

// writeReportCSV writes detail rows followed by a blank record and the summary.
func writeReportCSV(w io.Writer, r scoring.Report, fmtFloat func(float64) string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"Period"}, export.DetailHeaders...)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, d := range r.Detail {
		rec := []string{
			r.Period.String(),
			d.Category,
			d.Metric,
			fmtFloat(d.Weight),
			fmtFloat(d.Target),
			fmtFloat(d.Actual),
			fmtFloat(d.AchievementPct),
			fmtFloat(d.WeightedScore),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	if err := cw.Write(nil); err != nil {
		return err
	}
	if err := cw.Write(append([]string{"Period"}, export.SummaryHeaders...)); err != nil {
		return err
	}
	for _, s := range r.Summary {
		if err := cw.Write([]string{r.Period.String(), s.Category, fmtFloat(s.TotalWeightedScore)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeReportJSON(w io.Writer, r scoring.Report) error {
	return writeJSON(w, r)
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
