package kpictl

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kpiboard/internal/core"
	"kpiboard/internal/log"
	"kpiboard/internal/outwriter"
	"kpiboard/internal/services"
)

func (a *app) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute the weighted KPI report for one month.",
		Long: `Join KPI_Config and KPI_Actuals on Metric for the chosen month and print
per-metric achievement and the weighted score per category.

Examples:
  # Report for January as a colored table
  kpictl report --period Jan

  # Machine-readable output
  kpictl report --period Mar --output json

  # Workbook with Detail and Summary sheets
  kpictl report --period Mar --output xlsx --output-file march.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			period := core.PeriodOf(time.Now())
			if p := strings.TrimSpace(a.v.GetString("period")); p != "" {
				var err error
				if period, err = core.ParsePeriod(p); err != nil {
					return err
				}
			}
			opts, err := a.outputOptions()
			if err != nil {
				return err
			}

			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := services.NewReportService(res.Store, a.logger.WithComponent(log.ComponentReport)).
				Compute(cmd.Context(), period)
			if err != nil {
				return err
			}
			return outwriter.WriteReport(rep, opts)
		},
	}
	cmd.Flags().String("period", "", "Month label Jan..Dec (default current month)")
	_ = a.v.BindPFlag("period", cmd.Flags().Lookup("period"))
	return cmd
}
