package kpictl

import (
	"fmt"

	"github.com/spf13/cobra"

	"kpiboard/internal/core"
	"kpiboard/internal/outwriter"
	"kpiboard/internal/sheets/memory"
)

func (a *app) tableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Show or import the KPI tables.",
	}
	cmd.AddCommand(a.tableShowCmd(), a.tableImportCmd())
	return cmd
}

func (a *app) tableShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "show <name>",
		Short:     "Print a table (KPI_Config or KPI_Actuals).",
		Args:      cobra.ExactArgs(1),
		ValidArgs: core.TableNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.outputOptions()
			if err != nil {
				return err
			}
			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			t, err := a.tableService(res).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return outwriter.WriteTable(t, opts)
		},
	}
}

func (a *app) tableImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <name> <file.csv>",
		Short: "Replace a table with the contents of a CSV file.",
		Long: `Replace a table with a CSV file whose first record is the header.
Numeric cells are stored as numbers and fully blank rows are dropped.

Example:
  kpictl table import KPI_Actuals actuals.csv`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: core.TableNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			if !core.KnownTable(name) {
				return fmt.Errorf("%w: %q", core.ErrUnknownTable, name)
			}
			t, err := memory.ReadCSVFile(path, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			res, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			saved, err := a.tableService(res).Save(cmd.Context(), name, t)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows and %d columns into %s\n",
				len(saved.Rows), len(saved.Columns), name)
			return err
		},
	}
}
