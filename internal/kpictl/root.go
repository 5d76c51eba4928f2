// Package kpictl defines the command-line interface for the KPI scorecard.
package kpictl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kpiboard/internal/backend"
	"kpiboard/internal/cli"
	"kpiboard/internal/config"
	"kpiboard/internal/log"
	"kpiboard/internal/outwriter"
	"kpiboard/internal/services"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// app holds the state of one kpictl invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *log.Logger
	res    *backend.Result
}

// NewRootCmd builds the command tree. Every call gets its own viper
// instance so flags and config never leak between invocations.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix("KPICTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "kpictl",
		Short: "Run KPI scorecard reports and manage the KPI tables.",
		Long: `kpictl works against the same data backends as the kpiboard dashboard.

Settings come from flags, KPICTL_* environment variables and an optional
.kpictl.yaml in the current or home directory. Backend connection details
not set there fall back to the dashboard's own environment (DATA_BACKEND,
SQLITE_DB_PATH, GOOGLE_SPREADSHEET_ID, ...).`,
		Version:            fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Path to config file (default .kpictl.yaml)")
	pf.String("backend", "", "Data backend: memory, sheets, xlsx, sqlite or postgres")
	pf.String("data-dir", "", "Directory with KPI_Config.csv and KPI_Actuals.csv (memory backend)")
	pf.String("xlsx-path", "", "Workbook path (xlsx backend)")
	pf.String("sqlite-db-path", "", "Database file (sqlite backend)")
	pf.String("postgres-dsn", "", "Connection string (postgres backend)")
	pf.String("log-level", "warn", "Log level: debug, info, warn or error")
	pf.String("output", string(outwriter.TextOut), "Output format: text or csv or json or xlsx")
	pf.String("output-file", "", "Optional path to write output to")
	pf.Int("precision", 2, "Decimal precision for numeric columns")
	pf.String("color", "auto", "Colored labels in text output (yes/no/auto)")
	_ = a.v.BindPFlags(pf)

	root.AddCommand(a.reportCmd(), a.tableCmd(), a.migrateCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// setup reads the config file and resolves the backend configuration.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfigFile(); err != nil {
		return err
	}
	cli.LoadEnvFile()

	cfg := config.Load()
	overrides := map[string]*string{
		"backend":        &cfg.DataBackend,
		"data-dir":       &cfg.DataDir,
		"xlsx-path":      &cfg.XLSXPath,
		"sqlite-db-path": &cfg.SQLiteDBPath,
		"postgres-dsn":   &cfg.PostgresDSN,
		"log-level":      &cfg.LogLevel,
	}
	for key, field := range overrides {
		if v := strings.TrimSpace(a.v.GetString(key)); v != "" {
			*field = v
		}
	}
	// One-shot commands gain nothing from the read cache.
	cfg.CacheTTL = 0

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLogger(cfg.Level(), log.ComponentCLI, cmd.ErrOrStderr())
	return nil
}

func (a *app) loadConfigFile() error {
	if configFile := a.v.GetString("config"); configFile != "" {
		a.v.SetConfigFile(configFile)
	} else {
		a.v.SetConfigName(".kpictl")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		a.v.AddConfigPath("$HOME")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.res == nil {
		return nil
	}
	err := a.res.Close()
	a.res = nil
	return err
}

// open connects to the configured backend on first use.
func (a *app) open(ctx context.Context) (*backend.Result, error) {
	if a.res != nil {
		return a.res, nil
	}
	res, err := cli.OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.res = res
	return res, nil
}

func (a *app) tableService(res *backend.Result) *services.TableService {
	var notifier services.Notifier
	if res.Notifier != nil {
		notifier = res.Notifier
	}
	return services.NewTableService(res.Store, notifier, a.logger.WithComponent(log.ComponentTable))
}

func (a *app) outputOptions() (outwriter.Options, error) {
	format, err := outwriter.ParseFormat(a.v.GetString("output"))
	if err != nil {
		return outwriter.Options{}, err
	}
	return outwriter.Options{
		Format:     format,
		OutputFile: a.v.GetString("output-file"),
		Precision:  a.v.GetInt("precision"),
		Color:      a.v.GetString("color"),
	}, nil
}
