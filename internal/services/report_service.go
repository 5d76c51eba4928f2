package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"kpiboard/internal/core"
	"kpiboard/internal/log"
	"kpiboard/internal/scoring"
	"kpiboard/internal/sheets"
)

// ReportService runs the scoring engine over the stored tables.
type ReportService struct {
	reader sheets.TableReader
	sl     *log.StructuredLogger
}

func NewReportService(reader sheets.TableReader, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentReport)
	}
	return &ReportService{reader: reader, sl: log.NewStructuredLogger(logger)}
}

// Compute reads both tables concurrently and scores them for period.
func (s *ReportService) Compute(ctx context.Context, period core.Period) (scoring.Report, error) {
	if !period.Valid() {
		return scoring.Report{}, fmt.Errorf("%w: %q", core.ErrInvalidPeriod, string(period))
	}

	var config, actuals core.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.reader.Read(gctx, core.ConfigTable)
		if err != nil {
			return err
		}
		config = t
		return nil
	})
	g.Go(func() error {
		t, err := s.reader.Read(gctx, core.ActualsTable)
		if err != nil {
			return err
		}
		actuals = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return scoring.Report{}, err
	}
	if config.Name == "" {
		config.Name = core.ConfigTable
	}
	if actuals.Name == "" {
		actuals.Name = core.ActualsTable
	}

	report, err := scoring.Compute(config, actuals, period)
	if err != nil {
		return scoring.Report{}, err
	}
	s.sl.LogReportComputed(ctx, period.String(), len(report.Detail), len(report.Summary), len(report.Unmatched))
	return report, nil
}
