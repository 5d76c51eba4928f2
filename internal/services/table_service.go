package services

import (
	"context"
	"fmt"

	"kpiboard/internal/core"
	"kpiboard/internal/log"
	"kpiboard/internal/sheets"
)

// Notifier announces saved tables to other processes.
type Notifier interface {
	PublishTableChanged(ctx context.Context, table string, rows int) error
}

// TableService loads and saves the editable KPI tables.
type TableService struct {
	store    sheets.TableStore
	notifier Notifier
	logger   *log.Logger
	sl       *log.StructuredLogger
}

// NewTableService wires a store with an optional notifier. A nil logger falls
// back to the default slog logger.
func NewTableService(store sheets.TableStore, notifier Notifier, logger *log.Logger) *TableService {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentTable)
	}
	return &TableService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		sl:       log.NewStructuredLogger(logger),
	}
}

// Load reads one of the known tables.
func (s *TableService) Load(ctx context.Context, name string) (core.Table, error) {
	if !core.KnownTable(name) {
		return core.Table{}, fmt.Errorf("%w: %q", core.ErrUnknownTable, name)
	}
	t, err := s.store.Read(ctx, name)
	if err != nil {
		return core.Table{}, err
	}
	t.Name = name
	return t, nil
}

// Save normalizes t (trimmed header, blank rows dropped, rows sized to the
// header), replaces the stored table and publishes a change notification.
// A failed notification is logged and does not fail the save.
func (s *TableService) Save(ctx context.Context, name string, t core.Table) (core.Table, error) {
	if !core.KnownTable(name) {
		return core.Table{}, fmt.Errorf("%w: %q", core.ErrUnknownTable, name)
	}
	t = t.Normalize()
	t.Name = name
	if err := t.Validate(); err != nil {
		return core.Table{}, err
	}
	if err := s.store.Write(ctx, name, t); err != nil {
		return core.Table{}, err
	}
	s.sl.LogTableSaved(ctx, name, len(t.Rows), len(t.Columns))

	if s.notifier != nil {
		if err := s.notifier.PublishTableChanged(ctx, name, len(t.Rows)); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish table changed message",
				log.FieldTable, name, log.FieldError, err)
		}
	}
	return t, nil
}
