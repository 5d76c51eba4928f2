package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kpiboard/internal/amqp"
	"kpiboard/internal/core"
	"kpiboard/internal/sheets"
)

// MirrorWorker copies tables from the primary store (the SQL database) into a
// replica (Google Sheets) so spreadsheet users see the latest saves.
type MirrorWorker struct {
	source sheets.TableReader
	target sheets.TableWriter
	tables []string
}

// NewMirrorWorker mirrors the given tables, or every known table when none
// are listed.
func NewMirrorWorker(source sheets.TableReader, target sheets.TableWriter, tables ...string) *MirrorWorker {
	if len(tables) == 0 {
		tables = append([]string(nil), core.TableNames...)
	}
	return &MirrorWorker{source: source, target: target, tables: tables}
}

// HandleTableChanged processes a single table-changed message from AMQP.
// The message carries no cells: the current table is re-read from the source.
func (w *MirrorWorker) HandleTableChanged(ctx context.Context, msg *amqp.TableChangedMessage) error {
	slog.InfoContext(ctx, "Processing table changed message",
		"id", msg.ID,
		"table", msg.Table,
		"rows", msg.Rows)

	if !w.mirrors(msg.Table) {
		slog.WarnContext(ctx, "Ignoring change for unmirrored table", "table", msg.Table)
		return nil
	}
	return w.MirrorTable(ctx, msg.Table)
}

// MirrorTable copies one table. A table missing from the source is skipped.
func (w *MirrorWorker) MirrorTable(ctx context.Context, name string) error {
	t, err := w.source.Read(ctx, name)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.InfoContext(ctx, "Table not in source yet, nothing to mirror", "table", name)
			return nil
		}
		return fmt.Errorf("read %s from source: %w", name, err)
	}
	if err := w.target.Write(ctx, name, t); err != nil {
		return fmt.Errorf("write %s to replica: %w", name, err)
	}
	slog.InfoContext(ctx, "Mirrored table", "table", name, "rows", len(t.Rows), "columns", len(t.Columns))
	return nil
}

// MirrorAll copies every configured table, continuing past failures. It is
// the recovery path for missed messages or worker downtime.
func (w *MirrorWorker) MirrorAll(ctx context.Context) error {
	var errs []error
	synced := 0
	for _, name := range w.tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.MirrorTable(ctx, name); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror table", "table", name, "error", err)
			errs = append(errs, err)
			continue
		}
		synced++
	}
	slog.InfoContext(ctx, "Mirror pass completed",
		"total", len(w.tables),
		"synced", synced,
		"errors", len(errs))
	return errors.Join(errs...)
}

func (w *MirrorWorker) mirrors(name string) bool {
	for _, t := range w.tables {
		if t == name {
			return true
		}
	}
	return false
}
