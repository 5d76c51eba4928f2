package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"

	"kpiboard/internal/core"
	ports "kpiboard/internal/sheets"
)

// Dialect selects the SQL database flavour.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

const (
	tablesTable = "kpi_tables"
	rowsTable   = "kpi_rows"
)

var _ ports.TableStore = (*Repository)(nil)

// Repository keeps tables in two relations: one header row per table in
// kpi_tables and one JSON-encoded row per position in kpi_rows.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// NewSQLiteRepository opens (creating if needed) the SQLite file at dbPath
// and applies migrations.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(SQLite, dbPath)
}

// NewPostgresRepository connects to dsn and applies migrations.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return Open(Postgres, dsn)
}

// Open connects to the database, pings it and runs migrations.
func Open(dialect Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dialect == SQLite {
		// A single writer avoids SQLITE_BUSY under concurrent saves.
		db.SetMaxOpenConns(1)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Dialect reports which database flavour backs the repository.
func (r *Repository) Dialect() Dialect { return r.dialect }

// Read implements sheets.TableReader.
func (r *Repository) Read(ctx context.Context, name string) (core.Table, error) {
	query, args, err := r.sb.Select("columns_json").From(tablesTable).
		Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return core.Table{}, fmt.Errorf("build query: %w", err)
	}
	var colsJSON string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&colsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Table{}, &core.NotFoundError{Table: name}
		}
		return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: err}
	}

	t := core.Table{Name: name}
	if err := json.Unmarshal([]byte(colsJSON), &t.Columns); err != nil {
		return core.Table{}, fmt.Errorf("decode columns of %s: %w", name, err)
	}

	query, args, err = r.sb.Select("cells_json").From(rowsTable).
		Where(sq.Eq{"table_name": name}).OrderBy("position").ToSql()
	if err != nil {
		return core.Table{}, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var cellsJSON string
		if err := rows.Scan(&cellsJSON); err != nil {
			return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: err}
		}
		var cells []any
		if err := json.Unmarshal([]byte(cellsJSON), &cells); err != nil {
			return core.Table{}, fmt.Errorf("decode row of %s: %w", name, err)
		}
		t.Rows = append(t.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: err}
	}
	return t, nil
}

// Write implements sheets.TableWriter. The header and all rows are
// replaced inside one transaction.
func (r *Repository) Write(ctx context.Context, name string, t core.Table) error {
	colsJSON, err := json.Marshal(nonNil(t.Columns))
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: err}
	}
	defer tx.Rollback()

	upsert := r.sb.Insert(tablesTable).
		Columns("name", "columns_json", "updated_at").
		Values(name, string(colsJSON), time.Now().UTC()).
		Suffix("ON CONFLICT (name) DO UPDATE SET columns_json = excluded.columns_json, updated_at = excluded.updated_at")
	if err := r.exec(ctx, tx, upsert); err != nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: err}
	}
	if err := r.exec(ctx, tx, r.sb.Delete(rowsTable).Where(sq.Eq{"table_name": name})); err != nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: err}
	}

	if len(t.Rows) > 0 {
		insert := r.sb.Insert(rowsTable).Columns("table_name", "position", "cells_json")
		for i, row := range t.Rows {
			cellsJSON, err := json.Marshal(nonNil(row))
			if err != nil {
				return fmt.Errorf("encode row %d: %w", i+1, err)
			}
			insert = insert.Values(name, i, string(cellsJSON))
		}
		if err := r.exec(ctx, tx, insert); err != nil {
			return &core.ConnectionError{Op: "write", Table: name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: err}
	}
	slog.DebugContext(ctx, "Table saved to database", "table", name, "rows", len(t.Rows), "dialect", r.dialect)
	return nil
}

// Tables lists stored table names in name order.
func (r *Repository) Tables(ctx context.Context) ([]string, error) {
	query, args, err := r.sb.Select("name").From(tablesTable).OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.ConnectionError{Op: "list", Err: err}
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, &core.ConnectionError{Op: "list", Err: err}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) exec(ctx context.Context, tx *sql.Tx, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// nonNil keeps JSON encoding of empty slices as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
