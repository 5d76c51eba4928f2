package sheets

import (
	"context"

	"kpiboard/internal/core"
)

// Ports for outbound adapters.
type (
	// TableReader loads a whole named table. Implementations return a
	// *core.NotFoundError when the table does not exist and a
	// *core.ConnectionError when the backend cannot be reached.
	TableReader interface {
		Read(ctx context.Context, name string) (core.Table, error)
	}

	// TableWriter replaces the named table with t as a single operation from
	// the caller's point of view. Last write wins.
	TableWriter interface {
		Write(ctx context.Context, name string, t core.Table) error
	}

	TableStore interface {
		TableReader
		TableWriter
	}
)
