package backend

import (
	"context"
	"time"

	"kpiboard/internal/amqp"
	"kpiboard/internal/cache"
	"kpiboard/internal/sheets"
	"kpiboard/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result is what a Factory builds.
type Result struct {
	// Store is the table store handlers and services use. When caching is
	// enabled it is the cache wrapper.
	Store sheets.TableStore
	// Cache is the read-through cache, nil when disabled.
	Cache *cache.Store
	// Repository is set for the sqlite and postgres backends.
	Repository *storage.Repository
	// Notifier is set when AMQP is configured and reachable.
	Notifier *amqp.Client
	Cleanup  CleanupFunc
}

// Close runs Cleanup if present.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory
	DataDirectory string

	// Files and databases
	XLSXPath     string
	SQLiteDBPath string
	PostgresDSN  string

	// AMQP, used with the SQL backends only
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Read cache; zero TTL disables it
	CacheTTL  time.Duration
	CacheSize int
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SheetsBackend   BackendType = "sheets"
	XLSXBackend     BackendType = "xlsx"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SheetsBackend, XLSXBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// IsSQL reports whether the backend is database backed.
func (bt BackendType) IsSQL() bool {
	return bt == SQLiteBackend || bt == PostgresBackend
}
