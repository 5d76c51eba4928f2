package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kpiboard/internal/amqp"
	"kpiboard/internal/cache"
	gsheet "kpiboard/internal/sheets/google"
	"kpiboard/internal/sheets/memory"
	"kpiboard/internal/sheets/xlsx"
	"kpiboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case SQLiteBackend, PostgresBackend:
		res, err = f.createSQLBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx)
	case XLSXBackend:
		res = &Result{Store: xlsx.New(config.XLSXPath)}
		f.logger.Info("Initialized xlsx backend", "path", config.XLSXPath)
	case MemoryBackend:
		res = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.CacheTTL > 0 {
		res.Cache = cache.NewStore(res.Store, config.CacheSize, config.CacheTTL)
		res.Store = res.Cache
		f.logger.Info("Enabled read cache", "ttl", config.CacheTTL, "size", config.CacheSize)
	}
	return res, nil
}

func (f *DefaultFactory) createSQLBackend(config Config) (*Result, error) {
	var (
		repo *storage.Repository
		err  error
	)
	if config.Type == PostgresBackend {
		repo, err = storage.NewPostgresRepository(config.PostgresDSN)
	} else {
		repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", config.Type, err)
	}

	// AMQP is optional: saves still succeed without change notifications.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without notifications", "error", err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQL backend", "dialect", repo.Dialect(), "amqp_enabled", amqpClient != nil)

	return &Result{
		Store:      repo,
		Repository: repo,
		Notifier:   amqpClient,
		Cleanup: func() error {
			if amqpClient != nil {
				_ = amqpClient.Close()
			}
			return repo.Close()
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context) (*Result, error) {
	cli, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend")
	return &Result{Store: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *Result {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return &Result{Store: memory.NewFromFiles(dataDir)}
}
