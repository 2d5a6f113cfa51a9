package backend

import (
	"context"
	"fmt"

	"invoicepilot/internal/amqp"
	"invoicepilot/internal/archive/memory"
	"invoicepilot/internal/log"
	"invoicepilot/internal/services"
	"invoicepilot/internal/storage"
)

// DefaultFactory builds archives from Config.
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory returns a Factory that logs under the backend component.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it the worker's periodic pass still syncs.
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync messages", "error", err)
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	svc := services.NewInvoiceService(repo, publisher)

	version, _, err := storage.SchemaVersion(config.SQLiteDBPath)
	if err != nil {
		f.logger.WarnContext(ctx, "Could not read schema version", "error", err)
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", version,
		"amqp_enabled", publisher != nil)

	return &Result{
		Archive: svc,
		Cleanup: svc.Close,
		Ready:   sqliteReady(repo, config.SQLiteDBPath),
	}, nil
}

// sqliteReady fails while the database is unreachable or a migration was
// left half applied.
func sqliteReady(repo *storage.SQLiteRepository, dbPath string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := repo.Ping(ctx); err != nil {
			return err
		}
		version, dirty, err := storage.SchemaVersion(dbPath)
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty", version)
		}
		return nil
	}
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*Result, error) {
	svc := services.NewInvoiceService(memory.New(), nil)

	f.logger.InfoContext(ctx, "Initialized memory backend")

	return &Result{
		Archive: svc,
		Cleanup: svc.Close,
		Ready:   func(context.Context) error { return nil },
	}, nil
}
