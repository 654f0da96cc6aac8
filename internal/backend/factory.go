package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/w97xqz5xm9-sketch/debt-guard/internal/amqp"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/log"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/storage"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store/memory"
	"github.com/w97xqz5xm9-sketch/debt-guard/internal/store/resilient"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentStorage)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}

	// AMQP is optional. Without it the audit trail is simply not published.
	var events *amqp.Client
	if config.AMQPURL != "" {
		events, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("failed to initialize AMQP client, continuing without audit events",
				log.FieldError, err)
			events = nil
		} else {
			f.logger.Info("initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	resilientStore := resilient.New(repo, f.logger)

	f.logger.Info("initialized sqlite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", events != nil)

	cleanup := func() error {
		if events != nil {
			events.Close()
		}
		return repo.Close()
	}

	return &BackendResult{
		Store:   resilientStore,
		Events:  events,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	var s *memory.Store
	if config.SeedDemoData {
		s = memory.NewSeeded(time.Now())
	} else {
		s = memory.New()
	}

	f.logger.Info("initialized memory backend", "seeded", config.SeedDemoData)

	return &BackendResult{Store: s, Cleanup: nil}, nil
}
