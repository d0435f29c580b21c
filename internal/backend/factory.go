package backend

import (
	"context"
	"errors"
	"fmt"

	"bankcal/internal/amqp"
	applog "bankcal/internal/log"
	"bankcal/internal/sheets"
	gsheet "bankcal/internal/sheets/google"
	"bankcal/internal/storage"
	"bankcal/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger

	dialAMQP    func(url, exchange, queue, results string) (*amqp.Client, error)
	newExporter func(ctx context.Context, spreadsheetID, sheetBase string) (sheets.SeriesExporter, error)
}

func NewFactory(logger *applog.Logger) *DefaultFactory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger:   logger.WithComponent(applog.ComponentBackend),
		dialAMQP: amqp.NewClient,
		newExporter: func(ctx context.Context, id, base string) (sheets.SeriesExporter, error) {
			return gsheet.NewWithCredentials(ctx, id, base)
		},
	}
}

// Create opens the repository, then the optional integrations. AMQP and
// Sheets failures are logged and leave the integration disabled; a storage
// failure is fatal.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Resources, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.createRepository(config)
	if err != nil {
		return nil, err
	}
	res := &Resources{Repository: repo}

	if config.AMQPURL != "" {
		client, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, config.AMQPResultsQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without messaging", applog.FieldError, err)
		} else {
			res.Messaging = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue,
				"results_queue", config.AMQPResultsQueue)
		}
	}

	if config.GoogleSpreadsheetID != "" {
		exp, err := f.newExporter(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize Google Sheets export, continuing without it", applog.FieldError, err)
		} else {
			res.Exporter = exp
			f.logger.InfoContext(ctx, "Initialized Google Sheets export", "sheet", config.GoogleSheetName)
		}
	}

	res.Cleanup = func() error {
		var errs []error
		if res.Messaging != nil {
			errs = append(errs, res.Messaging.Close())
		}
		errs = append(errs, repo.Close())
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createRepository(config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
