// Package backend assembles storage and the optional messaging and export
// integrations from configuration.
package backend

import (
	"context"

	"bankcal/internal/amqp"
	"bankcal/internal/sheets"
	"bankcal/internal/storage"
)

// CleanupFunc releases everything a factory opened.
type CleanupFunc func() error

// Resources is what a factory built. Messaging and Exporter are nil when
// their integration is not configured or could not be reached.
type Resources struct {
	Repository storage.Repository
	Messaging  *amqp.Client
	Exporter   sheets.SeriesExporter
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Resources, error)
}
