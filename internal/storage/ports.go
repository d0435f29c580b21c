// Package storage persists imported transactions and detected series.
package storage

import (
	"context"
	"errors"

	"bankcal/internal/core"
	"bankcal/internal/recurrence"
)

var ErrNotFound = errors.New("not found")

// Repository is the persistence port the services depend on.
//
// Transactions are keyed by id: saving an id that already exists replaces the
// stored row. Lists are ordered by date, then id.
type Repository interface {
	SaveTransactions(ctx context.Context, txs []core.Transaction) (int, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListTransactionsInMonth(ctx context.Context, year int, month int) ([]core.Transaction, error)
	// UpdateRecurrence sets IsRecurring for every listed id. Unknown ids are ignored.
	UpdateRecurrence(ctx context.Context, flags map[string]bool) error
	// ReplaceSeries swaps the stored series set for series, atomically.
	ReplaceSeries(ctx context.Context, series []recurrence.Series) error
	ListSeries(ctx context.Context) ([]recurrence.Series, error)
	Close() error
}

// MonthBounds returns the inclusive first day and exclusive next-month day
// of year/month, as stored date strings.
func MonthBounds(year, month int) (string, string) {
	first := core.NewDate(year, month, 1)
	next := core.Date{Time: first.AddDate(0, 1, 0)}
	return first.String(), next.String()
}
