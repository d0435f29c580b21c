// Package services orchestrates detection across storage, the worker pool,
// messaging and export.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"bankcal/internal/amqp"
	"bankcal/internal/cache"
	"bankcal/internal/core"
	applog "bankcal/internal/log"
	"bankcal/internal/recurrence"
	"bankcal/internal/sheets"
	"bankcal/internal/storage"
	"bankcal/internal/worker"
)

var (
	ErrExportDisabled = errors.New("series export is not configured")
	ErrInvalidMonth   = errors.New("invalid month")
)

// Submitter runs a detection, typically on a worker.Pool.
type Submitter interface {
	Submit(ctx context.Context, transactions []core.Transaction, opts recurrence.Options) (worker.Response, error)
}

// RequestPublisher queues asynchronous detection runs.
type RequestPublisher interface {
	PublishDetectionRequest(ctx context.Context, msg *amqp.DetectionRequestMessage) error
}

// DetectionService ties stored transactions to recurrence detection.
type DetectionService struct {
	repo      storage.Repository
	pool      Submitter
	publisher RequestPublisher
	exporter  sheets.SeriesExporter
	results   cache.Cache[recurrence.Result]
	flights   singleflight.Group
	defaults  recurrence.Options
}

// Option configures optional collaborators.
type Option func(*DetectionService)

// WithPublisher enables detection requests after each import.
func WithPublisher(p RequestPublisher) Option {
	return func(s *DetectionService) { s.publisher = p }
}

// WithExporter enables ExportMonth.
func WithExporter(e sheets.SeriesExporter) Option {
	return func(s *DetectionService) { s.exporter = e }
}

// WithDefaults replaces the options used when a caller passes none.
func WithDefaults(opts recurrence.Options) Option {
	return func(s *DetectionService) { s.defaults = opts }
}

func NewDetectionService(repo storage.Repository, pool Submitter, results cache.Cache[recurrence.Result], opts ...Option) *DetectionService {
	s := &DetectionService{
		repo:     repo,
		pool:     pool,
		results:  results,
		defaults: recurrence.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the options used when a caller passes none.
func (s *DetectionService) Defaults() recurrence.Options {
	return s.defaults
}

// ImportTransactions validates and stores txs, then asks for a detection run.
// A missing category is derived from the amount sign. Publishing is best
// effort: the import succeeds once the rows are stored.
func (s *DetectionService) ImportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	prepared := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return 0, fmt.Errorf("%w at index %d: %w", recurrence.ErrInvalidTransaction, i, err)
		}
		if tx.Category == "" {
			tx.Category = core.CategoryFor(tx.Amount)
		}
		prepared[i] = tx.WithRecurring(false)
	}

	n, err := s.repo.SaveTransactions(ctx, prepared)
	if err != nil {
		return 0, fmt.Errorf("save transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions imported",
		applog.FieldOperation, applog.OpImport,
		applog.FieldTransactions, n)

	if s.publisher != nil && n > 0 {
		msg := amqp.NewDetectionRequestMessage(amqp.ReasonImport, nil)
		if err := s.publisher.PublishDetectionRequest(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish detection request",
				applog.FieldRequestID, msg.RequestID,
				applog.FieldError, err)
		}
	}
	return n, nil
}

// Detect runs detection over txs without touching storage. Identical inputs
// are served from the result cache, and concurrent identical calls share one
// run. A caller that gives up does not cancel the shared run.
func (s *DetectionService) Detect(ctx context.Context, txs []core.Transaction, opts recurrence.Options) (recurrence.Result, error) {
	key, err := fingerprint(txs, opts)
	if err != nil {
		return recurrence.Result{}, err
	}
	if res, ok := s.results.Get(key); ok {
		slog.DebugContext(ctx, "Detection served from cache", applog.FieldCacheHit, true)
		return res, nil
	}

	ch := s.flights.DoChan(key, func() (any, error) {
		if res, ok := s.results.Get(key); ok {
			return res, nil
		}
		resp, err := s.pool.Submit(context.WithoutCancel(ctx), txs, opts)
		if err != nil {
			return recurrence.Result{}, err
		}
		s.results.Set(key, resp.Result)
		return resp.Result, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return recurrence.Result{}, r.Err
		}
		return r.Val.(recurrence.Result), nil
	case <-ctx.Done():
		return recurrence.Result{}, ctx.Err()
	}
}

// RunDetection detects over every stored transaction, stores the recurrence
// flags and the series, and returns the result with the transaction count.
func (s *DetectionService) RunDetection(ctx context.Context, opts recurrence.Options) (recurrence.Result, int, error) {
	start := time.Now()

	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return recurrence.Result{}, 0, fmt.Errorf("list transactions: %w", err)
	}

	res, err := s.Detect(ctx, txs, opts)
	if err != nil {
		return recurrence.Result{}, len(txs), err
	}

	annotated := recurrence.Annotate(txs, res.Series)
	flags := make(map[string]bool, len(annotated))
	for _, tx := range annotated {
		// Duplicate ids share a flag; any claimed copy wins.
		flags[tx.ID] = flags[tx.ID] || tx.IsRecurring
	}
	if err := s.repo.UpdateRecurrence(ctx, flags); err != nil {
		return recurrence.Result{}, len(txs), fmt.Errorf("store recurrence flags: %w", err)
	}
	if err := s.repo.ReplaceSeries(ctx, res.Series); err != nil {
		return recurrence.Result{}, len(txs), fmt.Errorf("store series: %w", err)
	}

	slog.InfoContext(ctx, "Detection run stored",
		applog.NewFields().
			WithOperation(applog.OpDetect).
			WithDetection(len(txs), len(res.Series), len(res.OrphanIDs)).
			ToSlice()...,
	)
	slog.DebugContext(ctx, "Detection timing", applog.FieldDuration, time.Since(start).Milliseconds())
	return res, len(txs), nil
}

// SeriesForMonth returns the stored series active in year/month, each with
// its representative set to that month's occurrence.
func (s *DetectionService) SeriesForMonth(ctx context.Context, year, month int) ([]recurrence.Series, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	series, err := s.repo.ListSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return recurrence.SelectSeriesForMonth(series, core.FirstOfMonth(year, month)), nil
}

// ExportMonth sends the month's series to the configured exporter.
func (s *DetectionService) ExportMonth(ctx context.Context, year, month int) (int, error) {
	if s.exporter == nil {
		return 0, ErrExportDisabled
	}
	series, err := s.SeriesForMonth(ctx, year, month)
	if err != nil {
		return 0, err
	}
	n, err := s.exporter.ExportSeries(ctx, year, month, series)
	if err != nil {
		return 0, fmt.Errorf("export series: %w", err)
	}
	slog.InfoContext(ctx, "Series exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldMonth, fmt.Sprintf("%04d-%02d", year, month),
		applog.FieldSeries, n)
	return n, nil
}

type fingerprintTx struct {
	ID          string       `json:"i"`
	Date        string       `json:"d"`
	Description string       `json:"s"`
	Source      *core.Source `json:"src,omitempty"`
	Category    string       `json:"k"`
	Cents       int64        `json:"a"`
	Currency    string       `json:"c"`
}

// fingerprint hashes every transaction field that can surface in a Result.
// Recurrence flags are output, not input, so they are left out.
func fingerprint(txs []core.Transaction, opts recurrence.Options) (string, error) {
	rows := make([]fingerprintTx, len(txs))
	for i, tx := range txs {
		rows[i] = fingerprintTx{
			ID:          tx.ID,
			Date:        tx.Date.String(),
			Description: tx.Description,
			Source:      tx.Source,
			Category:    string(tx.Category),
			Cents:       tx.Amount.Cents,
			Currency:    tx.Currency,
		}
	}
	b, err := json.Marshal(struct {
		Options recurrence.Options `json:"o"`
		Txs     []fingerprintTx    `json:"t"`
	}{opts, rows})
	if err != nil {
		return "", fmt.Errorf("fingerprint detection input: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
