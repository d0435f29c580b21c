package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"bankcal/internal/amqp"
	"bankcal/internal/cache"
	"bankcal/internal/core"
	"bankcal/internal/recurrence"
	"bankcal/internal/storage/memory"
	"bankcal/internal/worker"
)

func mkTx(t *testing.T, id, date, desc string, cents int64) core.Transaction {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", date, err)
	}
	return core.Transaction{ID: id, Date: d, Description: desc, Amount: core.Money{Cents: cents}, Currency: "USD"}
}

// household is four months of a subscription, rent and salary plus noise.
func household(t *testing.T) []core.Transaction {
	return []core.Transaction{
		mkTx(t, "n1", "2024-01-15", "NETFLIX.COM", -1999),
		mkTx(t, "n2", "2024-02-15", "Netflix.com", -1999),
		mkTx(t, "n3", "2024-03-15", "NETFLIX COM", -1999),
		mkTx(t, "n4", "2024-04-15", "netflix.com", -1999),
		mkTx(t, "r1", "2024-01-01", "PAYMENT Landlord", -150000),
		mkTx(t, "r2", "2024-02-01", "PAYMENT Landlord", -150000),
		mkTx(t, "r3", "2024-03-01", "PAYMENT Landlord", -150000),
		mkTx(t, "r4", "2024-04-01", "PAYMENT Landlord", -150000),
		mkTx(t, "c1", "2024-02-11", "Coffee shop", -450),
		mkTx(t, "g1", "2024-03-20", "Garden centre", -8200),
	}
}

type countingSubmitter struct {
	inner *worker.Pool
	calls atomic.Int32
	delay time.Duration
}

func (c *countingSubmitter) Submit(ctx context.Context, txs []core.Transaction, opts recurrence.Options) (worker.Response, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.inner.Submit(ctx, txs, opts)
}

type recordingPublisher struct {
	msgs []*amqp.DetectionRequestMessage
	err  error
}

func (r *recordingPublisher) PublishDetectionRequest(_ context.Context, msg *amqp.DetectionRequestMessage) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

type recordingExporter struct {
	year, month int
	series      []recurrence.Series
}

func (r *recordingExporter) ExportSeries(_ context.Context, year, month int, series []recurrence.Series) (int, error) {
	r.year, r.month, r.series = year, month, series
	return len(series), nil
}

func newTestService(t *testing.T, opts ...Option) (*DetectionService, *memory.Store, *countingSubmitter) {
	t.Helper()
	pool := worker.NewPool(2, 4, nil)
	pool.Start(context.Background())
	t.Cleanup(func() { pool.Stop() })

	sub := &countingSubmitter{inner: pool}
	store := memory.New()
	results := cache.NewLRUCache[recurrence.Result](16, time.Minute)
	return NewDetectionService(store, sub, results, opts...), store, sub
}
