package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bankcal/internal/core"
	"bankcal/internal/recurrence"
)

func TestDetectionService_ImportTransactions(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store, _ := newTestService(t, WithPublisher(pub))
	ctx := context.Background()

	in := household(t)
	in[0].IsRecurring = true

	n, err := svc.ImportTransactions(ctx, in)
	if err != nil || n != len(in) {
		t.Fatalf("ImportTransactions() = %d, %v, want %d, nil", n, err, len(in))
	}

	stored, _ := store.ListTransactions(ctx)
	for _, tx := range stored {
		if tx.IsRecurring {
			t.Errorf("imported %s kept a stale recurrence flag", tx.ID)
		}
		if tx.Category != core.Expense {
			t.Errorf("imported %s category = %q, want derived Expense", tx.ID, tx.Category)
		}
	}
	if !in[0].IsRecurring {
		t.Error("ImportTransactions() modified its input")
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Reason != "import" {
		t.Errorf("published %+v, want one import request", pub.msgs)
	}
}

func TestDetectionService_ImportPublishFailureIsNotFatal(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _, _ := newTestService(t, WithPublisher(pub))

	if _, err := svc.ImportTransactions(context.Background(), household(t)); err != nil {
		t.Errorf("ImportTransactions() error = %v, want nil when publishing fails", err)
	}
}

func TestDetectionService_ImportRejectsInvalid(t *testing.T) {
	svc, store, _ := newTestService(t)
	bad := household(t)
	bad[3].ID = " "

	_, err := svc.ImportTransactions(context.Background(), bad)
	if !errors.Is(err, recurrence.ErrInvalidTransaction) || !errors.Is(err, core.ErrEmptyID) {
		t.Fatalf("ImportTransactions() error = %v, want ErrInvalidTransaction wrapping ErrEmptyID", err)
	}
	stored, _ := store.ListTransactions(context.Background())
	if len(stored) != 0 {
		t.Errorf("stored %d transactions after a rejected import, want 0", len(stored))
	}
}

func TestDetectionService_RunDetection(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	svc.ImportTransactions(ctx, household(t))

	res, count, err := svc.RunDetection(ctx, recurrence.DefaultOptions())
	if err != nil {
		t.Fatalf("RunDetection() error = %v", err)
	}
	if count != 10 {
		t.Errorf("RunDetection() count = %d, want 10", count)
	}
	if len(res.Series) != 2 {
		t.Fatalf("RunDetection() series = %d, want 2", len(res.Series))
	}
	if res.Series[0].Key.Label != "landlord" || res.Series[1].Key.Label != "netflix com" {
		t.Errorf("series labels = %q, %q", res.Series[0].Key.Label, res.Series[1].Key.Label)
	}
	if len(res.OrphanIDs) != 2 || res.OrphanIDs[0] != "c1" || res.OrphanIDs[1] != "g1" {
		t.Errorf("OrphanIDs = %v, want [c1 g1]", res.OrphanIDs)
	}

	stored, _ := store.ListTransactions(ctx)
	for _, tx := range stored {
		want := tx.ID != "c1" && tx.ID != "g1"
		if tx.IsRecurring != want {
			t.Errorf("stored %s IsRecurring = %v, want %v", tx.ID, tx.IsRecurring, want)
		}
	}
	series, _ := store.ListSeries(ctx)
	if len(series) != 2 {
		t.Errorf("stored series = %d, want 2", len(series))
	}
}

func TestDetectionService_RunDetectionClearsStaleFlags(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	svc.ImportTransactions(ctx, household(t))
	svc.RunDetection(ctx, recurrence.DefaultOptions())

	strict := recurrence.DefaultOptions()
	strict.MinOccurrences = 5
	res, _, err := svc.RunDetection(ctx, strict)
	if err != nil {
		t.Fatalf("RunDetection() error = %v", err)
	}
	if len(res.Series) != 0 {
		t.Fatalf("series = %d, want 0 with MinOccurrences 5", len(res.Series))
	}
	stored, _ := store.ListTransactions(ctx)
	for _, tx := range stored {
		if tx.IsRecurring {
			t.Errorf("%s still flagged after a run that found nothing", tx.ID)
		}
	}
}

func TestDetectionService_DetectCaches(t *testing.T) {
	svc, _, sub := newTestService(t)
	ctx := context.Background()
	txs := household(t)

	first, err := svc.Detect(ctx, txs, recurrence.DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	second, err := svc.Detect(ctx, txs, recurrence.DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if sub.calls.Load() != 1 {
		t.Errorf("pool calls = %d, want 1 (second served from cache)", sub.calls.Load())
	}
	if len(first.Series) != len(second.Series) {
		t.Errorf("cached result differs: %d vs %d series", len(first.Series), len(second.Series))
	}

	changed := recurrence.DefaultOptions()
	changed.DayFlexToleranceDays = 2
	if _, err := svc.Detect(ctx, txs, changed); err != nil {
		t.Fatal(err)
	}
	txs[0].Amount.Cents = -2099
	if _, err := svc.Detect(ctx, txs, recurrence.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if sub.calls.Load() != 3 {
		t.Errorf("pool calls = %d, want 3 (options and data changes miss the cache)", sub.calls.Load())
	}
}

func TestDetectionService_DetectCoalescesConcurrentCalls(t *testing.T) {
	svc, _, sub := newTestService(t)
	sub.delay = 50 * time.Millisecond
	txs := household(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Detect(context.Background(), txs, recurrence.DefaultOptions()); err != nil {
				t.Errorf("Detect() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := sub.calls.Load(); got != 1 {
		t.Errorf("pool calls = %d, want 1", got)
	}
}

func TestDetectionService_DetectCallerCancelled(t *testing.T) {
	svc, _, sub := newTestService(t)
	sub.delay = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := svc.Detect(ctx, household(t), recurrence.DefaultOptions()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Detect() error = %v, want DeadlineExceeded", err)
	}
}

func TestDetectionService_DetectInvalidOptions(t *testing.T) {
	svc, _, _ := newTestService(t)
	opts := recurrence.DefaultOptions()
	opts.MaxSpanDays = 10

	if _, err := svc.Detect(context.Background(), household(t), opts); !errors.Is(err, recurrence.ErrInvalidOptions) {
		t.Errorf("Detect() error = %v, want ErrInvalidOptions", err)
	}
}

func TestDetectionService_SeriesForMonth(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	svc.ImportTransactions(ctx, household(t))
	svc.RunDetection(ctx, recurrence.DefaultOptions())

	got, err := svc.SeriesForMonth(ctx, 2024, 2)
	if err != nil {
		t.Fatalf("SeriesForMonth() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SeriesForMonth() = %d series, want 2", len(got))
	}
	for _, s := range got {
		if s.Representative.Date.Month() != 2 {
			t.Errorf("series %s representative %s not in February", s.ID, s.Representative.Date)
		}
	}

	none, err := svc.SeriesForMonth(ctx, 2024, 6)
	if err != nil || len(none) != 0 {
		t.Errorf("SeriesForMonth(June) = %d, %v, want 0, nil", len(none), err)
	}
	if _, err := svc.SeriesForMonth(ctx, 2024, 0); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("SeriesForMonth(month 0) error = %v, want ErrInvalidMonth", err)
	}
}

func TestDetectionService_ExportMonth(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		if _, err := svc.ExportMonth(ctx, 2024, 3); !errors.Is(err, ErrExportDisabled) {
			t.Errorf("ExportMonth() error = %v, want ErrExportDisabled", err)
		}
	})

	t.Run("exports selected series", func(t *testing.T) {
		exp := &recordingExporter{}
		svc, _, _ := newTestService(t, WithExporter(exp))
		svc.ImportTransactions(ctx, household(t))
		svc.RunDetection(ctx, recurrence.DefaultOptions())

		n, err := svc.ExportMonth(ctx, 2024, 3)
		if err != nil || n != 2 {
			t.Fatalf("ExportMonth() = %d, %v, want 2, nil", n, err)
		}
		if exp.year != 2024 || exp.month != 3 || len(exp.series) != 2 {
			t.Errorf("exporter got %d-%d with %d series", exp.year, exp.month, len(exp.series))
		}
	})
}

func TestDetectionService_MonthSummary(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	svc.ImportTransactions(ctx, household(t))
	svc.RunDetection(ctx, recurrence.DefaultOptions())

	ov, err := svc.MonthSummary(ctx, 2024, 2)
	if err != nil {
		t.Fatalf("MonthSummary() error = %v", err)
	}
	if ov.Transactions != 3 {
		t.Errorf("Transactions = %d, want 3", ov.Transactions)
	}
	if ov.Recurring.Cents != 151999 || ov.OneOff.Cents != 450 {
		t.Errorf("Recurring/OneOff = %d/%d, want 151999/450", ov.Recurring.Cents, ov.OneOff.Cents)
	}
}

func TestDetectionService_Upcoming(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	svc.ImportTransactions(ctx, household(t))
	svc.RunDetection(ctx, recurrence.DefaultOptions())

	got, err := svc.Upcoming(ctx, 2024, 5)
	if err != nil {
		t.Fatalf("Upcoming() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Upcoming() = %d, want 2", len(got))
	}
	if got[0].ExpectedDate.String() != "2024-05-01" || got[1].ExpectedDate.String() != "2024-05-15" {
		t.Errorf("expected dates = %s, %s", got[0].ExpectedDate, got[1].ExpectedDate)
	}
}
