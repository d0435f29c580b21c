// Package memory is an in-process storage backend for development and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"bankcal/internal/core"
	"bankcal/internal/recurrence"
	"bankcal/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	txs    map[string]core.Transaction
	series []recurrence.Series
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{txs: make(map[string]core.Transaction)}
}

func (s *Store) SaveTransactions(_ context.Context, txs []core.Transaction) (int, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txs {
		s.txs[t.ID] = t.WithRecurring(t.IsRecurring)
	}
	return len(txs), nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(core.Transaction) bool { return true }), nil
}

func (s *Store) ListTransactionsInMonth(_ context.Context, year int, month int) ([]core.Transaction, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(t core.Transaction) bool {
		return t.Date.Year() == year && int(t.Date.Month()) == month
	}), nil
}

// sorted must be called with the lock held.
func (s *Store) sorted(keep func(core.Transaction) bool) []core.Transaction {
	out := make([]core.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		if keep(t) {
			out = append(out, t.WithRecurring(t.IsRecurring))
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) UpdateRecurrence(_ context.Context, flags map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, recurring := range flags {
		if t, ok := s.txs[id]; ok {
			s.txs[id] = t.WithRecurring(recurring)
		}
	}
	return nil
}

func (s *Store) ReplaceSeries(_ context.Context, series []recurrence.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = cloneSeries(series)
	return nil
}

func (s *Store) ListSeries(_ context.Context) ([]recurrence.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSeries(s.series), nil
}

func (s *Store) Close() error { return nil }

func cloneSeries(in []recurrence.Series) []recurrence.Series {
	out := make([]recurrence.Series, len(in))
	for i, s := range in {
		s.Occurrences = slices.Clone(s.Occurrences)
		s.Explanation.Occurrences = slices.Clone(s.Explanation.Occurrences)
		s.Explanation.Gaps = slices.Clone(s.Explanation.Gaps)
		s.Explanation.Notes = slices.Clone(s.Explanation.Notes)
		out[i] = s
	}
	return out
}
