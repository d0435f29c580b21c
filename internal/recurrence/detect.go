// Package recurrence detects recurring monthly obligations in a set of bank
// transactions.
//
// Detection is pure and synchronous: transactions are bucketed by a grouping
// key (normalized label, direction, amount band), each bucket is validated
// against occurrence, amount, span and cadence gates, and accepted buckets
// become Series. The same input always yields the same output.
package recurrence

import (
	"fmt"
	"slices"
	"strings"

	"bankcal/internal/core"
)

// Series is a validated recurring obligation with one occurrence per month.
type Series struct {
	ID             string               `json:"id"`
	Key            GroupKey             `json:"key"`
	Cadence        core.RepetitionTypes `json:"cadence"`
	Occurrences    []core.Transaction   `json:"occurrences"`
	Representative core.Transaction     `json:"representative"`
	Currency       string               `json:"currency"`
	Explanation    Explanation          `json:"explanation"`
}

// Result is the outcome of a detection run.
type Result struct {
	Series    []Series `json:"series"`
	OrphanIDs []string `json:"orphanIds"`
}

func newSeries(key GroupKey, occurrences []core.Transaction) Series {
	latest := occurrences[len(occurrences)-1]
	return Series{
		ID:             SeriesID(key),
		Key:            key,
		Cadence:        core.Monthly,
		Occurrences:    occurrences,
		Representative: latest,
		Currency:       latest.Currency,
		Explanation:    Explain(occurrences, latest.Currency),
	}
}

// OccurrenceIDs lists the ids of the series' occurrences in date order.
func (s Series) OccurrenceIDs() []string {
	ids := make([]string, len(s.Occurrences))
	for i, tx := range s.Occurrences {
		ids[i] = tx.ID
	}
	return ids
}

// Detect finds every recurring series in transactions.
//
// Malformed options or transactions fail the whole call; nothing partial is
// returned. Duplicate transaction ids are not merged: each copy is grouped on
// its own and both copies are flagged if either is claimed.
//
// Currency is not part of the grouping key: input is assumed to be in a single
// currency, and a bucket mixing symbols takes the latest occurrence's.
func Detect(transactions []core.Transaction, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	for i, tx := range transactions {
		if err := tx.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w at index %d: %w", ErrInvalidTransaction, i, err)
		}
	}

	series := make([]Series, 0)
	for key, bucket := range Group(transactions, opts.GroupingSubstrings) {
		if s, ok := validateBucket(key, bucket, opts); ok {
			series = append(series, s)
		}
	}
	sortSeries(series)

	return Result{
		Series:    series,
		OrphanIDs: OrphanIDs(transactions, series),
	}, nil
}

// sortSeries orders by first occurrence, then key, so map iteration order
// never leaks into results.
func sortSeries(series []Series) {
	slices.SortFunc(series, func(a, b Series) int {
		if c := a.Occurrences[0].Date.Compare(b.Occurrences[0].Date.Time); c != 0 {
			return c
		}
		return strings.Compare(a.Key.String(), b.Key.String())
	})
}
