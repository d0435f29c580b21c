package recurrence

import (
	"math"
	"slices"
	"strings"
	"time"

	"bankcal/internal/core"
)

// validateBucket runs the gates in order. A rejected bucket yields ok=false
// and no error.
func validateBucket(key GroupKey, bucket []core.Transaction, opts Options) (Series, bool) {
	members := sortByDate(bucket)
	if len(members) < opts.MinOccurrences {
		return Series{}, false
	}

	// The median comes from the raw bucket so the filter cannot feed back on itself.
	median := medianAbs(members)
	radius := ToleranceRadius(median)
	kept := make([]core.Transaction, 0, len(members))
	for _, tx := range members {
		if math.Abs(float64(tx.Amount.Abs())-median) <= radius {
			kept = append(kept, tx)
		}
	}
	if len(kept) < opts.MinOccurrences {
		return Series{}, false
	}

	// Span counts both end days.
	span := kept[0].Date.DaysUntil(kept[len(kept)-1].Date) + 1
	if span < opts.MinSpanDays || span > opts.MaxSpanDays {
		return Series{}, false
	}

	months := groupByMonth(kept)
	if len(months) < opts.MinOccurrences {
		return Series{}, false
	}
	if !cadenceConsistent(months, opts) {
		return Series{}, false
	}
	occurrences := latestPerMonth(months)

	return newSeries(key, occurrences), true
}

// sortByDate returns a sorted copy. Same-day ties fall back to id so the
// result does not depend on input order.
func sortByDate(txs []core.Transaction) []core.Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		if c := a.Date.Midnight().Compare(b.Date.Midnight()); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// medianAbs is the middle absolute amount in cents, or the mean of the two
// middle values for even counts.
func medianAbs(txs []core.Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}
	vals := make([]float64, len(txs))
	for i, tx := range txs {
		vals[i] = float64(tx.Amount.Abs())
	}
	return median(vals)
}

func median(vals []float64) float64 {
	sorted := slices.Clone(vals)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// groupByMonth splits sorted members into calendar months. Groups and their
// members stay in date order.
func groupByMonth(sorted []core.Transaction) [][]core.Transaction {
	var out [][]core.Transaction
	for _, tx := range sorted {
		if n := len(out); n > 0 && out[n-1][0].Date.MonthIndex() == tx.Date.MonthIndex() {
			out[n-1] = append(out[n-1], tx)
			continue
		}
		out = append(out, []core.Transaction{tx})
	}
	return out
}

// latestPerMonth keeps the last-dated member of each month group.
func latestPerMonth(months [][]core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(months))
	for i, members := range months {
		out[i] = members[len(members)-1]
	}
	return out
}

// cadenceConsistent reports whether a chain of charges, one per month group,
// lands roughly a whole number of months apart. Any member of a month may
// carry the chain, so a correction posted later in the month does not break
// it. Up to MaxSkippedMonths missing months are allowed.
func cadenceConsistent(months [][]core.Transaction, opts Options) bool {
	reachable := months[0]
	for _, members := range months[1:] {
		next := make([]core.Transaction, 0, len(members))
		for _, cur := range members {
			if slices.ContainsFunc(reachable, func(prev core.Transaction) bool {
				return monthStepFits(prev.Date, cur.Date, opts)
			}) {
				next = append(next, cur)
			}
		}
		if len(next) == 0 {
			return false
		}
		reachable = next
	}
	return true
}

// monthStepFits checks cur sits within DayFlexToleranceDays of prev advanced
// by a whole number of months. Neighbouring month counts are tried too so a
// charge slipping across a month boundary (Jan 31 -> Mar 1) still matches.
func monthStepFits(prev, cur core.Date, opts Options) bool {
	maxStep := opts.MaxSkippedMonths + 1
	step := cur.MonthIndex() - prev.MonthIndex()
	if step < 1 || step > maxStep {
		return false
	}
	for k := step - 1; k <= step+1; k++ {
		if k < 1 || k > maxStep {
			continue
		}
		if absInt(addMonthsClamped(prev, k).DaysUntil(cur)) <= opts.DayFlexToleranceDays {
			return true
		}
	}
	return false
}

// addMonthsClamped moves d forward n months keeping the day of month,
// clamped to the target month's last day (Jan 31 + 1 -> Feb 28/29).
func addMonthsClamped(d core.Date, n int) core.Date {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > last {
		day = last
	}
	return core.Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
