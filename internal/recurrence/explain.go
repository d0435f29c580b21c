package recurrence

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bankcal/internal/core"
)

type OccurrenceRef struct {
	ID   string    `json:"id"`
	Date core.Date `json:"date"`
}

type Gap struct {
	FromID string    `json:"fromId"`
	From   core.Date `json:"from"`
	ToID   string    `json:"toId"`
	To     core.Date `json:"to"`
	Days   int       `json:"days"`
}

// AmountDelta summarises absolute deviation from the median, in currency units.
type AmountDelta struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Average  float64 `json:"average"`
	Currency string  `json:"currency"`
}

// Explanation describes why a series was accepted. Always derived from the
// occurrence list; never edit one in place.
type Explanation struct {
	Occurrences     []OccurrenceRef `json:"occurrences"`
	Gaps            []Gap           `json:"gaps"`
	MinGapDays      int             `json:"minGapDays"`
	MaxGapDays      int             `json:"maxGapDays"`
	MaxWeekdayDrift int             `json:"maxWeekdayDrift"`
	AmountDelta     AmountDelta     `json:"amountDelta"`
	Notes           []string        `json:"notes"`
}

// Explain computes descriptive statistics for an ordered occurrence list.
func Explain(occurrences []core.Transaction, currency string) Explanation {
	ex := Explanation{
		Occurrences: make([]OccurrenceRef, 0, len(occurrences)),
		Gaps:        make([]Gap, 0, max(len(occurrences)-1, 0)),
		AmountDelta: AmountDelta{Currency: currency},
	}
	for _, tx := range occurrences {
		ex.Occurrences = append(ex.Occurrences, OccurrenceRef{ID: tx.ID, Date: tx.Date})
	}
	if len(occurrences) == 0 {
		return ex
	}

	ex.MinGapDays = math.MaxInt
	for i := 1; i < len(occurrences); i++ {
		a, b := occurrences[i-1], occurrences[i]
		days := a.Date.DaysUntil(b.Date)
		ex.Gaps = append(ex.Gaps, Gap{FromID: a.ID, From: a.Date, ToID: b.ID, To: b.Date, Days: days})
		ex.MinGapDays = min(ex.MinGapDays, days)
		ex.MaxGapDays = max(ex.MaxGapDays, days)
		drift := absInt(int(b.Date.Weekday()) - int(a.Date.Weekday()))
		ex.MaxWeekdayDrift = max(ex.MaxWeekdayDrift, drift)
	}
	if len(ex.Gaps) == 0 {
		ex.MinGapDays = 0
	}

	amounts := make([]float64, len(occurrences))
	for i, tx := range occurrences {
		amounts[i] = math.Abs(tx.Amount.Units())
	}
	mid := median(amounts)
	deltas := make([]float64, len(amounts))
	for i, a := range amounts {
		deltas[i] = math.Abs(a - mid)
	}
	ex.AmountDelta.Min = floats.Min(deltas)
	ex.AmountDelta.Max = floats.Max(deltas)
	ex.AmountDelta.Average = stat.Mean(deltas, nil)

	ex.Notes = append(ex.Notes, fmt.Sprintf("Median amount %s across %d occurrences",
		core.FromUnits(mid).Format(currency), len(occurrences)))
	if skipped := skippedMonths(occurrences); skipped > 0 {
		ex.Notes = append(ex.Notes, fmt.Sprintf("%d month(s) without a charge inside the series", skipped))
	}
	return ex
}

func skippedMonths(occurrences []core.Transaction) int {
	if len(occurrences) < 2 {
		return 0
	}
	first := occurrences[0].Date.MonthIndex()
	last := occurrences[len(occurrences)-1].Date.MonthIndex()
	return last - first + 1 - len(occurrences)
}
