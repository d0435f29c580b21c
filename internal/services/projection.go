package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"bankcal/internal/core"
	"bankcal/internal/recurrence"
)

// Projector is the strategy for placing a series' next charge on the calendar.
type Projector interface {
	// Project returns the expected date in year/month given the last known
	// occurrence.
	Project(anchor core.Date, year int, month time.Month) core.Date
}

// MonthlyProjector keeps the anchor's day of month, clamped to month end.
type MonthlyProjector struct{}

func (MonthlyProjector) Project(anchor core.Date, year int, month time.Month) core.Date {
	day := anchor.Day()
	lastDayOfMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDayOfMonth {
		day = lastDayOfMonth
	}
	return core.NewDate(year, int(month), day)
}

var projectionStrategies = map[core.RepetitionTypes]Projector{
	core.Monthly: MonthlyProjector{},
}

// GetProjector returns the projector registered for cadence.
func GetProjector(cadence core.RepetitionTypes) (Projector, error) {
	p, ok := projectionStrategies[cadence]
	if !ok {
		return nil, fmt.Errorf("unknown cadence: %s", cadence)
	}
	return p, nil
}

// RegisterProjector adds or replaces the projector for cadence. Not safe for
// use concurrently with projections.
func RegisterProjector(cadence core.RepetitionTypes, p Projector) {
	projectionStrategies[cadence] = p
}

// UpcomingPayment is a charge a series is expected to produce but has not yet.
type UpcomingPayment struct {
	SeriesID       string               `json:"seriesId"`
	Label          string               `json:"label"`
	Direction      recurrence.Direction `json:"direction"`
	ExpectedDate   core.Date            `json:"expectedDate"`
	ExpectedAmount core.Money           `json:"expectedAmount"`
	Currency       string               `json:"currency"`
	LastSeen       core.Date            `json:"lastSeen"`
}

// ProjectUpcoming lists the series expected to charge in year/month that have
// no occurrence there. Series are considered ended once more than
// maxSkippedMonths months have passed since their last occurrence.
func ProjectUpcoming(series []recurrence.Series, year, month, maxSkippedMonths int) ([]UpcomingPayment, error) {
	target := core.Date{Time: core.FirstOfMonth(year, month)}
	targetIdx := target.MonthIndex()

	out := make([]UpcomingPayment, 0)
	for _, s := range series {
		if len(s.Occurrences) == 0 {
			continue
		}
		first := s.Occurrences[0]
		last := s.Occurrences[len(s.Occurrences)-1]
		if targetIdx <= first.Date.MonthIndex() || targetIdx-last.Date.MonthIndex() > maxSkippedMonths+1 {
			continue
		}
		if hasOccurrenceIn(s, targetIdx) {
			continue
		}

		projector, err := GetProjector(s.Cadence)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", s.ID, err)
		}
		out = append(out, UpcomingPayment{
			SeriesID:       s.ID,
			Label:          s.Key.Label,
			Direction:      s.Key.Direction,
			ExpectedDate:   projector.Project(last.Date, year, time.Month(month)),
			ExpectedAmount: last.Amount,
			Currency:       s.Currency,
			LastSeen:       last.Date,
		})
	}

	slices.SortFunc(out, func(a, b UpcomingPayment) int {
		if c := a.ExpectedDate.Compare(b.ExpectedDate.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.SeriesID, b.SeriesID)
	})
	return out, nil
}

func hasOccurrenceIn(s recurrence.Series, monthIdx int) bool {
	for _, occ := range s.Occurrences {
		if occ.Date.MonthIndex() == monthIdx {
			return true
		}
	}
	return false
}

// Upcoming projects stored series onto year/month.
func (s *DetectionService) Upcoming(ctx context.Context, year, month int) ([]UpcomingPayment, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	series, err := s.repo.ListSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return ProjectUpcoming(series, year, month, s.defaults.MaxSkippedMonths)
}
