package core

import (
	"fmt"
	"strings"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthOverview is a compact budget summary for a specific year+month.
// Expenses and the recurring/one-off split are magnitudes of outflows.
type MonthOverview struct {
	Year         int              `json:"year"`
	Month        int              `json:"month"` // 1-12
	Income       Money            `json:"income"`
	Expenses     Money            `json:"expenses"`
	Recurring    Money            `json:"recurring"`
	OneOff       Money            `json:"oneOff"`
	Net          Money            `json:"net"`
	Transactions int              `json:"transactions"`
	ByCategory   []CategoryAmount `json:"byCategory"`
}

// ParseMonth parses a YYYY-MM string into year and month.
func ParseMonth(s string) (int, int, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t.Year(), int(t.Month()), nil
}

// FirstOfMonth returns midnight UTC on the first day of year/month.
func FirstOfMonth(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
