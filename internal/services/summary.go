package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"bankcal/internal/core"
	applog "bankcal/internal/log"
)

// BuildMonthOverview aggregates txs falling in year/month. Only the stored
// recurrence flag decides recurring versus one-off spending.
func BuildMonthOverview(year, month int, txs []core.Transaction) core.MonthOverview {
	ov := core.MonthOverview{Year: year, Month: month, ByCategory: make([]core.CategoryAmount, 0)}
	byCategory := make(map[string]int64)

	for _, tx := range txs {
		if tx.Date.Year() != year || int(tx.Date.Month()) != month {
			continue
		}
		ov.Transactions++

		magnitude := tx.Amount.Abs()
		if tx.Amount.IsOutflow() {
			ov.Expenses.Cents += magnitude
			if tx.IsRecurring {
				ov.Recurring.Cents += magnitude
			} else {
				ov.OneOff.Cents += magnitude
			}
		} else {
			ov.Income.Cents += magnitude
		}

		category := tx.Category
		if category == "" {
			category = core.CategoryFor(tx.Amount)
		}
		byCategory[string(category)] += magnitude
	}
	ov.Net.Cents = ov.Income.Cents - ov.Expenses.Cents

	for name, cents := range byCategory {
		ov.ByCategory = append(ov.ByCategory, core.CategoryAmount{Name: name, Amount: core.Money{Cents: cents}})
	}
	slices.SortFunc(ov.ByCategory, func(a, b core.CategoryAmount) int {
		if c := cmp.Compare(b.Amount.Cents, a.Amount.Cents); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return ov
}

// MonthSummary reads the month's stored transactions and aggregates them.
func (s *DetectionService) MonthSummary(ctx context.Context, year, month int) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}
	txs, err := s.repo.ListTransactionsInMonth(ctx, year, month)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("list transactions: %w", err)
	}
	ov := BuildMonthOverview(year, month, txs)
	slog.DebugContext(ctx, "Month summary built",
		applog.FieldOperation, applog.OpSummary,
		applog.FieldMonth, fmt.Sprintf("%04d-%02d", year, month),
		applog.FieldTransactions, ov.Transactions)
	return ov, nil
}
