package services

import (
	"testing"

	"bankcal/internal/core"
)

func TestBuildMonthOverview(t *testing.T) {
	rent := mkTx(t, "r", "2024-03-01", "Rent", -150000)
	rent.IsRecurring = true
	salary := mkTx(t, "s", "2024-03-25", "Salary", 300000)
	salary.IsRecurring = true
	salary.Category = core.Income
	coffee := mkTx(t, "c", "2024-03-10", "Coffee", -450)
	refund := mkTx(t, "f", "2024-03-12", "Refund", 0)
	other := mkTx(t, "o", "2024-04-01", "Rent", -150000)

	ov := BuildMonthOverview(2024, 3, []core.Transaction{rent, salary, coffee, refund, other})

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"income", ov.Income.Cents, 300000},
		{"expenses", ov.Expenses.Cents, 150450},
		{"recurring", ov.Recurring.Cents, 150000},
		{"one-off", ov.OneOff.Cents, 450},
		{"net", ov.Net.Cents, 149550},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("BuildMonthOverview() %s = %d, want %d", tt.name, tt.got, tt.want)
			}
		})
	}

	if ov.Transactions != 4 {
		t.Errorf("Transactions = %d, want 4 (April row excluded)", ov.Transactions)
	}
	if len(ov.ByCategory) != 2 || ov.ByCategory[0].Name != "Income" || ov.ByCategory[1].Name != "Expense" {
		t.Errorf("ByCategory = %+v, want Income then Expense", ov.ByCategory)
	}
	if ov.ByCategory[1].Amount.Cents != 150450 {
		t.Errorf("Expense total = %d, want 150450", ov.ByCategory[1].Amount.Cents)
	}
}

func TestBuildMonthOverview_Empty(t *testing.T) {
	ov := BuildMonthOverview(2024, 1, nil)
	if ov.Transactions != 0 || ov.Net.Cents != 0 || ov.ByCategory == nil {
		t.Errorf("BuildMonthOverview(nil) = %+v", ov)
	}
}
