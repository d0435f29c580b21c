package recurrence

import (
	"testing"

	"bankcal/internal/core"
)

// mkTx builds a transaction from a YYYY-MM-DD date and a decimal amount.
func mkTx(t *testing.T, id, date, desc, amount string) core.Transaction {
	t.Helper()
	d, err := core.ParseDate(date)
	if err != nil {
		t.Fatalf("bad date %q: %v", date, err)
	}
	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		t.Fatalf("bad amount %q: %v", amount, err)
	}
	return core.Transaction{
		ID:          id,
		Date:        d,
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Currency:    "$",
		Category:    core.CategoryFor(core.Money{Cents: cents}),
	}
}

func ids(txs []core.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
