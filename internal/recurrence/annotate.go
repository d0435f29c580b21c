package recurrence

import "bankcal/internal/core"

// Annotate returns a copy of transactions with IsRecurring set from series
// membership. The input slice is never modified.
func Annotate(transactions []core.Transaction, series []Series) []core.Transaction {
	out := make([]core.Transaction, len(transactions))

	// No series still has to clear flags left over from a previous run.
	if len(series) == 0 {
		for i, tx := range transactions {
			out[i] = tx.WithRecurring(false)
		}
		return out
	}

	claimed := claimedIDs(series)
	for i, tx := range transactions {
		_, ok := claimed[tx.ID]
		out[i] = tx.WithRecurring(ok)
	}
	return out
}

// OrphanIDs lists the distinct ids, in input order, not claimed by any series.
func OrphanIDs(transactions []core.Transaction, series []Series) []string {
	claimed := claimedIDs(series)
	seen := make(map[string]struct{}, len(transactions))
	orphans := make([]string, 0)
	for _, tx := range transactions {
		if _, ok := claimed[tx.ID]; ok {
			continue
		}
		if _, dup := seen[tx.ID]; dup {
			continue
		}
		seen[tx.ID] = struct{}{}
		orphans = append(orphans, tx.ID)
	}
	return orphans
}

func claimedIDs(series []Series) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, s := range series {
		for _, tx := range s.Occurrences {
			ids[tx.ID] = struct{}{}
		}
	}
	return ids
}
