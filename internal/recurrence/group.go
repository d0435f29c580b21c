package recurrence

import "bankcal/internal/core"

// Direction is the flow of money relative to the account holder.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// GroupKey identifies a bucket of candidate occurrences. It is comparable and
// used directly as a map key.
type GroupKey struct {
	Label     string    `json:"label"`
	Direction Direction `json:"direction"`
	Band      Band      `json:"band"`
}

// String is the canonical "label|direction|band" form, used for ids and logs.
func (k GroupKey) String() string {
	return k.Label + "|" + string(k.Direction) + "|" + string(k.Band)
}

func DirectionOf(amount core.Money) Direction {
	if amount.IsOutflow() {
		return DirectionOut
	}
	return DirectionIn
}

func (n *Normalizer) keyFor(tx core.Transaction) GroupKey {
	return GroupKey{
		Label:     n.Normalize(tx.Label()),
		Direction: DirectionOf(tx.Amount),
		Band:      ClassifyBand(tx.Amount),
	}
}

// KeyFor derives the grouping key of a single transaction.
func KeyFor(tx core.Transaction, substrings []string) GroupKey {
	return NewNormalizer(substrings).keyFor(tx)
}

// Group buckets transactions by key. Member order inside a bucket is not
// meaningful; the validator re-sorts.
func Group(transactions []core.Transaction, substrings []string) map[GroupKey][]core.Transaction {
	n := NewNormalizer(substrings)
	buckets := make(map[GroupKey][]core.Transaction)
	for _, tx := range transactions {
		key := n.keyFor(tx)
		buckets[key] = append(buckets[key], tx)
	}
	return buckets
}
