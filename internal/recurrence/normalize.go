package recurrence

import (
	"regexp"
	"strings"
)

var (
	leadingFiller = regexp.MustCompile(`^\s*(?:to|from|transfer|payment)\b`)
	nonAlnumRun   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalizer turns transaction labels into grouping tokens. Caller-supplied
// substrings are merchant aliases: a label containing one collapses to it.
type Normalizer struct {
	aliases []string
}

// NewNormalizer prepares the alias list once so bucketing many transactions
// does not re-normalize it per label.
func NewNormalizer(substrings []string) *Normalizer {
	n := &Normalizer{}
	for _, s := range substrings {
		if a := canonical(s); a != "" {
			n.aliases = append(n.aliases, a)
		}
	}
	return n
}

// Normalize returns the label component of a grouping key.
func (n *Normalizer) Normalize(label string) string {
	lowered := strings.ToLower(label)
	out := canonical(leadingFiller.ReplaceAllString(lowered, ""))
	if out == "" {
		// A bare filler word ("Payment") stays a label of its own.
		out = canonical(lowered)
	}
	for _, alias := range n.aliases {
		if strings.Contains(out, alias) {
			return alias
		}
	}
	return out
}

// NormalizeLabel is a one-shot form of Normalizer.Normalize.
func NormalizeLabel(label string, substrings []string) string {
	return NewNormalizer(substrings).Normalize(label)
}

func canonical(s string) string {
	s = nonAlnumRun.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}
