package recurrence

import (
	"errors"
	"reflect"
	"testing"

	"bankcal/internal/core"
)

func monthly(t *testing.T, prefix, desc, amount string, dates ...string) []core.Transaction {
	t.Helper()
	out := make([]core.Transaction, len(dates))
	for i, d := range dates {
		out[i] = mkTx(t, prefix+"-"+d, d, desc, amount)
	}
	return out
}

func TestDetect_NetflixScenario(t *testing.T) {
	txs := []core.Transaction{
		mkTx(t, "n3", "2024-03-06", "Netflix", "-15"),
		mkTx(t, "n1", "2024-01-05", "Netflix", "-15"),
		mkTx(t, "n4", "2024-04-05", "Netflix", "-15"),
		mkTx(t, "n2", "2024-02-05", "Netflix", "-15"),
	}

	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	s := res.Series[0]
	if got := s.OccurrenceIDs(); !equalStrings(got, []string{"n1", "n2", "n3", "n4"}) {
		t.Fatalf("occurrences = %v", got)
	}
	if s.Cadence != core.Monthly || s.Representative.ID != "n4" {
		t.Fatalf("unexpected cadence/representative: %s %s", s.Cadence, s.Representative.ID)
	}
	if s.Key != (GroupKey{Label: "netflix", Direction: DirectionOut, Band: BandSmall}) {
		t.Fatalf("unexpected key %+v", s.Key)
	}
	if s.ID != SeriesID(s.Key) || s.Currency != "$" {
		t.Fatalf("unexpected id/currency %q %q", s.ID, s.Currency)
	}
	if len(res.OrphanIDs) != 0 {
		t.Fatalf("expected no orphans, got %v", res.OrphanIDs)
	}
}

func TestDetect_IrregularInsuranceRejected(t *testing.T) {
	txs := monthly(t, "ins", "Insurance", "-30", "2024-01-01", "2024-03-15", "2024-04-15")

	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 0 {
		t.Fatalf("expected no series, got %+v", res.Series)
	}
	if !equalStrings(res.OrphanIDs, ids(txs)) {
		t.Fatalf("all transactions should be orphans, got %v", res.OrphanIDs)
	}
}

func TestDetect_SpotifySmallBandFluctuation(t *testing.T) {
	txs := []core.Transaction{
		mkTx(t, "s1", "2024-01-10", "Spotify", "-19.99"),
		mkTx(t, "s2", "2024-02-10", "Spotify", "-20.05"),
		mkTx(t, "s3", "2024-03-10", "Spotify", "-20.01"),
		mkTx(t, "s4", "2024-04-10", "Spotify", "-19.98"),
	}

	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 || len(res.Series[0].Occurrences) != 4 {
		t.Fatalf("expected one series of 4, got %+v", res.Series)
	}
	if res.Series[0].Key.Band != BandSmall {
		t.Fatalf("expected small band, got %s", res.Series[0].Key.Band)
	}
}

func TestDetect_MinOccurrencesBoundary(t *testing.T) {
	three := monthly(t, "gym", "Gym", "-40", "2023-01-01", "2023-03-01", "2023-04-01")
	res, err := Detect(three, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 {
		t.Fatalf("exactly minOccurrences should be accepted, got %d series", len(res.Series))
	}

	res, err = Detect(three[1:], DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 0 {
		t.Fatalf("minOccurrences-1 must be rejected")
	}

	opts := DefaultOptions()
	opts.MinOccurrences = 4
	opts.MinSpanDays = 0
	res, _ = Detect(monthly(t, "x", "Gym", "-40", "2023-01-01", "2023-02-01", "2023-03-01"), opts)
	if len(res.Series) != 0 {
		t.Fatalf("3 occurrences with minOccurrences=4 must be rejected")
	}
}

func TestDetect_SpanBoundary(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{"89 days rejected", []string{"2023-01-03", "2023-02-03", "2023-03-03", "2023-04-01"}, 0},
		{"90 days accepted", []string{"2023-01-02", "2023-02-02", "2023-03-02", "2023-04-01"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Detect(monthly(t, "p", "Phone", "-25", tt.dates...), DefaultOptions())
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if len(res.Series) != tt.want {
				t.Errorf("Detect() series = %d, want %d", len(res.Series), tt.want)
			}
		})
	}
}

func TestDetect_MaxSpanInclusive(t *testing.T) {
	txs := monthly(t, "r", "Rent", "-900", "2023-01-01", "2023-02-01", "2023-03-01", "2023-04-01", "2023-05-01")
	tests := []struct {
		name    string
		maxSpan int
		want    int
	}{
		{"121 days fits 121", 121, 1},
		{"121 days exceeds 120", 120, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.MaxSpanDays = tt.maxSpan
			res, err := Detect(txs, opts)
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if len(res.Series) != tt.want {
				t.Errorf("Detect() series = %d, want %d", len(res.Series), tt.want)
			}
		})
	}
}

func TestDetect_MaxSpanRejected(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSpanDays = 100
	txs := monthly(t, "r", "Rent", "-900", "2023-01-01", "2023-02-01", "2023-03-01", "2023-04-01", "2023-05-01")
	res, err := Detect(txs, opts)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 0 {
		t.Fatalf("span of 120 days must exceed maxSpanDays=100")
	}
}

func TestDetect_AmountToleranceBoundary(t *testing.T) {
	txs := []core.Transaction{
		mkTx(t, "a1", "2024-01-03", "Cloud storage", "-20"),
		mkTx(t, "a2", "2024-02-03", "Cloud storage", "-20"),
		mkTx(t, "a3", "2024-03-03", "Cloud storage", "-20.51"),
		mkTx(t, "a4", "2024-04-03", "Cloud storage", "-20"),
		mkTx(t, "a5", "2024-05-03", "Cloud storage", "-20.49"),
	}

	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	if got := res.Series[0].OccurrenceIDs(); !equalStrings(got, []string{"a1", "a2", "a4", "a5"}) {
		t.Fatalf("20.49 must be kept and 20.51 dropped, got %v", got)
	}
	if !equalStrings(res.OrphanIDs, []string{"a3"}) {
		t.Fatalf("orphans = %v, want [a3]", res.OrphanIDs)
	}
}

func TestDetect_MedianUsesRawBucket(t *testing.T) {
	// Medium band: median 100.00 gives a 1.00 radius, so 101.50 goes.
	txs := []core.Transaction{
		mkTx(t, "u1", "2024-01-15", "Utility", "-100"),
		mkTx(t, "u2", "2024-02-15", "Utility", "-99.50"),
		mkTx(t, "u3", "2024-03-15", "Utility", "-101.50"),
		mkTx(t, "u4", "2024-04-15", "Utility", "-100.40"),
		mkTx(t, "u5", "2024-05-15", "Utility", "-100"),
	}
	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	if got := res.Series[0].OccurrenceIDs(); !equalStrings(got, []string{"u1", "u2", "u4", "u5"}) {
		t.Fatalf("occurrences = %v", got)
	}
}

func TestDetect_MonthlyDedupKeepsLatest(t *testing.T) {
	txs := []core.Transaction{
		mkTx(t, "jan", "2024-01-15", "Netflix", "-15"),
		mkTx(t, "feb", "2024-02-15", "Netflix", "-15"),
		mkTx(t, "mar-early", "2024-03-02", "Netflix", "-15"),
		mkTx(t, "mar-late", "2024-03-17", "Netflix", "-15"),
		mkTx(t, "apr", "2024-04-15", "Netflix", "-15"),
	}

	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	if got := res.Series[0].OccurrenceIDs(); !equalStrings(got, []string{"jan", "feb", "mar-late", "apr"}) {
		t.Fatalf("occurrences = %v", got)
	}
	if !equalStrings(res.OrphanIDs, []string{"mar-early"}) {
		t.Fatalf("orphans = %v", res.OrphanIDs)
	}
}

func TestDetect_LateCorrectionKeepsSeries(t *testing.T) {
	txs := []core.Transaction{
		mkTx(t, "jan", "2024-01-15", "Netflix", "-15"),
		mkTx(t, "feb", "2024-02-15", "Netflix", "-15"),
		mkTx(t, "mar", "2024-03-15", "Netflix", "-15"),
		mkTx(t, "mar-fix", "2024-03-28", "Netflix", "-15"),
		mkTx(t, "apr", "2024-04-15", "Netflix", "-15"),
	}

	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	if got := res.Series[0].OccurrenceIDs(); !equalStrings(got, []string{"jan", "feb", "mar-fix", "apr"}) {
		t.Fatalf("occurrences = %v", got)
	}
	if !equalStrings(res.OrphanIDs, []string{"mar"}) {
		t.Fatalf("orphans = %v, want [mar]", res.OrphanIDs)
	}
}

func TestDetect_LateOnlyMonthStillChecksCadence(t *testing.T) {
	txs := monthly(t, "g", "Gym", "-40", "2024-01-15", "2024-02-15", "2024-03-28", "2024-04-15")
	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 0 {
		t.Fatalf("a month with only an off-cadence charge must break the chain, got %+v", res.Series)
	}
}

func TestDetect_MixedCurrencyBucketMerges(t *testing.T) {
	txs := monthly(t, "v", "VPN", "-9", "2024-01-04", "2024-02-04", "2024-03-04", "2024-04-04")
	txs[3].Currency = "€"

	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 || len(res.Series[0].Occurrences) != 4 {
		t.Fatalf("expected one series of 4, got %+v", res.Series)
	}
	if res.Series[0].Currency != "€" {
		t.Errorf("Currency = %q, want the latest occurrence's", res.Series[0].Currency)
	}
}

func TestDetect_DedupCanDropBelowMinimum(t *testing.T) {
	opts := DefaultOptions()
	opts.MinSpanDays = 0
	txs := monthly(t, "d", "Bakery", "-4", "2024-01-02", "2024-01-20", "2024-02-02")
	res, err := Detect(txs, opts)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 0 {
		t.Fatalf("two distinct months must not satisfy minOccurrences=3")
	}
}

func TestDetect_SkippedMonthsAndBoundarySlip(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{"one skipped month", []string{"2024-01-10", "2024-02-10", "2024-04-11", "2024-05-10"}, 1},
		{"month end slip", []string{"2023-11-30", "2023-12-30", "2024-01-30", "2024-03-01"}, 1},
		{"too many skipped", []string{"2023-01-10", "2023-02-10", "2023-10-10", "2023-11-10"}, 0},
		{"drift beyond flex", []string{"2024-01-10", "2024-02-10", "2024-03-20", "2024-04-20"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Detect(monthly(t, "c", "Club", "-12", tt.dates...), DefaultOptions())
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if len(res.Series) != tt.want {
				t.Errorf("Detect() series = %d, want %d", len(res.Series), tt.want)
			}
		})
	}
}

func TestDetect_DeterministicAcrossInputOrder(t *testing.T) {
	base := append(
		monthly(t, "net", "Netflix", "-15", "2024-01-05", "2024-02-05", "2024-03-05", "2024-04-05"),
		monthly(t, "sal", "Salary ACME", "3200", "2024-01-28", "2024-02-28", "2024-03-28", "2024-04-29")...,
	)
	base = append(base, mkTx(t, "coffee", "2024-02-11", "Coffee", "-3.20"))

	first, err := Detect(base, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	reversed := make([]core.Transaction, len(base))
	for i, tx := range base {
		reversed[len(base)-1-i] = tx
	}
	for i := 0; i < 3; i++ {
		again, err := Detect(base, DefaultOptions())
		if err != nil || !reflect.DeepEqual(first.Series, again.Series) {
			t.Fatalf("repeat run differs (err=%v)", err)
		}
	}
	rev, err := Detect(reversed, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !reflect.DeepEqual(first.Series, rev.Series) {
		t.Fatalf("series depend on input order")
	}
	if len(first.Series) != 2 || first.Series[0].Key.Label != "netflix" || first.Series[1].Key.Direction != DirectionIn {
		t.Fatalf("unexpected series ordering: %+v", first.Series)
	}
}

func TestDetect_OrphanCompleteness(t *testing.T) {
	txs := append(
		monthly(t, "net", "Netflix", "-15", "2024-01-05", "2024-02-05", "2024-03-05", "2024-04-05"),
		mkTx(t, "x1", "2024-01-09", "Hardware store", "-80"),
		mkTx(t, "x2", "2024-03-01", "Insurance", "-30"),
	)
	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	claimed := map[string]bool{}
	for _, s := range res.Series {
		for _, id := range s.OccurrenceIDs() {
			claimed[id] = true
		}
	}
	var want []string
	for _, tx := range txs {
		if !claimed[tx.ID] {
			want = append(want, tx.ID)
		}
	}
	if !equalStrings(res.OrphanIDs, want) {
		t.Fatalf("orphans = %v, want %v", res.OrphanIDs, want)
	}
}

func TestDetect_EmptyInput(t *testing.T) {
	res, err := Detect(nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 0 || len(res.OrphanIDs) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestDetect_InvalidInput(t *testing.T) {
	bad := DefaultOptions()
	bad.MinOccurrences = 0
	bad.MaxSpanDays = 10
	if _, err := Detect(nil, bad); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions, got %v", err)
	}

	txs := []core.Transaction{mkTx(t, "ok", "2024-01-01", "x", "-1"), {ID: "", Date: core.NewDate(2024, 1, 2)}}
	_, err := Detect(txs, DefaultOptions())
	if !errors.Is(err, ErrInvalidTransaction) || !errors.Is(err, core.ErrEmptyID) {
		t.Fatalf("expected wrapped ErrInvalidTransaction/ErrEmptyID, got %v", err)
	}
}

func TestDetect_GroupingSubstringsMergeAliases(t *testing.T) {
	txs := []core.Transaction{
		mkTx(t, "m1", "2024-01-07", "AMZN*MKTP US", "-12.99"),
		mkTx(t, "m2", "2024-02-07", "Amazon.com Prime", "-12.99"),
		mkTx(t, "m3", "2024-03-07", "AMZN*MKTP DE", "-12.99"),
		mkTx(t, "m4", "2024-04-07", "amazon prime", "-12.99"),
	}
	opts := DefaultOptions()
	res, _ := Detect(txs, opts)
	if len(res.Series) != 0 {
		t.Fatalf("without aliases the labels should not merge")
	}
	opts.GroupingSubstrings = []string{"amzn", "amazon"}
	res, err := Detect(txs, opts)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 0 {
		t.Fatalf("two aliases give two keys; expected none to reach 3 occurrences")
	}
	opts.GroupingSubstrings = []string{"prime", "amzn"}
	for i := range txs {
		if i%2 == 0 {
			txs[i].Description += " prime"
		}
	}
	res, err = Detect(txs, opts)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 || res.Series[0].Key.Label != "prime" {
		t.Fatalf("expected one series under alias 'prime', got %+v", res.Series)
	}
}

func TestDetect_DuplicateIDsCoexist(t *testing.T) {
	txs := monthly(t, "n", "Netflix", "-15", "2024-01-05", "2024-02-05", "2024-03-05", "2024-04-05")
	dup := mkTx(t, txs[0].ID, "2024-01-20", "Hardware", "-70")
	txs = append(txs, dup)
	res, err := Detect(txs, DefaultOptions())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(res.Series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(res.Series))
	}
	if len(res.OrphanIDs) != 0 {
		t.Fatalf("a claimed id is never an orphan, got %v", res.OrphanIDs)
	}
}
