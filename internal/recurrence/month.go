package recurrence

import "time"

// SelectSeriesForMonth keeps the series that have an occurrence in month's
// calendar month and rebinds Representative to that occurrence.
func SelectSeriesForMonth(series []Series, month time.Time) []Series {
	y, m, _ := month.Date()
	out := make([]Series, 0, len(series))
	for _, s := range series {
		for i := len(s.Occurrences) - 1; i >= 0; i-- {
			occ := s.Occurrences[i]
			if occ.Date.Year() == y && occ.Date.Month() == m {
				s.Representative = occ
				out = append(out, s)
				break
			}
		}
	}
	return out
}
