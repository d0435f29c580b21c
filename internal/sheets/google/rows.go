package google

import (
	"strconv"
	"strings"

	"bankcal/internal/recurrence"
)

var header = []interface{}{
	"Series", "Label", "Direction", "Band", "Date", "Amount", "Currency", "Occurrences", "Max gap (days)", "Notes",
}

// seriesRows lays out series for the sheet, header first. Each row describes
// the series' representative occurrence for the exported month.
func seriesRows(series []recurrence.Series) [][]interface{} {
	rows := make([][]interface{}, 0, len(series)+1)
	rows = append(rows, header)
	for _, s := range series {
		rep := s.Representative
		rows = append(rows, []interface{}{
			s.ID,
			s.Key.Label,
			string(s.Key.Direction),
			string(s.Key.Band),
			rep.Date.String(),
			strconv.FormatFloat(rep.Amount.Units(), 'f', 2, 64),
			s.Currency,
			len(s.Occurrences),
			s.Explanation.MaxGapDays,
			strings.Join(s.Explanation.Notes, "; "),
		})
	}
	return rows
}
