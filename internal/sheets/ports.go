package sheets

import (
	"context"

	"bankcal/internal/recurrence"
)

// Ports for outbound adapters.
type (
	// SeriesExporter publishes a month's recurring series to an external sheet.
	SeriesExporter interface {
		// ExportSeries writes one row per series and returns the rows written.
		ExportSeries(ctx context.Context, year int, month int, series []recurrence.Series) (int, error)
	}
)
