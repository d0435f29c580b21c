package scheduler

import (
	"context"
	"log/slog"

	"bankcal/internal/recurrence"
)

// Detector re-runs detection over stored transactions.
type Detector interface {
	RunDetection(ctx context.Context, opts recurrence.Options) (recurrence.Result, int, error)
}

// DetectionJob refreshes stored series and recurrence flags.
type DetectionJob struct {
	detector Detector
	options  recurrence.Options
}

func NewDetectionJob(detector Detector, opts recurrence.Options) *DetectionJob {
	return &DetectionJob{detector: detector, options: opts}
}

func (j *DetectionJob) Name() string { return "recurrence_detection" }

func (j *DetectionJob) Run(ctx context.Context) error {
	res, count, err := j.detector.RunDetection(ctx, j.options)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Scheduled detection finished",
		"transactions", count,
		"series", len(res.Series),
		"orphans", len(res.OrphanIDs))
	return nil
}
