package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bankcal/internal/amqp"
	"bankcal/internal/recurrence"
)

// Detector re-runs detection over stored transactions.
type Detector interface {
	RunDetection(ctx context.Context, opts recurrence.Options) (recurrence.Result, int, error)
}

// ResultPublisher announces finished detection runs.
type ResultPublisher interface {
	PublishSeriesDetected(ctx context.Context, msg *amqp.SeriesDetectedMessage) error
}

// Consumer handles detection requests delivered over AMQP.
type Consumer struct {
	detector  Detector
	publisher ResultPublisher
	defaults  recurrence.Options
}

// NewConsumer wires a consumer. publisher may be nil, in which case results
// are only logged.
func NewConsumer(detector Detector, publisher ResultPublisher, defaults recurrence.Options) *Consumer {
	return &Consumer{detector: detector, publisher: publisher, defaults: defaults}
}

// HandleDetectionRequest runs detection for msg and publishes the outcome.
// Invalid options are reported, not retried; other failures are returned so
// the delivery is requeued.
func (c *Consumer) HandleDetectionRequest(ctx context.Context, msg *amqp.DetectionRequestMessage) error {
	opts := c.defaults
	if msg.Options != nil {
		opts = *msg.Options
	}

	slog.InfoContext(ctx, "Processing detection request",
		"request_id", msg.RequestID,
		"reason", msg.Reason)

	res, count, err := c.detector.RunDetection(ctx, opts)
	if err != nil && !isPermanent(err) {
		return fmt.Errorf("run detection: %w", err)
	}

	result := amqp.NewSeriesDetectedMessage(msg.RequestID, count, res, err)
	if c.publisher == nil {
		slog.InfoContext(ctx, "Detection finished",
			"request_id", msg.RequestID,
			"series", len(result.SeriesIDs),
			"orphans", result.Orphans,
			"error", result.Error)
		return nil
	}
	if err := c.publisher.PublishSeriesDetected(ctx, result); err != nil {
		return fmt.Errorf("publish detection result: %w", err)
	}
	return nil
}

// StartupDetection runs one detection pass when the worker boots, so series
// are current even if requests were lost while it was down.
func (c *Consumer) StartupDetection(ctx context.Context) error {
	return c.HandleDetectionRequest(ctx, amqp.NewDetectionRequestMessage(amqp.ReasonStartup, nil))
}

func isPermanent(err error) bool {
	return errors.Is(err, recurrence.ErrInvalidOptions) || errors.Is(err, recurrence.ErrInvalidTransaction)
}
