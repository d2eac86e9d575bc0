package tally

import (
	"context"
	"log/slog"

	"attendease/internal/attendance"
	"attendease/internal/metrics"
	"attendease/internal/queue"
)

// Run consumes attendance events from q into counter until ctx is done.
// Bad messages are logged and skipped.
func Run(ctx context.Context, q queue.Queue, counter Counter, logger *slog.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != attendance.EventMarked {
			metrics.TallyEvents.WithLabelValues("ignored").Inc()
			continue
		}
		var evt attendance.MarkedEvent
		if err := msg.Decode(&evt); err != nil {
			logger.Warn("drop attendance event", "error", err)
			metrics.TallyEvents.WithLabelValues("invalid").Inc()
			continue
		}
		if err := counter.Add(ctx, evt); err != nil {
			logger.Error("tally update failed", "record_id", evt.RecordID, "day", evt.Day, "error", err)
			metrics.TallyEvents.WithLabelValues("failed").Inc()
			continue
		}
		metrics.TallyEvents.WithLabelValues("counted").Inc()
		logger.Debug("tally updated", "record_id", evt.RecordID, "day", evt.Day, "status", evt.Status)
	}
	return ctx.Err()
}
