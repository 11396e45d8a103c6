package helpers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/fruitbot/core/logger"
	"github.com/m3rciful/fruitbot/core/telegram/sender"
)

// Enqueue runs job on d, or inline when d is nil or already closed.
// A full lane is waited on rather than bypassed, so jobs with one key keep their order.
func Enqueue(ctx context.Context, d *sender.Dispatcher, job sender.Job) error {
	if d == nil {
		return job.Run()
	}
	err := d.Enqueue(ctx, job)
	if errors.Is(err, sender.ErrQueueFull) {
		logger.Debug(ctx, "tg.sender", "queue.wait",
			slog.String("action", job.Action),
			slog.Int64("key", job.Key),
		)
		err = d.EnqueueWait(ctx, job)
	}
	if errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", job.Action),
			slog.String("endpoint", job.Endpoint),
			slog.String("err", err.Error()),
		)
		return job.Run()
	}
	return err
}
