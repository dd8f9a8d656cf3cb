package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/worklane/worklane/internal/jobs"
	"github.com/worklane/worklane/internal/session"
)

// NewSessionSweepHandler returns the handler for the session sweep task.
// It walks active sessions and revokes any whose last activity exceeds the
// configured idle timeout.
func NewSessionSweepHandler(manager *session.Manager, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskSessionSweep)
		revoked, err := manager.IdleSweep(ctx)
		if err != nil {
			logger.Error("session sweep failed", "error", err)
			return tracker.End(err)
		}
		if revoked > 0 {
			logger.Info("idle sessions revoked", "count", revoked)
		}
		return tracker.End(nil)
	}
}
