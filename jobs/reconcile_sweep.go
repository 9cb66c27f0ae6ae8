package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// OrderLister enumerates every purchase order id.
type OrderLister interface {
	ListOrderIDs(ctx context.Context) ([]int64, error)
}

// NewReconcileSweepHandler builds the handler for TaskTypeReconcileSweep. It
// walks every order and recomputes each one independently: a single order's
// failure is logged and skipped so the rest of the sweep still runs.
func NewReconcileSweepHandler(lister OrderLister, rec OrderRecomputer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		ids, err := lister.ListOrderIDs(ctx)
		if err != nil {
			logger.Error("sweep could not list orders", slog.Any("error", err))
			return err
		}
		failed := 0
		for _, id := range ids {
			if err := rec.RecomputeOrder(ctx, id); err != nil {
				failed++
				logger.Warn("sweep recompute failed", slog.Int64("order_id", id), slog.Any("error", err))
			}
		}
		logger.Info("reconcile sweep finished", slog.Int("orders", len(ids)), slog.Int("failed", failed))
		return nil
	}
}
