package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// OrderRecomputer recalculates and persists one order's derived cost fields.
type OrderRecomputer interface {
	RecomputeOrder(ctx context.Context, orderID int64) error
}

// NewRecomputeOrderHandler builds the handler for TaskTypeRecomputeOrder.
// Malformed payloads are dropped; a failed recomputation is retried by the
// queue since recomputation is idempotent.
func NewRecomputeOrderHandler(rec OrderRecomputer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RecomputeOrderPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Warn("recompute task has malformed payload", slog.Any("error", err))
			return asynq.SkipRetry
		}
		if err := rec.RecomputeOrder(ctx, payload.OrderID); err != nil {
			logger.Error("recompute order failed", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
			return err
		}
		return nil
	}
}
