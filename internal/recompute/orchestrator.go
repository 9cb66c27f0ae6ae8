// Package recompute fans mutations out to the derived-cost pipeline. Any
// write that can change an order's landed cost (the order itself, its cost
// items, or any packing list touching it) reports the affected order ids
// here; the orchestrator queues one recomputation task per order after the
// triggering transaction has committed.
package recompute

import (
	"context"
	"log/slog"
)

// CostRecomputer recalculates and persists one order's derived cost fields.
type CostRecomputer interface {
	RecomputeOrder(ctx context.Context, orderID int64) error
}

// Enqueuer hands a recomputation off to the background queue.
type Enqueuer interface {
	EnqueueRecomputeOrder(ctx context.Context, orderID int64) error
}

// Orchestrator decides how each recomputation runs: queued when an enqueuer
// is configured and reachable, inline otherwise. Both paths are best effort:
// a failed recomputation is logged and never rolls back the write that
// triggered it, and one order's failure does not block the others.
// Recomputation is idempotent, so the next write to the same order triggers
// it again.
type Orchestrator struct {
	recomputer CostRecomputer
	enqueuer   Enqueuer
	logger     *slog.Logger
}

func NewOrchestrator(recomputer CostRecomputer, enqueuer Enqueuer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{recomputer: recomputer, enqueuer: enqueuer, logger: logger}
}

// OrderChanged schedules recomputation for every given order, sequentially
// and independently.
func (o *Orchestrator) OrderChanged(ctx context.Context, orderIDs ...int64) {
	for _, id := range orderIDs {
		o.dispatch(ctx, id)
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, orderID int64) {
	if o.enqueuer != nil {
		err := o.enqueuer.EnqueueRecomputeOrder(ctx, orderID)
		if err == nil {
			return
		}
		o.logger.Warn("enqueue recompute failed, running inline", slog.Int64("order_id", orderID), slog.Any("error", err))
	}
	if o.recomputer == nil {
		return
	}
	if err := o.recomputer.RecomputeOrder(ctx, orderID); err != nil {
		o.logger.Error("inline recompute failed", slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}
