package recompute

import (
	"context"

	"github.com/harborline-erp/harborline/internal/orders"
)

// OrderServiceRecomputer adapts the orders service to the CostRecomputer
// contract used by the orchestrator and the background worker.
type OrderServiceRecomputer struct {
	Service *orders.Service
}

func (r OrderServiceRecomputer) RecomputeOrder(ctx context.Context, orderID int64) error {
	_, err := r.Service.RecomputeDerived(ctx, orderID)
	return err
}
