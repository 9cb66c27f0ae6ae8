package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueRecompute carries derived-cost recomputation work.
	QueueRecompute = "recompute"

	// TaskTypeRecomputeOrder recalculates one purchase order's derived cost.
	TaskTypeRecomputeOrder = "recompute:order"
	// TaskTypeReconcileSweep recalculates every purchase order, catching any
	// order whose queued recomputation was lost.
	TaskTypeReconcileSweep = "recompute:sweep"
)

// RecomputeOrderPayload identifies the order to recompute.
type RecomputeOrderPayload struct {
	OrderID int64 `json:"order_id"`
}

// NewRecomputeOrderTask constructs an Asynq task for one order.
func NewRecomputeOrderTask(payload RecomputeOrderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecomputeOrder, data), nil
}

// NewReconcileSweepTask constructs the full-sweep task. It carries no payload.
func NewReconcileSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReconcileSweep, nil)
}
