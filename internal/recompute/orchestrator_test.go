package recompute

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRecomputer struct {
	calls  []int64
	failOn map[int64]bool
}

func (s *stubRecomputer) RecomputeOrder(ctx context.Context, orderID int64) error {
	s.calls = append(s.calls, orderID)
	if s.failOn[orderID] {
		return errors.New("boom")
	}
	return nil
}

type stubEnqueuer struct {
	enqueued []int64
	err      error
}

func (s *stubEnqueuer) EnqueueRecomputeOrder(ctx context.Context, orderID int64) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, orderID)
	return nil
}

func TestOrderChangedPrefersQueue(t *testing.T) {
	rec := &stubRecomputer{}
	enq := &stubEnqueuer{}
	o := NewOrchestrator(rec, enq, nil)

	o.OrderChanged(context.Background(), 1, 2, 3)
	require.Equal(t, []int64{1, 2, 3}, enq.enqueued)
	require.Empty(t, rec.calls)
}

func TestOrderChangedFallsBackInline(t *testing.T) {
	rec := &stubRecomputer{}
	enq := &stubEnqueuer{err: errors.New("redis down")}
	o := NewOrchestrator(rec, enq, nil)

	o.OrderChanged(context.Background(), 7)
	require.Equal(t, []int64{7}, rec.calls)
}

func TestOrderChangedIsolatesFailures(t *testing.T) {
	rec := &stubRecomputer{failOn: map[int64]bool{2: true}}
	o := NewOrchestrator(rec, nil, nil)

	// Order 2 fails; 1 and 3 still run.
	o.OrderChanged(context.Background(), 1, 2, 3)
	require.Equal(t, []int64{1, 2, 3}, rec.calls)
}

func TestOrderChangedWithoutBackendsIsANoop(t *testing.T) {
	o := NewOrchestrator(nil, nil, nil)
	o.OrderChanged(context.Background(), 1)
}
