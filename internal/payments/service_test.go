package payments

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harborline-erp/harborline/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type orderRow struct {
	advanceAmount decimal.Decimal
	balanceAmount decimal.Decimal
	advancePaidAt *time.Time
	balancePaidAt *time.Time
}

type packingRow struct {
	code        string
	freightCost decimal.Decimal
	wkPaidAt    *time.Time
}

type memoryRepo struct {
	requests map[int64]PaymentRequest
	orders   map[int64]*orderRow
	packing  []*packingRow
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		requests: make(map[int64]PaymentRequest),
		orders:   make(map[int64]*orderRow),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failed batch leaves no partial writes behind, matching
	// the transactional repository.
	snapshot := make(map[int64]PaymentRequest, len(r.requests))
	for k, v := range r.requests {
		snapshot[k] = v
	}
	ordersSnap := make(map[int64]orderRow, len(r.orders))
	for k, v := range r.orders {
		ordersSnap[k] = *v
	}
	packingSnap := make([]packingRow, len(r.packing))
	for i, p := range r.packing {
		packingSnap[i] = *p
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.requests = snapshot
		for k, v := range ordersSnap {
			row := v
			r.orders[k] = &row
		}
		for i := range packingSnap {
			row := packingSnap[i]
			r.packing[i] = &row
		}
		return err
	}
	return nil
}

func (r *memoryRepo) GetRequest(ctx context.Context, id int64) (PaymentRequest, error) {
	pr, ok := r.requests[id]
	if !ok {
		return PaymentRequest{}, ErrRequestNotFound
	}
	return pr, nil
}

func (r *memoryRepo) ListRequests(ctx context.Context, limit, offset int, filter ListFilter) ([]PaymentRequest, int, error) {
	var out []PaymentRequest
	for _, pr := range r.requests {
		if filter.Status != "" && pr.Status != filter.Status {
			continue
		}
		out = append(out, pr)
	}
	return out, len(out), nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) InsertRequest(ctx context.Context, pr PaymentRequest) (int64, error) {
	for _, existing := range t.repo.requests {
		if existing.Status == StatusRequested &&
			existing.SourceType == pr.SourceType &&
			existing.SourceRef == pr.SourceRef &&
			existing.PaymentType == pr.PaymentType {
			return 0, ErrDuplicateOpen
		}
	}
	t.repo.nextID++
	pr.ID = t.repo.nextID
	t.repo.requests[pr.ID] = pr
	return pr.ID, nil
}

func (t *memoryTx) GetRequestForUpdate(ctx context.Context, id int64) (PaymentRequest, error) {
	return t.repo.GetRequest(ctx, id)
}

func (t *memoryTx) UpdateRequest(ctx context.Context, pr PaymentRequest) error {
	current, ok := t.repo.requests[pr.ID]
	if !ok || current.Status != StatusRequested {
		return ErrRequestNotFound
	}
	current.Amount = pr.Amount
	current.RequestedAt = pr.RequestedAt
	current.Note = pr.Note
	t.repo.requests[pr.ID] = current
	return nil
}

func (t *memoryTx) DeleteRequest(ctx context.Context, id int64) error {
	current, ok := t.repo.requests[id]
	if !ok || current.Status != StatusRequested {
		return ErrRequestNotFound
	}
	delete(t.repo.requests, id)
	return nil
}

func (t *memoryTx) CompleteRequest(ctx context.Context, id int64, at time.Time, completer string) error {
	current, ok := t.repo.requests[id]
	if !ok || current.Status != StatusRequested {
		return ErrRequestNotFound
	}
	current.Status = StatusCompleted
	current.CompletedAt = &at
	current.CompletedBy = completer
	t.repo.requests[id] = current
	return nil
}

func (t *memoryTx) OrderPaymentState(ctx context.Context, orderID int64, pt PaymentType) (decimal.Decimal, *time.Time, error) {
	row, ok := t.repo.orders[orderID]
	if !ok {
		return decimal.Zero, nil, ErrRequestNotFound
	}
	if pt == TypeBalance {
		return row.balanceAmount, row.balancePaidAt, nil
	}
	return row.advanceAmount, row.advancePaidAt, nil
}

func (t *memoryTx) CodeShippingState(ctx context.Context, code string) (decimal.Decimal, *time.Time, error) {
	total := decimal.Zero
	var paid *time.Time
	found := false
	for _, row := range t.repo.packing {
		if row.code != code {
			continue
		}
		found = true
		total = total.Add(row.freightCost)
		if row.wkPaidAt != nil && paid == nil {
			paid = row.wkPaidAt
		}
	}
	if !found {
		return decimal.Zero, nil, ErrRequestNotFound
	}
	return total, paid, nil
}

func (t *memoryTx) MarkOrderPaid(ctx context.Context, orderID int64, pt PaymentType, at time.Time) error {
	row, ok := t.repo.orders[orderID]
	if !ok {
		return ErrRequestNotFound
	}
	if pt == TypeBalance {
		row.balancePaidAt = &at
	} else {
		row.advancePaidAt = &at
	}
	return nil
}

func (t *memoryTx) MarkCodePaid(ctx context.Context, code string, at time.Time) error {
	found := false
	for _, row := range t.repo.packing {
		if row.code == code {
			row.wkPaidAt = &at
			found = true
		}
	}
	if !found {
		return ErrRequestNotFound
	}
	return nil
}

func payCtx() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{
		ID: 9, Name: "treasurer", Capabilities: []string{shared.CapPaymentsEdit},
	})
}

func orderRef(id int64) string { return strconv.FormatInt(id, 10) }

func TestCreateUsesSourceAmount(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[1] = &orderRow{advanceAmount: dec("500"), balanceAmount: dec("760")}
	svc := NewService(repo, nil, nil)

	pr, err := svc.Create(payCtx(), CreateInput{
		SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance,
	})
	require.NoError(t, err)
	require.True(t, pr.Amount.Equal(dec("500")))
	require.Equal(t, StatusRequested, pr.Status)
	require.NotEmpty(t, pr.Number)
}

func TestCreateRejectsDuplicateOpenRequest(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[1] = &orderRow{advanceAmount: dec("500")}
	svc := NewService(repo, nil, nil)
	ctx := payCtx()

	_, err := svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance})
	require.ErrorIs(t, err, shared.ErrConflict)

	// A different leg of the same order is fine.
	repo.orders[1].balanceAmount = dec("200")
	_, err = svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeBalance})
	require.NoError(t, err)
}

func TestCreateRejectsZeroAmountAndPaidSource(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[1] = &orderRow{}
	svc := NewService(repo, nil, nil)
	ctx := payCtx()

	_, err := svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance})
	require.ErrorIs(t, err, shared.ErrValidation)

	// An explicit amount does not get around the missing source amount.
	_, err = svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance, Amount: dec("500")})
	require.ErrorIs(t, err, ErrNoPayableAmount)

	paid := time.Now()
	repo.orders[2] = &orderRow{advanceAmount: dec("100"), advancePaidAt: &paid}
	_, err = svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(2), PaymentType: TypeAdvance})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCreateRejectsMismatchedSourceAndType(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := payCtx()

	_, err := svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: "1", PaymentType: TypeShipping})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{SourceType: SourcePackingList, SourceRef: "PL-1", PaymentType: TypeAdvance})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCompleteWritesBackToOrder(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[1] = &orderRow{advanceAmount: dec("500")}
	svc := NewService(repo, nil, nil)
	ctx := payCtx()

	pr, err := svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance})
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, pr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Equal(t, "treasurer", completed.CompletedBy)
	require.NotNil(t, repo.orders[1].advancePaidAt)

	// Completing twice is a rejected operation, not a silent no-op.
	_, err = svc.Complete(ctx, pr.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCompleteShippingStampsEveryRowOfTheCode(t *testing.T) {
	repo := newMemoryRepo()
	repo.packing = []*packingRow{
		{code: "PL-7", freightCost: dec("600")},
		{code: "PL-7", freightCost: dec("400")},
		{code: "PL-8", freightCost: dec("999")},
	}
	svc := NewService(repo, nil, nil)
	ctx := payCtx()

	pr, err := svc.Create(ctx, CreateInput{SourceType: SourcePackingList, SourceRef: "PL-7", PaymentType: TypeShipping})
	require.NoError(t, err)
	require.True(t, pr.Amount.Equal(dec("1000")), "amount sums every row sharing the code")

	_, err = svc.Complete(ctx, pr.ID)
	require.NoError(t, err)
	require.NotNil(t, repo.packing[0].wkPaidAt)
	require.NotNil(t, repo.packing[1].wkPaidAt)
	require.Nil(t, repo.packing[2].wkPaidAt)
}

func TestBatchCompleteIsAtomic(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[1] = &orderRow{advanceAmount: dec("100"), balanceAmount: dec("200")}
	svc := NewService(repo, nil, nil)
	ctx := payCtx()

	a, err := svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeBalance})
	require.NoError(t, err)

	// One bad id rejects the whole batch and leaves both requests open.
	_, err = svc.BatchComplete(ctx, []int64{a.ID, 999})
	require.Error(t, err)
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRequested, got.Status)

	completed, err := svc.BatchComplete(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, completed, 2)
	require.NotNil(t, repo.orders[1].advancePaidAt)
	require.NotNil(t, repo.orders[1].balancePaidAt)
}

func TestUpdateAndDeleteOnlyWhileRequested(t *testing.T) {
	repo := newMemoryRepo()
	repo.orders[1] = &orderRow{advanceAmount: dec("100")}
	svc := NewService(repo, nil, nil)
	ctx := payCtx()

	pr, err := svc.Create(ctx, CreateInput{SourceType: SourceOrder, SourceRef: orderRef(1), PaymentType: TypeAdvance})
	require.NoError(t, err)

	amount := dec("120")
	updated, err := svc.Update(ctx, pr.ID, UpdateInput{Amount: &amount})
	require.NoError(t, err)
	require.True(t, updated.Amount.Equal(amount))

	_, err = svc.Complete(ctx, pr.ID)
	require.NoError(t, err)

	_, err = svc.Update(ctx, pr.ID, UpdateInput{Amount: &amount})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.ErrorIs(t, svc.Delete(ctx, pr.ID), shared.ErrConflict)
}

func TestPaymentsRequireCapability(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateInput{SourceType: SourceOrder, SourceRef: "1", PaymentType: TypeAdvance})
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Complete(context.Background(), 1)
	require.ErrorIs(t, err, shared.ErrForbidden)
}
