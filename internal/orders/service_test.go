package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harborline-erp/harborline/internal/shared"
)

type memoryRepo struct {
	orders    map[int64]PurchaseOrder
	shipments map[int64]FactoryShipment
	costItems map[int64]CostItem
	packed    map[int64]int64 // orderID -> packing-shipped qty
	arrived   map[int64]int64 // orderID -> arrived qty
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:    make(map[int64]PurchaseOrder),
		shipments: make(map[int64]FactoryShipment),
		costItems: make(map[int64]CostItem),
		packed:    make(map[int64]int64),
		arrived:   make(map[int64]int64),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return po, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, limit, offset int, filter ListFilter) ([]PurchaseOrder, int, error) {
	var all []PurchaseOrder
	for _, po := range r.orders {
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		all = append(all, po)
	}
	return all, len(all), nil
}

func (r *memoryRepo) ListOrderIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range r.orders {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memoryRepo) ListFactoryShipments(ctx context.Context, orderID int64) ([]FactoryShipment, error) {
	var out []FactoryShipment
	for _, s := range r.shipments {
		if s.OrderID == orderID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetFactoryShipment(ctx context.Context, id int64) (FactoryShipment, error) {
	s, ok := r.shipments[id]
	if !ok {
		return FactoryShipment{}, ErrOrderNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListCostItems(ctx context.Context, orderID int64) ([]CostItem, error) {
	var out []CostItem
	for _, item := range r.costItems {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetCostItem(ctx context.Context, id int64) (CostItem, error) {
	item, ok := r.costItems[id]
	if !ok {
		return CostItem{}, ErrOrderNotFound
	}
	return item, nil
}

func (r *memoryRepo) QuantitySums(ctx context.Context, orderID int64) (QuantitySums, error) {
	po, ok := r.orders[orderID]
	if !ok {
		return QuantitySums{}, ErrOrderNotFound
	}
	sums := QuantitySums{Ordered: po.Quantity, PackingShipped: r.packed[orderID], Arrived: r.arrived[orderID]}
	for _, s := range r.shipments {
		if s.OrderID == orderID {
			sums.FactoryShipped += s.Quantity
		}
	}
	return sums, nil
}

func (tx *memoryTx) CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	tx.repo.orders[po.ID] = po
	return po.ID, nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, po PurchaseOrder) error {
	if _, ok := tx.repo.orders[po.ID]; !ok {
		return ErrOrderNotFound
	}
	tx.repo.orders[po.ID] = po
	return nil
}

func (tx *memoryTx) DeleteOrder(ctx context.Context, id int64) error {
	delete(tx.repo.orders, id)
	return nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return tx.repo.GetOrder(ctx, id)
}

func (tx *memoryTx) InsertFactoryShipment(ctx context.Context, s FactoryShipment) (int64, error) {
	tx.repo.nextID++
	s.ID = tx.repo.nextID
	tx.repo.shipments[s.ID] = s
	return s.ID, nil
}

func (tx *memoryTx) UpdateFactoryShipment(ctx context.Context, s FactoryShipment) error {
	tx.repo.shipments[s.ID] = s
	return nil
}

func (tx *memoryTx) DeleteFactoryShipment(ctx context.Context, id int64) error {
	delete(tx.repo.shipments, id)
	return nil
}

func (tx *memoryTx) InsertCostItem(ctx context.Context, item CostItem) (int64, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.costItems[item.ID] = item
	return item.ID, nil
}

func (tx *memoryTx) UpdateCostItem(ctx context.Context, item CostItem) error {
	tx.repo.costItems[item.ID] = item
	return nil
}

func (tx *memoryTx) DeleteCostItem(ctx context.Context, id int64) error {
	delete(tx.repo.costItems, id)
	return nil
}

func (tx *memoryTx) SetExpectedFinalUnitPrice(ctx context.Context, orderID int64, price *decimal.Decimal) error {
	po, ok := tx.repo.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	po.ExpectedFinalUnitPrice = price
	tx.repo.orders[orderID] = po
	return nil
}

type fixedProration struct {
	freight decimal.Decimal
}

func (p fixedProration) AllocatedFreight(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	return p.freight, nil
}

func editorCtx(caps ...string) context.Context {
	caps = append(caps, shared.CapOrdersEdit, shared.CapOrdersView)
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: 7, Name: "tester", Capabilities: caps})
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, fixedProration{freight: decimal.Zero}, Calculator{}, nil, nil)
}

func TestCreateOrderAndDetail(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := editorCtx(shared.CapCostAdmin)

	po, err := svc.CreateOrder(ctx, CreateOrderInput{
		Number:         "HBL-2025-001",
		Quantity:       100,
		UnitPrice:      dec("10"),
		BackMargin:     dec("2"),
		CommissionRate: dec("5"),
		OrderedAt:      DefaultCommissionCutoff.AddDate(0, 2, 0),
	})
	require.NoError(t, err)
	require.NotZero(t, po.ID)
	require.Equal(t, StatusOrdered, po.Status)

	detail, err := svc.GetDetail(ctx, po.ID)
	require.NoError(t, err)
	require.True(t, detail.Cost.FinalPaymentAmount.Equal(dec("1260")))
	require.EqualValues(t, 100, detail.Quantities.Unreceived)

	// The detail read wrote the computed price back as the stored hint.
	stored, err := repo.GetOrder(ctx, po.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExpectedFinalUnitPrice)
	require.True(t, stored.ExpectedFinalUnitPrice.Equal(dec("12.6")))
}

func TestCreateOrderRequiresCapability(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{Number: "X", Quantity: 1})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCommissionFieldsRequireCostAdmin(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.CreateOrder(editorCtx(), CreateOrderInput{
		Number: "HBL-1", Quantity: 1, CommissionRate: dec("5"),
	})
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.CreateOrder(editorCtx(), CreateOrderInput{Number: "HBL-2", Quantity: 1})
	require.NoError(t, err)
}

func TestFactoryShipmentsFeedQuantities(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := editorCtx()

	po, err := svc.CreateOrder(ctx, CreateOrderInput{Number: "HBL-3", Quantity: 100})
	require.NoError(t, err)

	_, err = svc.AddFactoryShipment(ctx, AddFactoryShipmentInput{OrderID: po.ID, Quantity: 30})
	require.NoError(t, err)
	_, err = svc.AddFactoryShipment(ctx, AddFactoryShipmentInput{OrderID: po.ID, Quantity: 50})
	require.NoError(t, err)

	q, err := svc.Quantities(ctx, po.ID)
	require.NoError(t, err)
	require.EqualValues(t, 80, q.FactoryShipped)
	require.EqualValues(t, 20, q.Unreceived)
	require.EqualValues(t, 80, q.Unshipped)
}

func TestAddFactoryShipmentRejectsBadInput(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := editorCtx()

	_, err := svc.AddFactoryShipment(ctx, AddFactoryShipmentInput{OrderID: 999, Quantity: 10})
	require.ErrorIs(t, err, shared.ErrNotFound)

	po, err := svc.CreateOrder(ctx, CreateOrderInput{Number: "HBL-4", Quantity: 10})
	require.NoError(t, err)
	_, err = svc.AddFactoryShipment(ctx, AddFactoryShipmentInput{OrderID: po.ID, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdminOnlyCostItemVisibility(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	adminCtx := editorCtx(shared.CapCostAdmin)

	po, err := svc.CreateOrder(adminCtx, CreateOrderInput{Number: "HBL-5", Quantity: 10, UnitPrice: dec("10")})
	require.NoError(t, err)

	_, err = svc.AddCostItem(adminCtx, AddCostItemInput{OrderID: po.ID, Kind: CostKindOption, UnitPrice: dec("1"), Quantity: 10})
	require.NoError(t, err)
	_, err = svc.AddCostItem(adminCtx, AddCostItemInput{OrderID: po.ID, Kind: CostKindLabor, UnitPrice: dec("2"), Quantity: 5, AdminOnly: true})
	require.NoError(t, err)

	// Plain editors cannot create admin-only items and do not see them.
	_, err = svc.AddCostItem(editorCtx(), AddCostItemInput{OrderID: po.ID, Kind: CostKindOption, UnitPrice: dec("1"), Quantity: 1, AdminOnly: true})
	require.ErrorIs(t, err, shared.ErrForbidden)

	detail, err := svc.GetDetail(editorCtx(), po.ID)
	require.NoError(t, err)
	require.Len(t, detail.CostItems, 1)

	detail, err = svc.GetDetail(adminCtx, po.ID)
	require.NoError(t, err)
	require.Len(t, detail.CostItems, 2)
}

func TestRecomputeDerivedIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedProration{freight: dec("300")}, Calculator{}, nil, nil)
	ctx := editorCtx(shared.CapCostAdmin)

	po, err := svc.CreateOrder(ctx, CreateOrderInput{
		Number: "HBL-6", Quantity: 100, UnitPrice: dec("10"), BackMargin: dec("2"),
		CommissionRate: dec("5"), OrderedAt: DefaultCommissionCutoff,
	})
	require.NoError(t, err)

	first, err := svc.RecomputeDerived(ctx, po.ID)
	require.NoError(t, err)
	second, err := svc.RecomputeDerived(ctx, po.ID)
	require.NoError(t, err)
	require.NotNil(t, first.ExpectedFinalUnitPrice)
	require.True(t, first.ExpectedFinalUnitPrice.Equal(*second.ExpectedFinalUnitPrice))
	// (1260 + 300) / 100
	require.True(t, first.ExpectedFinalUnitPrice.Equal(dec("15.6")))
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := editorCtx()

	po, err := svc.CreateOrder(ctx, CreateOrderInput{Number: "HBL-7", Quantity: 1})
	require.NoError(t, err)

	bogus := DeliveryStatus("TELEPORTED")
	_, err = svc.UpdateOrder(ctx, po.ID, UpdateOrderInput{Status: &bogus})
	require.ErrorIs(t, err, shared.ErrValidation)

	arrived := StatusArrived
	updated, err := svc.UpdateOrder(ctx, po.ID, UpdateOrderInput{Status: &arrived})
	require.NoError(t, err)
	require.Equal(t, StatusArrived, updated.Status)
}

func TestUpdateOrderConfirmationFreezesTerms(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := editorCtx(shared.CapCostAdmin)

	po, err := svc.CreateOrder(ctx, CreateOrderInput{Number: "HBL-8", Quantity: 50, UnitPrice: dec("4")})
	require.NoError(t, err)

	confirmed := true
	_, err = svc.UpdateOrder(ctx, po.ID, UpdateOrderInput{Confirmed: &confirmed})
	require.NoError(t, err)

	// Commercial terms are frozen while the order stays confirmed.
	price := dec("5")
	_, err = svc.UpdateOrder(ctx, po.ID, UpdateOrderInput{UnitPrice: &price})
	require.ErrorIs(t, err, ErrOrderConfirmed)
	qty := int64(60)
	_, err = svc.UpdateOrder(ctx, po.ID, UpdateOrderInput{Quantity: &qty})
	require.ErrorIs(t, err, ErrOrderConfirmed)

	// Operational fields stay editable.
	arrived := StatusArrived
	updated, err := svc.UpdateOrder(ctx, po.ID, UpdateOrderInput{Status: &arrived})
	require.NoError(t, err)
	require.Equal(t, StatusArrived, updated.Status)

	// Lifting the confirmation in the same update unfreezes the terms.
	unconfirmed := false
	updated, err = svc.UpdateOrder(ctx, po.ID, UpdateOrderInput{Confirmed: &unconfirmed, UnitPrice: &price})
	require.NoError(t, err)
	require.True(t, updated.UnitPrice.Equal(dec("5")))
	require.False(t, updated.Confirmed)
}

func TestDeleteOrderMissing(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	require.ErrorIs(t, svc.DeleteOrder(editorCtx(), 42), shared.ErrNotFound)
}
