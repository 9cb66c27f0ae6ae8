package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/harborline-erp/harborline/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, limit, offset int, filter ListFilter) ([]PurchaseOrder, int, error)
	ListOrderIDs(ctx context.Context) ([]int64, error)
	ListFactoryShipments(ctx context.Context, orderID int64) ([]FactoryShipment, error)
	GetFactoryShipment(ctx context.Context, id int64) (FactoryShipment, error)
	ListCostItems(ctx context.Context, orderID int64) ([]CostItem, error)
	GetCostItem(ctx context.Context, id int64) (CostItem, error)
	QuantitySums(ctx context.Context, orderID int64) (QuantitySums, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdateOrder(ctx context.Context, po PurchaseOrder) error
	DeleteOrder(ctx context.Context, id int64) error
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertFactoryShipment(ctx context.Context, s FactoryShipment) (int64, error)
	UpdateFactoryShipment(ctx context.Context, s FactoryShipment) error
	DeleteFactoryShipment(ctx context.Context, id int64) error
	InsertCostItem(ctx context.Context, item CostItem) (int64, error)
	UpdateCostItem(ctx context.Context, item CostItem) error
	DeleteCostItem(ctx context.Context, id int64) error
	SetExpectedFinalUnitPrice(ctx context.Context, orderID int64, price *decimal.Decimal) error
}

// ProrationPort supplies the freight already allocated to an order across
// every packing list that carries part of it.
type ProrationPort interface {
	AllocatedFreight(ctx context.Context, orderID int64) (decimal.Decimal, error)
}

// RecomputeNotifier is told which orders need their derived cost fields
// rebuilt after a mutation commits. Implementations are best-effort and must
// never fail the triggering write.
type RecomputeNotifier interface {
	OrderChanged(ctx context.Context, orderIDs ...int64)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates purchase order operations.
type Service struct {
	repo      RepositoryPort
	proration ProrationPort
	calc      Calculator
	audit     AuditPort
	notifier  RecomputeNotifier
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, proration ProrationPort, calc Calculator, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, proration: proration, calc: calc, audit: audit, logger: logger}
}

// SetRecomputeNotifier injects the orchestrator hook. Set after construction
// because the orchestrator itself depends on this service.
func (s *Service) SetRecomputeNotifier(n RecomputeNotifier) {
	s.notifier = n
}

// CreateOrderInput carries the fields writable at creation.
type CreateOrderInput struct {
	Number           string
	Quantity         int64
	UnitPrice        decimal.Decimal
	BackMargin       decimal.Decimal
	CommissionRate   decimal.Decimal
	CommissionBasis  string
	DirectFreight    decimal.Decimal
	WarehouseFreight decimal.Decimal
	AdvanceAmount    decimal.Decimal
	BalanceAmount    decimal.Decimal
	OrderedAt        time.Time
	ImageURL         string
	Note             string
}

// UpdateOrderInput carries the mutable fields. Nil pointers leave the field
// unchanged.
type UpdateOrderInput struct {
	Quantity         *int64
	UnitPrice        *decimal.Decimal
	BackMargin       *decimal.Decimal
	CommissionRate   *decimal.Decimal
	CommissionBasis  *string
	DirectFreight    *decimal.Decimal
	WarehouseFreight *decimal.Decimal
	AdvanceAmount    *decimal.Decimal
	BalanceAmount    *decimal.Decimal
	Confirmed        *bool
	Status           *DeliveryStatus
	ImageURL         *string
	Note             *string
}

// Detail is the full read model for one order: the row itself plus the
// quantity state and cost breakdown derived live from source tables.
type Detail struct {
	Order      PurchaseOrder
	Quantities Quantities
	Cost       CostBreakdown
	Shipments  []FactoryShipment
	CostItems  []CostItem
}

// ListRow pairs an order with its live quantity aggregates for list views.
type ListRow struct {
	Order      PurchaseOrder
	Quantities Quantities
}

// CreateOrder registers a new purchase order.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return PurchaseOrder{}, err
	}
	if input.Number == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: order number required", shared.ErrValidation)
	}
	if input.Quantity < 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: quantity must not be negative", shared.ErrValidation)
	}
	if input.UnitPrice.IsNegative() {
		return PurchaseOrder{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if err := s.requireCostAdmin(actor, !input.BackMargin.IsZero() || !input.CommissionRate.IsZero()); err != nil {
		return PurchaseOrder{}, err
	}
	orderedAt := input.OrderedAt
	if orderedAt.IsZero() {
		orderedAt = time.Now().UTC()
	}

	po := PurchaseOrder{
		Number:           input.Number,
		Quantity:         input.Quantity,
		UnitPrice:        input.UnitPrice,
		BackMargin:       input.BackMargin,
		CommissionRate:   input.CommissionRate,
		CommissionBasis:  input.CommissionBasis,
		DirectFreight:    input.DirectFreight,
		WarehouseFreight: input.WarehouseFreight,
		AdvanceAmount:    input.AdvanceAmount,
		BalanceAmount:    input.BalanceAmount,
		Status:           StatusOrdered,
		OrderedAt:        orderedAt,
		ImageURL:         input.ImageURL,
		Note:             input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOrder(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordAudit(ctx, actor, "orders:create", po.ID, map[string]any{"number": po.Number, "qty": po.Quantity})
	s.notifyChanged(ctx, po.ID)
	return s.repo.GetOrder(ctx, po.ID)
}

// UpdateOrder applies a partial update and triggers recomputation. A
// confirmed order keeps its commercial terms frozen: the confirmation must be
// lifted in the same or an earlier update before those fields may change.
func (s *Service) UpdateOrder(ctx context.Context, id int64, input UpdateOrderInput) (PurchaseOrder, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.requireCostAdmin(actor, input.BackMargin != nil || input.CommissionRate != nil); err != nil {
		return PurchaseOrder{}, err
	}
	if input.Status != nil && !ValidStatus(*input.Status) {
		return PurchaseOrder{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *input.Status)
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: quantity must not be negative", shared.ErrValidation)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Confirmed && (input.Confirmed == nil || *input.Confirmed) && touchesCommercialTerms(input) {
			return ErrOrderConfirmed
		}
		applyOrderUpdate(&po, input)
		return tx.UpdateOrder(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	s.recordAudit(ctx, actor, "orders:update", id, nil)
	s.notifyChanged(ctx, id)
	return s.repo.GetOrder(ctx, id)
}

// touchesCommercialTerms reports whether the update changes the price-forming
// fields a confirmation freezes.
func touchesCommercialTerms(input UpdateOrderInput) bool {
	return input.Quantity != nil || input.UnitPrice != nil || input.BackMargin != nil ||
		input.CommissionRate != nil || input.CommissionBasis != nil
}

func applyOrderUpdate(po *PurchaseOrder, input UpdateOrderInput) {
	if input.Quantity != nil {
		po.Quantity = *input.Quantity
	}
	if input.UnitPrice != nil {
		po.UnitPrice = *input.UnitPrice
	}
	if input.BackMargin != nil {
		po.BackMargin = *input.BackMargin
	}
	if input.CommissionRate != nil {
		po.CommissionRate = *input.CommissionRate
	}
	if input.CommissionBasis != nil {
		po.CommissionBasis = *input.CommissionBasis
	}
	if input.DirectFreight != nil {
		po.DirectFreight = *input.DirectFreight
	}
	if input.WarehouseFreight != nil {
		po.WarehouseFreight = *input.WarehouseFreight
	}
	if input.AdvanceAmount != nil {
		po.AdvanceAmount = *input.AdvanceAmount
	}
	if input.BalanceAmount != nil {
		po.BalanceAmount = *input.BalanceAmount
	}
	if input.Confirmed != nil {
		po.Confirmed = *input.Confirmed
	}
	if input.Status != nil {
		po.Status = *input.Status
	}
	if input.ImageURL != nil {
		po.ImageURL = *input.ImageURL
	}
	if input.Note != nil {
		po.Note = *input.Note
	}
}

// DeleteOrder removes an order. Child rows (shipments, cost items, packing
// references, images) cascade at the datastore.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return err
	}
	if _, err := s.repo.GetOrder(ctx, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "orders:delete", id, nil)
	return nil
}

// GetDetail loads the full read model for one order. The cost breakdown is
// recomputed from source tables on every read; the stored
// expected_final_unit_price is only a hint and is refreshed when it drifts.
func (s *Service) GetDetail(ctx context.Context, id int64) (Detail, error) {
	po, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	sums, err := s.repo.QuantitySums(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	items, err := s.visibleCostItems(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	shipments, err := s.repo.ListFactoryShipments(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	breakdown, err := s.breakdown(ctx, po)
	if err != nil {
		return Detail{}, err
	}
	s.refreshStoredHint(ctx, po, breakdown)

	return Detail{
		Order:      po,
		Quantities: DeriveQuantities(sums),
		Cost:       breakdown,
		Shipments:  shipments,
		CostItems:  items,
	}, nil
}

// List returns paginated orders with live quantity aggregates.
func (s *Service) List(ctx context.Context, page, perPage int, filter ListFilter) ([]ListRow, shared.Pagination, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	pos, total, err := s.repo.ListOrders(ctx, perPage, shared.PageOffset(page, perPage), filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}

	rows := make([]ListRow, len(pos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, po := range pos {
		g.Go(func() error {
			sums, err := s.repo.QuantitySums(gctx, po.ID)
			if err != nil {
				return err
			}
			rows[i] = ListRow{Order: po, Quantities: DeriveQuantities(sums)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, shared.Pagination{}, err
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// Quantities derives the quantity state for one order.
func (s *Service) Quantities(ctx context.Context, orderID int64) (Quantities, error) {
	sums, err := s.repo.QuantitySums(ctx, orderID)
	if err != nil {
		return Quantities{}, err
	}
	return DeriveQuantities(sums), nil
}

// AddFactoryShipmentInput describes a factory shipment entry.
type AddFactoryShipmentInput struct {
	OrderID    int64
	Quantity   int64
	ShippedAt  time.Time
	TrackingNo string
}

// AddFactoryShipment records a partial factory shipment against an order.
func (s *Service) AddFactoryShipment(ctx context.Context, input AddFactoryShipmentInput) (FactoryShipment, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return FactoryShipment{}, err
	}
	if input.Quantity <= 0 {
		return FactoryShipment{}, ErrInvalidQuantity
	}
	if _, err := s.repo.GetOrder(ctx, input.OrderID); err != nil {
		return FactoryShipment{}, err
	}
	shippedAt := input.ShippedAt
	if shippedAt.IsZero() {
		shippedAt = time.Now().UTC()
	}
	shipment := FactoryShipment{
		OrderID:    input.OrderID,
		Quantity:   input.Quantity,
		ShippedAt:  shippedAt,
		TrackingNo: input.TrackingNo,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertFactoryShipment(ctx, shipment)
		if err != nil {
			return err
		}
		shipment.ID = id
		return nil
	})
	if err != nil {
		return FactoryShipment{}, err
	}
	s.recordAudit(ctx, actor, "orders:shipment:create", input.OrderID, map[string]any{"qty": input.Quantity})
	return shipment, nil
}

// UpdateFactoryShipment rewrites a shipment entry.
func (s *Service) UpdateFactoryShipment(ctx context.Context, id int64, quantity int64, shippedAt time.Time, trackingNo string) (FactoryShipment, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return FactoryShipment{}, err
	}
	if quantity <= 0 {
		return FactoryShipment{}, ErrInvalidQuantity
	}
	shipment, err := s.repo.GetFactoryShipment(ctx, id)
	if err != nil {
		return FactoryShipment{}, err
	}
	shipment.Quantity = quantity
	if !shippedAt.IsZero() {
		shipment.ShippedAt = shippedAt
	}
	shipment.TrackingNo = trackingNo
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateFactoryShipment(ctx, shipment)
	})
	if err != nil {
		return FactoryShipment{}, err
	}
	s.recordAudit(ctx, actor, "orders:shipment:update", shipment.OrderID, map[string]any{"shipment_id": id})
	return shipment, nil
}

// DeleteFactoryShipment removes a shipment entry.
func (s *Service) DeleteFactoryShipment(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return err
	}
	shipment, err := s.repo.GetFactoryShipment(ctx, id)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteFactoryShipment(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "orders:shipment:delete", shipment.OrderID, map[string]any{"shipment_id": id})
	return nil
}

// AddCostItemInput describes an ad-hoc cost item.
type AddCostItemInput struct {
	OrderID   int64
	Kind      CostKind
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
	AdminOnly bool
}

// AddCostItem attaches a cost item to an order.
func (s *Service) AddCostItem(ctx context.Context, input AddCostItemInput) (CostItem, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return CostItem{}, err
	}
	if err := s.requireCostAdmin(actor, input.AdminOnly); err != nil {
		return CostItem{}, err
	}
	if input.Kind != CostKindOption && input.Kind != CostKindLabor {
		return CostItem{}, fmt.Errorf("%w: unknown cost kind %q", shared.ErrValidation, input.Kind)
	}
	if input.Quantity <= 0 {
		return CostItem{}, ErrInvalidQuantity
	}
	if input.UnitPrice.IsNegative() {
		return CostItem{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if _, err := s.repo.GetOrder(ctx, input.OrderID); err != nil {
		return CostItem{}, err
	}

	item := CostItem{
		OrderID:   input.OrderID,
		Kind:      input.Kind,
		Name:      input.Name,
		UnitPrice: input.UnitPrice,
		Quantity:  input.Quantity,
		AdminOnly: input.AdminOnly,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertCostItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return nil
	})
	if err != nil {
		return CostItem{}, err
	}
	s.recordAudit(ctx, actor, "orders:cost:create", input.OrderID, map[string]any{"kind": input.Kind})
	s.notifyChanged(ctx, input.OrderID)
	return item, nil
}

// UpdateCostItem rewrites a cost item.
func (s *Service) UpdateCostItem(ctx context.Context, id int64, input AddCostItemInput) (CostItem, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return CostItem{}, err
	}
	item, err := s.repo.GetCostItem(ctx, id)
	if err != nil {
		return CostItem{}, err
	}
	if err := s.requireCostAdmin(actor, item.AdminOnly || input.AdminOnly); err != nil {
		return CostItem{}, err
	}
	if input.Quantity <= 0 {
		return CostItem{}, ErrInvalidQuantity
	}
	if input.UnitPrice.IsNegative() {
		return CostItem{}, fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	item.Name = input.Name
	item.UnitPrice = input.UnitPrice
	item.Quantity = input.Quantity
	item.AdminOnly = input.AdminOnly
	if input.Kind == CostKindOption || input.Kind == CostKindLabor {
		item.Kind = input.Kind
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateCostItem(ctx, item)
	})
	if err != nil {
		return CostItem{}, err
	}
	s.recordAudit(ctx, actor, "orders:cost:update", item.OrderID, map[string]any{"cost_item_id": id})
	s.notifyChanged(ctx, item.OrderID)
	return item, nil
}

// DeleteCostItem removes a cost item.
func (s *Service) DeleteCostItem(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapOrdersEdit); err != nil {
		return err
	}
	item, err := s.repo.GetCostItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireCostAdmin(actor, item.AdminOnly); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteCostItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "orders:cost:delete", item.OrderID, map[string]any{"cost_item_id": id})
	s.notifyChanged(ctx, item.OrderID)
	return nil
}

// RecomputeDerived rebuilds the cost breakdown for an order and persists the
// expected final unit price. Recomputation is idempotent: with unchanged
// inputs the stored value does not move.
func (s *Service) RecomputeDerived(ctx context.Context, orderID int64) (CostBreakdown, error) {
	po, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return CostBreakdown{}, err
	}
	breakdown, err := s.breakdown(ctx, po)
	if err != nil {
		return CostBreakdown{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetExpectedFinalUnitPrice(ctx, orderID, breakdown.ExpectedFinalUnitPrice)
	})
	if err != nil {
		return CostBreakdown{}, err
	}
	return breakdown, nil
}

// ListOrderIDs exposes all order ids, used by the periodic reconciliation sweep.
func (s *Service) ListOrderIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListOrderIDs(ctx)
}

func (s *Service) breakdown(ctx context.Context, po PurchaseOrder) (CostBreakdown, error) {
	items, err := s.repo.ListCostItems(ctx, po.ID)
	if err != nil {
		return CostBreakdown{}, err
	}
	freight := decimal.Zero
	if s.proration != nil {
		freight, err = s.proration.AllocatedFreight(ctx, po.ID)
		if err != nil {
			return CostBreakdown{}, fmt.Errorf("orders: prorate freight for order %d: %w", po.ID, err)
		}
	}
	return s.calc.Breakdown(po, items, freight), nil
}

// refreshStoredHint writes the freshly computed unit price back when the
// stored hint has drifted. Failures are logged, never surfaced: the stored
// value is a performance hint, the computed value is authoritative.
func (s *Service) refreshStoredHint(ctx context.Context, po PurchaseOrder, breakdown CostBreakdown) {
	stale := false
	switch {
	case po.ExpectedFinalUnitPrice == nil && breakdown.ExpectedFinalUnitPrice != nil:
		stale = true
	case po.ExpectedFinalUnitPrice != nil && breakdown.ExpectedFinalUnitPrice == nil:
		stale = true
	case po.ExpectedFinalUnitPrice != nil && breakdown.ExpectedFinalUnitPrice != nil:
		stale = !po.ExpectedFinalUnitPrice.Equal(*breakdown.ExpectedFinalUnitPrice)
	}
	if !stale {
		return
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetExpectedFinalUnitPrice(ctx, po.ID, breakdown.ExpectedFinalUnitPrice)
	})
	if err != nil {
		s.logger.Warn("refresh expected unit price", slog.Int64("order_id", po.ID), slog.Any("error", err))
	}
}

// visibleCostItems filters admin-only items for callers without cost.admin.
func (s *Service) visibleCostItems(ctx context.Context, orderID int64) ([]CostItem, error) {
	items, err := s.repo.ListCostItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if shared.ActorFromContext(ctx).Can(shared.CapCostAdmin) {
		return items, nil
	}
	visible := items[:0:0]
	for _, item := range items {
		if !item.AdminOnly {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

func (s *Service) requireCostAdmin(actor shared.Actor, needed bool) error {
	if !needed {
		return nil
	}
	return actor.Require(shared.CapCostAdmin)
}

func (s *Service) notifyChanged(ctx context.Context, orderIDs ...int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.OrderChanged(ctx, orderIDs...)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
