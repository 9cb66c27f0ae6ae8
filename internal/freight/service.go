package freight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/shared"
)

// RepositoryPort is the storage contract the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetList(ctx context.Context, id int64) (PackingList, error)
	ListLists(ctx context.Context, limit, offset int, filter ListFilter) ([]PackingList, int, error)
	ListItems(ctx context.Context, listID int64) ([]PackingListItem, error)
	GetItem(ctx context.Context, id int64) (PackingListItem, error)
	ListArrivals(ctx context.Context, itemID int64) ([]KoreaArrival, error)
	GetArrival(ctx context.Context, id int64) (KoreaArrival, error)
	OrderShares(ctx context.Context, orderID int64) ([]ListShare, error)
	OrderIDsForList(ctx context.Context, listID int64) ([]int64, error)
	OrderPackState(ctx context.Context, orderID int64) (factoryShipped, packed int64, err error)
}

// TxRepository is the write contract inside a transaction.
type TxRepository interface {
	InsertList(ctx context.Context, pl PackingList) (int64, error)
	UpdateList(ctx context.Context, pl PackingList) error
	DeleteList(ctx context.Context, id int64) error
	GetListForUpdate(ctx context.Context, id int64) (PackingList, error)
	OrderExistsForUpdate(ctx context.Context, orderID int64) (bool, error)
	InsertItem(ctx context.Context, item PackingListItem) (int64, error)
	UpdateItem(ctx context.Context, item PackingListItem) error
	DeleteItem(ctx context.Context, id int64) error
	InsertArrival(ctx context.Context, a KoreaArrival) (int64, error)
	DeleteArrival(ctx context.Context, id int64) error
}

// RecomputeNotifier receives the purchase order ids whose derived costs are
// stale after a freight mutation.
type RecomputeNotifier interface {
	OrderChanged(ctx context.Context, orderIDs ...int64)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates packing list operations and answers freight proration
// queries for the cost calculator.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	notifier RecomputeNotifier
	logger   *slog.Logger
}

func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// SetRecomputeNotifier injects the orchestrator hook after construction.
func (s *Service) SetRecomputeNotifier(n RecomputeNotifier) {
	s.notifier = n
}

// AllocatedFreight returns the order's prorated share of freight across all
// packing lists carrying it. Satisfies the cost calculator's proration port.
func (s *Service) AllocatedFreight(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	shares, err := s.repo.OrderShares(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return AllocatedFreight(shares), nil
}

// UnitShipping returns the order's allocated freight divided by its ordered
// quantity.
func (s *Service) UnitShipping(ctx context.Context, orderID, orderedQuantity int64) (decimal.Decimal, error) {
	allocated, err := s.AllocatedFreight(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return UnitShippingCost(allocated, orderedQuantity), nil
}

// CreateListInput carries the writable packing list fields.
type CreateListInput struct {
	Code        string
	ShippedAt   time.Time
	ArrivedAt   *time.Time
	FreightCost decimal.Decimal
	Weight      decimal.Decimal
	WeightRatio *decimal.Decimal
	Note        string
}

func (s *Service) CreateList(ctx context.Context, input CreateListInput) (PackingList, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return PackingList{}, err
	}
	if input.Code == "" {
		return PackingList{}, fmt.Errorf("%w: packing list code required", shared.ErrValidation)
	}
	if input.FreightCost.IsNegative() {
		return PackingList{}, fmt.Errorf("%w: freight cost must not be negative", shared.ErrValidation)
	}
	if input.ShippedAt.IsZero() {
		input.ShippedAt = time.Now().UTC()
	}

	pl := PackingList{
		Code:        input.Code,
		ShippedAt:   input.ShippedAt,
		ArrivedAt:   input.ArrivedAt,
		FreightCost: input.FreightCost,
		Weight:      input.Weight,
		WeightRatio: input.WeightRatio,
		Note:        input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertList(ctx, pl)
		if err != nil {
			return err
		}
		pl.ID = id
		return nil
	})
	if err != nil {
		return PackingList{}, err
	}
	s.recordAudit(ctx, actor, "freight:list:create", pl.ID, map[string]any{"code": pl.Code})
	return s.repo.GetList(ctx, pl.ID)
}

// UpdateListInput updates only the fields that are set.
type UpdateListInput struct {
	Code        *string
	ShippedAt   *time.Time
	ArrivedAt   *time.Time
	ClearArrive bool
	FreightCost *decimal.Decimal
	Weight      *decimal.Decimal
	WeightRatio *decimal.Decimal
	ClearRatio  bool
	Note        *string
}

func (s *Service) UpdateList(ctx context.Context, id int64, input UpdateListInput) (PackingList, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return PackingList{}, err
	}
	if input.FreightCost != nil && input.FreightCost.IsNegative() {
		return PackingList{}, fmt.Errorf("%w: freight cost must not be negative", shared.ErrValidation)
	}

	var pl PackingList
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetListForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.Code != nil {
			current.Code = *input.Code
		}
		if input.ShippedAt != nil {
			current.ShippedAt = *input.ShippedAt
		}
		if input.ClearArrive {
			current.ArrivedAt = nil
		} else if input.ArrivedAt != nil {
			current.ArrivedAt = input.ArrivedAt
		}
		if input.FreightCost != nil {
			current.FreightCost = *input.FreightCost
		}
		if input.Weight != nil {
			current.Weight = *input.Weight
		}
		if input.ClearRatio {
			current.WeightRatio = nil
		} else if input.WeightRatio != nil {
			current.WeightRatio = input.WeightRatio
		}
		if input.Note != nil {
			current.Note = *input.Note
		}
		pl = current
		return tx.UpdateList(ctx, current)
	})
	if err != nil {
		return PackingList{}, err
	}
	s.recordAudit(ctx, actor, "freight:list:update", id, nil)
	s.notifyListOrders(ctx, id)
	return pl, nil
}

func (s *Service) DeleteList(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return err
	}
	// Collect affected orders before the cascade wipes the items.
	orderIDs, err := s.repo.OrderIDsForList(ctx, id)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteList(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "freight:list:delete", id, nil)
	s.notifyChanged(ctx, orderIDs...)
	return nil
}

// ListDetail bundles a packing list with its items and their arrivals.
type ListDetail struct {
	List             PackingList              `json:"list"`
	ChargeableWeight decimal.Decimal          `json:"chargeable_weight"`
	Items            []PackingListItem        `json:"items"`
	Arrivals         map[int64][]KoreaArrival `json:"arrivals,omitempty"`
}

func (s *Service) GetDetail(ctx context.Context, id int64) (ListDetail, error) {
	pl, err := s.repo.GetList(ctx, id)
	if err != nil {
		return ListDetail{}, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return ListDetail{}, err
	}
	arrivals := make(map[int64][]KoreaArrival)
	for _, item := range items {
		as, err := s.repo.ListArrivals(ctx, item.ID)
		if err != nil {
			return ListDetail{}, err
		}
		if len(as) > 0 {
			arrivals[item.ID] = as
		}
	}
	return ListDetail{List: pl, ChargeableWeight: pl.ChargeableWeight(), Items: items, Arrivals: arrivals}, nil
}

// ListRow pairs a packing list with its chargeable weight for list views.
type ListRow struct {
	List             PackingList     `json:"list"`
	ChargeableWeight decimal.Decimal `json:"chargeable_weight"`
}

func (s *Service) List(ctx context.Context, page, perPage int, filter ListFilter) ([]ListRow, shared.Pagination, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	lists, total, err := s.repo.ListLists(ctx, perPage, shared.PageOffset(page, perPage), filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	rows := make([]ListRow, len(lists))
	for i, pl := range lists {
		rows[i] = ListRow{List: pl, ChargeableWeight: pl.ChargeableWeight()}
	}
	return rows, shared.NewPagination(page, perPage, total), nil
}

// AddItemInput describes one manifest line. OrderID nil means the item moves
// non-order inventory.
type AddItemInput struct {
	PackingListID int64
	OrderID       *int64
	Quantity      int64
	PackUnit      PackUnit
	Note          string
}

func (s *Service) AddItem(ctx context.Context, input AddItemInput) (PackingListItem, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return PackingListItem{}, err
	}
	if input.Quantity <= 0 {
		return PackingListItem{}, ErrInvalidQuantity
	}
	if !ValidPackUnit(input.PackUnit) {
		return PackingListItem{}, fmt.Errorf("%w: unknown pack unit %q", shared.ErrValidation, input.PackUnit)
	}

	item := PackingListItem{
		PackingListID: input.PackingListID,
		OrderID:       input.OrderID,
		Quantity:      input.Quantity,
		PackUnit:      input.PackUnit,
		Note:          input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetListForUpdate(ctx, input.PackingListID); err != nil {
			return err
		}
		if input.OrderID != nil {
			ok, err := tx.OrderExistsForUpdate(ctx, *input.OrderID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("purchase order %d %w", *input.OrderID, shared.ErrNotFound)
			}
		}
		id, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return nil
	})
	if err != nil {
		return PackingListItem{}, err
	}

	// Packing more than the factory reported shipping is tolerated (manifests
	// sometimes land before the shipment report) but worth surfacing.
	if input.OrderID != nil {
		if factoryShipped, packed, err := s.repo.OrderPackState(ctx, *input.OrderID); err == nil && packed > factoryShipped {
			s.logger.Warn("packing exceeds factory shipped quantity",
				slog.Int64("order_id", *input.OrderID), slog.Int64("factory_shipped", factoryShipped), slog.Int64("packed", packed))
		}
	}
	s.notifyListOrders(ctx, input.PackingListID)
	s.recordAudit(ctx, actor, "freight:item:create", item.ID, map[string]any{"packing_list_id": input.PackingListID})
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, id int64, quantity int64, orderID *int64, unit PackUnit, note string) (PackingListItem, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return PackingListItem{}, err
	}
	if quantity <= 0 {
		return PackingListItem{}, ErrInvalidQuantity
	}
	if !ValidPackUnit(unit) {
		return PackingListItem{}, fmt.Errorf("%w: unknown pack unit %q", shared.ErrValidation, unit)
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return PackingListItem{}, err
	}
	previousOrder := item.OrderID

	item.Quantity = quantity
	item.OrderID = orderID
	item.PackUnit = unit
	item.Note = note
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if orderID != nil {
			ok, err := tx.OrderExistsForUpdate(ctx, *orderID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("purchase order %d %w", *orderID, shared.ErrNotFound)
			}
		}
		return tx.UpdateItem(ctx, item)
	})
	if err != nil {
		return PackingListItem{}, err
	}
	s.recordAudit(ctx, actor, "freight:item:update", id, nil)
	var extra []int64
	if previousOrder != nil {
		extra = append(extra, *previousOrder)
	}
	s.notifyListOrders(ctx, item.PackingListID, extra...)
	return item, nil
}

func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return err
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "freight:item:delete", id, nil)
	var extra []int64
	if item.OrderID != nil {
		extra = append(extra, *item.OrderID)
	}
	s.notifyListOrders(ctx, item.PackingListID, extra...)
	return nil
}

// AddArrivalInput records a receipt at the domestic warehouse.
type AddArrivalInput struct {
	ItemID    int64
	Quantity  int64
	ArrivedAt time.Time
}

func (s *Service) AddArrival(ctx context.Context, input AddArrivalInput) (KoreaArrival, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return KoreaArrival{}, err
	}
	if input.Quantity <= 0 {
		return KoreaArrival{}, ErrInvalidQuantity
	}
	item, err := s.repo.GetItem(ctx, input.ItemID)
	if err != nil {
		return KoreaArrival{}, err
	}
	arrivedAt := input.ArrivedAt
	if arrivedAt.IsZero() {
		arrivedAt = time.Now().UTC()
	}

	arrival := KoreaArrival{ItemID: input.ItemID, Quantity: input.Quantity, ArrivedAt: arrivedAt}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertArrival(ctx, arrival)
		if err != nil {
			return err
		}
		arrival.ID = id
		return nil
	})
	if err != nil {
		return KoreaArrival{}, err
	}
	s.recordAudit(ctx, actor, "freight:arrival:create", arrival.ID, map[string]any{"item_id": input.ItemID})
	s.notifyItemOrders(ctx, item.OrderID, nil)
	return arrival, nil
}

func (s *Service) DeleteArrival(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapFreightEdit); err != nil {
		return err
	}
	arrival, err := s.repo.GetArrival(ctx, id)
	if err != nil {
		return err
	}
	item, err := s.repo.GetItem(ctx, arrival.ItemID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteArrival(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "freight:arrival:delete", id, nil)
	s.notifyItemOrders(ctx, item.OrderID, nil)
	return nil
}

func (s *Service) notifyChanged(ctx context.Context, orderIDs ...int64) {
	if s.notifier == nil || len(orderIDs) == 0 {
		return
	}
	s.notifier.OrderChanged(ctx, orderIDs...)
}

// notifyListOrders queues recomputation for every order the list touches. Any
// item mutation moves the list's total quantity and with it the unit freight
// allocated to every other order on the same list, so the fan-out is per
// list, never per item. extra carries orders that just left the list (a
// deleted or relinked item).
func (s *Service) notifyListOrders(ctx context.Context, listID int64, extra ...int64) {
	ids, err := s.repo.OrderIDsForList(ctx, listID)
	if err != nil {
		s.logger.Warn("resolving orders for packing list failed", slog.Int64("packing_list_id", listID), slog.Any("error", err))
		ids = nil
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range extra {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	s.notifyChanged(ctx, ids...)
}

func (s *Service) notifyItemOrders(ctx context.Context, previous, current *int64) {
	var ids []int64
	if previous != nil {
		ids = append(ids, *previous)
	}
	if current != nil && (previous == nil || *current != *previous) {
		ids = append(ids, *current)
	}
	s.notifyChanged(ctx, ids...)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "freight",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
