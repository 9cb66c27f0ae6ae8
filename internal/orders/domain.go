package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/shared"
)

// DeliveryStatus tracks where an order sits in its physical lifecycle.
type DeliveryStatus string

const (
	StatusOrdered   DeliveryStatus = "ORDERED"
	StatusProducing DeliveryStatus = "PRODUCING"
	StatusShipping  DeliveryStatus = "SHIPPING"
	StatusArrived   DeliveryStatus = "ARRIVED"
	StatusClosed    DeliveryStatus = "CLOSED"
)

// ValidStatus reports whether s is a known delivery status.
func ValidStatus(s DeliveryStatus) bool {
	switch s {
	case StatusOrdered, StatusProducing, StatusShipping, StatusArrived, StatusClosed:
		return true
	}
	return false
}

// PurchaseOrder is an order placed with an overseas factory.
//
// ExpectedFinalUnitPrice is derived: it is a function of the pricing fields,
// the order's cost items and the freight prorated onto the order. It is
// persisted only as a hint and recomputed whenever any input changes.
type PurchaseOrder struct {
	ID               int64
	Number           string
	Quantity         int64
	UnitPrice        decimal.Decimal
	BackMargin       decimal.Decimal
	CommissionRate   decimal.Decimal
	CommissionBasis  string
	DirectFreight    decimal.Decimal
	WarehouseFreight decimal.Decimal

	AdvanceAmount decimal.Decimal
	BalanceAmount decimal.Decimal
	AdvancePaidAt *time.Time
	BalancePaidAt *time.Time

	Confirmed bool
	Status    DeliveryStatus
	OrderedAt time.Time

	ExpectedFinalUnitPrice *decimal.Decimal

	ImageURL  string
	Note      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderUnitPrice is the effective per-unit price: base price plus back margin.
func (po PurchaseOrder) OrderUnitPrice() decimal.Decimal {
	return po.UnitPrice.Add(po.BackMargin)
}

// FactoryShipment records a quantity physically leaving the factory.
// Multiple entries per order are normal: factories ship in partial lots.
type FactoryShipment struct {
	ID         int64
	OrderID    int64
	Quantity   int64
	ShippedAt  time.Time
	TrackingNo string
	CreatedAt  time.Time
}

// CostKind tags a cost item as an option or labor charge.
type CostKind string

const (
	CostKindOption CostKind = "option"
	CostKindLabor  CostKind = "labor"
)

// CostItem is an ad-hoc charge attached to an order. AdminOnly items are
// visible and editable only to holders of cost.admin, and their commission
// treatment depends on the order-date rule in cost.go.
type CostItem struct {
	ID        int64
	OrderID   int64
	Kind      CostKind
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
	AdminOnly bool
	CreatedAt time.Time
}

// Total is unit price times quantity.
func (ci CostItem) Total() decimal.Decimal {
	return ci.UnitPrice.Mul(decimal.NewFromInt(ci.Quantity))
}

// Quantities is the set of derived quantity figures for one order. All
// derived fields are clamped at zero: over-shipment is tolerated because
// physical corrections land after the fact and data entry must not block.
type Quantities struct {
	Ordered        int64 `json:"ordered"`
	FactoryShipped int64 `json:"factory_shipped"`
	PackingShipped int64 `json:"packing_shipped"`
	Unreceived     int64 `json:"unreceived"`
	Unshipped      int64 `json:"unshipped"`
	InTransit      int64 `json:"in_transit"`
	Arrived        int64 `json:"arrived"`
}

// QuantitySums carries the raw child-record sums the aggregator derives from.
type QuantitySums struct {
	Ordered        int64
	FactoryShipped int64
	PackingShipped int64
	Arrived        int64
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status  DeliveryStatus
	Search  string
	From    time.Time
	To      time.Time
	SortBy  string
	SortDir string
}

var (
	// ErrOrderNotFound indicates a missing purchase order.
	ErrOrderNotFound = fmt.Errorf("orders: purchase order %w", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a non-positive quantity input.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	// ErrOrderConfirmed rejects edits locked out by confirmation.
	ErrOrderConfirmed = fmt.Errorf("%w: order already confirmed", shared.ErrConflict)
)
