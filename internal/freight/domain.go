package freight

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/shared"
)

// PackUnit tags how a packing list item is physically packed.
type PackUnit string

const (
	PackUnitBox  PackUnit = "box"
	PackUnitSack PackUnit = "sack"
)

// ValidPackUnit reports whether u is a known packaging unit.
func ValidPackUnit(u PackUnit) bool {
	return u == PackUnitBox || u == PackUnitSack
}

// PackingList is a consolidated freight manifest identified by a business
// code. One code can span several rows when a physical shipment is split
// across manifests; freight payment is recorded per code.
type PackingList struct {
	ID          int64            `json:"id"`
	Code        string           `json:"code"`
	ShippedAt   time.Time        `json:"shipped_at"`
	ArrivedAt   *time.Time       `json:"arrived_at,omitempty"`
	FreightCost decimal.Decimal  `json:"freight_cost"`
	Weight      decimal.Decimal  `json:"weight"`
	WeightRatio *decimal.Decimal `json:"weight_ratio,omitempty"`
	WKPaidAt    *time.Time       `json:"wk_paid_at,omitempty"`
	Note        string           `json:"note,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ChargeableWeight returns the surcharge-adjusted weight: the stored weight
// multiplied by the weight ratio when one is set, otherwise the stored weight.
func (pl PackingList) ChargeableWeight() decimal.Decimal {
	if pl.WeightRatio == nil {
		return pl.Weight
	}
	return pl.Weight.Mul(*pl.WeightRatio)
}

// PackingListItem is one line on a manifest. OrderID is nullable: a manifest
// can also move non-order inventory between warehouses, and such items
// contribute to no purchase order's aggregates.
type PackingListItem struct {
	ID            int64     `json:"id"`
	PackingListID int64     `json:"packing_list_id"`
	OrderID       *int64    `json:"order_id,omitempty"`
	Quantity      int64     `json:"quantity"`
	PackUnit      PackUnit  `json:"pack_unit"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// KoreaArrival records a receipt event at the domestic warehouse against one
// packing list item. An item can have several arrivals (split receiving).
type KoreaArrival struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Quantity  int64     `json:"quantity"`
	ArrivedAt time.Time `json:"arrived_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter narrows packing list queries.
type ListFilter struct {
	Code        string
	ShippedFrom *time.Time
	ShippedTo   *time.Time
	Unarrived   bool
}

var (
	ErrListNotFound    = fmt.Errorf("packing list %w", shared.ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("packing list item %w", shared.ErrNotFound)
	ErrArrivalNotFound = fmt.Errorf("arrival %w", shared.ErrNotFound)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
)
