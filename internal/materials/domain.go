package materials

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/shared"
)

// Direction of a stock movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// ValidDirection reports whether d is a known movement direction.
func ValidDirection(d Direction) bool {
	return d == DirectionIn || d == DirectionOut
}

// Material is an auxiliary supply (boxes, tape, labels) tracked by a simple
// stock counter. CurrentStock is authoritative and always consistent with the
// transaction log: both are written in the same locked transaction.
type Material struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CurrentStock int64           `json:"current_stock"`
	ImageURL     string          `json:"image_url,omitempty"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StockTransaction is one immutable ledger entry. Deleting an entry reverses
// its effect on the stock counter under the same lock discipline.
// RelatedOrderID optionally ties the movement to the purchase order that
// consumed or supplied the material.
type StockTransaction struct {
	ID             int64     `json:"id"`
	MaterialID     int64     `json:"material_id"`
	Direction      Direction `json:"direction"`
	Quantity       int64     `json:"quantity"`
	OccurredAt     time.Time `json:"occurred_at"`
	Note           string    `json:"note,omitempty"`
	RelatedOrderID *int64    `json:"related_order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

var (
	ErrMaterialNotFound    = fmt.Errorf("material %w", shared.ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("stock transaction %w", shared.ErrNotFound)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	ErrNegativeStock       = fmt.Errorf("%w: transaction would drive stock negative", shared.ErrConflict)
)
