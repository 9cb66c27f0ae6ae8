package payments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/shared"
)

// SourceType identifies what a payment request pays for.
type SourceType string

const (
	SourceOrder       SourceType = "order"
	SourcePackingList SourceType = "packing_list"
)

// PaymentType distinguishes the three payment legs. Advance and balance pay a
// purchase order; shipping pays the freight of a packing list code.
type PaymentType string

const (
	TypeAdvance  PaymentType = "advance"
	TypeBalance  PaymentType = "balance"
	TypeShipping PaymentType = "shipping"
)

// Status of a request. Completed is terminal; withdrawn requests are deleted
// while still requested rather than moved to a cancelled state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusCompleted Status = "completed"
)

// PaymentRequest ties a payable amount to its source record. SourceRef is the
// purchase order id rendered as a string, or the packing list business code.
// Shipping is paid per code because one code can span several manifest rows.
type PaymentRequest struct {
	ID          int64           `json:"id"`
	Number      string          `json:"number"`
	SourceType  SourceType      `json:"source_type"`
	SourceRef   string          `json:"source_ref"`
	PaymentType PaymentType     `json:"payment_type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	Note        string          `json:"note,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CompletedBy string          `json:"completed_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListFilter narrows request queries.
type ListFilter struct {
	Status      Status
	SourceType  SourceType
	PaymentType PaymentType
	SourceRef   string
}

func validSourcePair(st SourceType, pt PaymentType) bool {
	switch st {
	case SourceOrder:
		return pt == TypeAdvance || pt == TypeBalance
	case SourcePackingList:
		return pt == TypeShipping
	}
	return false
}

var (
	ErrRequestNotFound = fmt.Errorf("payment request %w", shared.ErrNotFound)
	ErrDuplicateOpen   = fmt.Errorf("%w: an open request already exists for this source and payment type", shared.ErrConflict)
	ErrAlreadyComplete = fmt.Errorf("%w: payment request already completed", shared.ErrConflict)
	ErrAlreadyPaid     = fmt.Errorf("%w: this payment is already recorded on the source", shared.ErrConflict)
	ErrNoPayableAmount = fmt.Errorf("%w: the source has no payable amount for this payment type", shared.ErrValidation)
)
