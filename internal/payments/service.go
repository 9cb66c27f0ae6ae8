package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/shared"
)

// RepositoryPort is the storage contract the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (PaymentRequest, error)
	ListRequests(ctx context.Context, limit, offset int, filter ListFilter) ([]PaymentRequest, int, error)
}

// TxRepository is the write contract inside a transaction. The source state
// reads lock the source rows so a completion cannot race a duplicate create.
type TxRepository interface {
	InsertRequest(ctx context.Context, pr PaymentRequest) (int64, error)
	GetRequestForUpdate(ctx context.Context, id int64) (PaymentRequest, error)
	UpdateRequest(ctx context.Context, pr PaymentRequest) error
	DeleteRequest(ctx context.Context, id int64) error
	CompleteRequest(ctx context.Context, id int64, at time.Time, completer string) error
	OrderPaymentState(ctx context.Context, orderID int64, pt PaymentType) (decimal.Decimal, *time.Time, error)
	CodeShippingState(ctx context.Context, code string) (decimal.Decimal, *time.Time, error)
	MarkOrderPaid(ctx context.Context, orderID int64, pt PaymentType, at time.Time) error
	MarkCodePaid(ctx context.Context, code string, at time.Time) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the payment request lifecycle: requested, then either
// completed (with a write-back onto the source record) or deleted.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput identifies the source and leg to request payment for. Amount is
// optional: when zero the source's own payable amount is used.
type CreateInput struct {
	SourceType  SourceType
	SourceRef   string
	PaymentType PaymentType
	Amount      decimal.Decimal
	RequestedAt time.Time
	Note        string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (PaymentRequest, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapPaymentsEdit); err != nil {
		return PaymentRequest{}, err
	}
	if !validSourcePair(input.SourceType, input.PaymentType) {
		return PaymentRequest{}, fmt.Errorf("%w: %s payment does not apply to source type %s",
			shared.ErrValidation, input.PaymentType, input.SourceType)
	}
	if input.SourceRef == "" {
		return PaymentRequest{}, fmt.Errorf("%w: source reference required", shared.ErrValidation)
	}
	if input.Amount.IsNegative() {
		return PaymentRequest{}, fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	requestedAt := input.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = s.now()
	}

	pr := PaymentRequest{
		Number:      newRequestNumber(requestedAt),
		SourceType:  input.SourceType,
		SourceRef:   input.SourceRef,
		PaymentType: input.PaymentType,
		Amount:      input.Amount,
		Status:      StatusRequested,
		RequestedAt: requestedAt,
		Note:        input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payable, paidAt, err := s.sourceState(ctx, tx, input.SourceType, input.SourceRef, input.PaymentType)
		if err != nil {
			return err
		}
		if paidAt != nil {
			return ErrAlreadyPaid
		}
		// A source whose corresponding amount was never set has nothing to
		// pay, no matter what amount the caller typed in.
		if payable.IsZero() {
			return ErrNoPayableAmount
		}
		if pr.Amount.IsZero() {
			pr.Amount = payable
		}
		// The partial unique index rejects a concurrent duplicate; the insert
		// maps that violation to ErrDuplicateOpen.
		id, err := tx.InsertRequest(ctx, pr)
		if err != nil {
			return err
		}
		pr.ID = id
		return nil
	})
	if err != nil {
		return PaymentRequest{}, err
	}
	s.recordAudit(ctx, actor, "payments:create", pr.ID, map[string]any{
		"source_type": pr.SourceType, "source_ref": pr.SourceRef, "payment_type": pr.PaymentType,
	})
	return pr, nil
}

// Complete marks one request paid and stamps the payment date back onto the
// source record in the same transaction.
func (s *Service) Complete(ctx context.Context, id int64) (PaymentRequest, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapPaymentsEdit); err != nil {
		return PaymentRequest{}, err
	}
	var pr PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		pr, err = s.completeOne(ctx, tx, id, actor)
		return err
	})
	if err != nil {
		return PaymentRequest{}, err
	}
	s.recordAudit(ctx, actor, "payments:complete", id, nil)
	return pr, nil
}

// BatchComplete completes several requests atomically: if any of them cannot
// be completed the whole batch is rejected.
func (s *Service) BatchComplete(ctx context.Context, ids []int64) ([]PaymentRequest, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapPaymentsEdit); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no request ids given", shared.ErrValidation)
	}
	completed := make([]PaymentRequest, 0, len(ids))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range ids {
			pr, err := s.completeOne(ctx, tx, id, actor)
			if err != nil {
				return fmt.Errorf("request %d: %w", id, err)
			}
			completed = append(completed, pr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "payments:batch-complete", 0, map[string]any{"count": len(completed)})
	return completed, nil
}

func (s *Service) completeOne(ctx context.Context, tx TxRepository, id int64, actor shared.Actor) (PaymentRequest, error) {
	pr, err := tx.GetRequestForUpdate(ctx, id)
	if err != nil {
		return PaymentRequest{}, err
	}
	if pr.Status == StatusCompleted {
		return PaymentRequest{}, ErrAlreadyComplete
	}
	at := s.now()
	if err := tx.CompleteRequest(ctx, id, at, actor.Name); err != nil {
		return PaymentRequest{}, err
	}
	switch pr.SourceType {
	case SourceOrder:
		orderID, err := strconv.ParseInt(pr.SourceRef, 10, 64)
		if err != nil {
			return PaymentRequest{}, fmt.Errorf("%w: malformed order reference %q", shared.ErrValidation, pr.SourceRef)
		}
		if err := tx.MarkOrderPaid(ctx, orderID, pr.PaymentType, at); err != nil {
			return PaymentRequest{}, err
		}
	case SourcePackingList:
		if err := tx.MarkCodePaid(ctx, pr.SourceRef, at); err != nil {
			return PaymentRequest{}, err
		}
	}
	pr.Status = StatusCompleted
	pr.CompletedAt = &at
	pr.CompletedBy = actor.Name
	return pr, nil
}

// UpdateInput changes the mutable fields of an open request.
type UpdateInput struct {
	Amount      *decimal.Decimal
	RequestedAt *time.Time
	Note        *string
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (PaymentRequest, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapPaymentsEdit); err != nil {
		return PaymentRequest{}, err
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		return PaymentRequest{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	var pr PaymentRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusCompleted {
			return ErrAlreadyComplete
		}
		if input.Amount != nil {
			current.Amount = *input.Amount
		}
		if input.RequestedAt != nil {
			current.RequestedAt = *input.RequestedAt
		}
		if input.Note != nil {
			current.Note = *input.Note
		}
		pr = current
		return tx.UpdateRequest(ctx, current)
	})
	if err != nil {
		return PaymentRequest{}, err
	}
	s.recordAudit(ctx, actor, "payments:update", id, nil)
	return pr, nil
}

// Delete withdraws an open request. Completed requests stay on record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapPaymentsEdit); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusCompleted {
			return ErrAlreadyComplete
		}
		return tx.DeleteRequest(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "payments:delete", id, nil)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (PaymentRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

func (s *Service) List(ctx context.Context, page, perPage int, filter ListFilter) ([]PaymentRequest, shared.Pagination, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	requests, total, err := s.repo.ListRequests(ctx, perPage, shared.PageOffset(page, perPage), filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return requests, shared.NewPagination(page, perPage, total), nil
}

func (s *Service) sourceState(ctx context.Context, tx TxRepository, st SourceType, ref string, pt PaymentType) (decimal.Decimal, *time.Time, error) {
	switch st {
	case SourceOrder:
		orderID, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			return decimal.Zero, nil, fmt.Errorf("%w: malformed order reference %q", shared.ErrValidation, ref)
		}
		return tx.OrderPaymentState(ctx, orderID, pt)
	case SourcePackingList:
		return tx.CodeShippingState(ctx, ref)
	}
	return decimal.Zero, nil, fmt.Errorf("%w: unknown source type %q", shared.ErrValidation, st)
}

func newRequestNumber(at time.Time) string {
	suffix := uuid.NewString()[:8]
	return "PR-" + at.Format("20060102") + "-" + suffix
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, requestID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "payment_request",
		EntityID: fmt.Sprintf("%d", requestID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
