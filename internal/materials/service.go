package materials

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
	GetMaterial(ctx context.Context, id int64) (Material, error)
	ListMaterials(ctx context.Context, search string) ([]Material, error)
	ListTransactions(ctx context.Context, materialID int64) ([]StockTransaction, error)
	GetTransaction(ctx context.Context, id int64) (StockTransaction, error)
}

// TxRepository is the write contract inside a transaction.
type TxRepository interface {
	InsertMaterial(ctx context.Context, m Material) (int64, error)
	UpdateMaterial(ctx context.Context, m Material) error
	DeleteMaterial(ctx context.Context, id int64) error
	GetStockForUpdate(ctx context.Context, materialID int64) (int64, error)
	SetStock(ctx context.Context, materialID, stock int64) error
	InsertTransaction(ctx context.Context, stx StockTransaction) (int64, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (StockTransaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service keeps material stock and the transaction ledger consistent. Every
// stock movement runs as a locked check-then-write so concurrent outbound
// transactions cannot drive stock negative.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CreateMaterialInput carries the writable material fields. InitialStock, when
// positive, becomes an opening inbound transaction so the counter and the
// ledger stay consistent from the first row.
type CreateMaterialInput struct {
	Name         string
	Unit         string
	UnitPrice    decimal.Decimal
	InitialStock int64
	ImageURL     string
	Note         string
}

func (s *Service) CreateMaterial(ctx context.Context, input CreateMaterialInput) (Material, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapMaterialsEdit); err != nil {
		return Material{}, err
	}
	if input.Name == "" {
		return Material{}, fmt.Errorf("%w: material name required", shared.ErrValidation)
	}
	if input.InitialStock < 0 {
		return Material{}, fmt.Errorf("%w: initial stock must not be negative", shared.ErrValidation)
	}

	m := Material{
		Name:         input.Name,
		Unit:         input.Unit,
		UnitPrice:    input.UnitPrice,
		CurrentStock: input.InitialStock,
		ImageURL:     input.ImageURL,
		Note:         input.Note,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertMaterial(ctx, m)
		if err != nil {
			return err
		}
		m.ID = id
		if input.InitialStock > 0 {
			_, err = tx.InsertTransaction(ctx, StockTransaction{
				MaterialID: id,
				Direction:  DirectionIn,
				Quantity:   input.InitialStock,
				OccurredAt: time.Now().UTC(),
				Note:       "opening stock",
			})
		}
		return err
	})
	if err != nil {
		return Material{}, err
	}
	s.recordAudit(ctx, actor, "materials:create", m.ID, map[string]any{"name": m.Name})
	return s.repo.GetMaterial(ctx, m.ID)
}

// UpdateMaterialInput updates only the fields that are set. Stock is not
// editable here: it only moves through ApplyTransaction.
type UpdateMaterialInput struct {
	Name      *string
	Unit      *string
	UnitPrice *decimal.Decimal
	ImageURL  *string
	Note      *string
}

func (s *Service) UpdateMaterial(ctx context.Context, id int64, input UpdateMaterialInput) (Material, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapMaterialsEdit); err != nil {
		return Material{}, err
	}
	m, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	if input.Name != nil {
		if *input.Name == "" {
			return Material{}, fmt.Errorf("%w: material name required", shared.ErrValidation)
		}
		m.Name = *input.Name
	}
	if input.Unit != nil {
		m.Unit = *input.Unit
	}
	if input.UnitPrice != nil {
		m.UnitPrice = *input.UnitPrice
	}
	if input.ImageURL != nil {
		m.ImageURL = *input.ImageURL
	}
	if input.Note != nil {
		m.Note = *input.Note
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateMaterial(ctx, m)
	})
	if err != nil {
		return Material{}, err
	}
	s.recordAudit(ctx, actor, "materials:update", id, nil)
	return m, nil
}

func (s *Service) DeleteMaterial(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapMaterialsEdit); err != nil {
		return err
	}
	if _, err := s.repo.GetMaterial(ctx, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteMaterial(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "materials:delete", id, nil)
	return nil
}

func (s *Service) GetMaterial(ctx context.Context, id int64) (Material, error) {
	return s.repo.GetMaterial(ctx, id)
}

func (s *Service) ListMaterials(ctx context.Context, search string) ([]Material, error) {
	return s.repo.ListMaterials(ctx, search)
}

func (s *Service) ListTransactions(ctx context.Context, materialID int64) ([]StockTransaction, error) {
	if _, err := s.repo.GetMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, materialID)
}

// ApplyTransactionInput describes one stock movement.
type ApplyTransactionInput struct {
	MaterialID     int64
	Direction      Direction
	Quantity       int64
	OccurredAt     time.Time
	Note           string
	RelatedOrderID *int64
}

// ApplyTransaction moves stock under a row lock: read the current stock FOR
// UPDATE, reject if the result would be negative, then write the new counter
// and the ledger entry in the same transaction. The lock covers only this
// check-then-write sequence.
func (s *Service) ApplyTransaction(ctx context.Context, input ApplyTransactionInput) (StockTransaction, error) {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapMaterialsEdit); err != nil {
		return StockTransaction{}, err
	}
	if input.Quantity <= 0 {
		return StockTransaction{}, ErrInvalidQuantity
	}
	if !ValidDirection(input.Direction) {
		return StockTransaction{}, fmt.Errorf("%w: unknown direction %q", shared.ErrValidation, input.Direction)
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	stx := StockTransaction{
		MaterialID:     input.MaterialID,
		Direction:      input.Direction,
		Quantity:       input.Quantity,
		OccurredAt:     occurredAt,
		Note:           input.Note,
		RelatedOrderID: input.RelatedOrderID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, input.MaterialID)
		if err != nil {
			return err
		}
		newStock := stock + input.Quantity
		if input.Direction == DirectionOut {
			newStock = stock - input.Quantity
		}
		if newStock < 0 {
			return ErrNegativeStock
		}
		if err := tx.SetStock(ctx, input.MaterialID, newStock); err != nil {
			return err
		}
		id, err := tx.InsertTransaction(ctx, stx)
		if err != nil {
			return err
		}
		stx.ID = id
		return nil
	})
	if err != nil {
		return StockTransaction{}, err
	}
	s.recordAudit(ctx, actor, "materials:transaction", stx.ID, map[string]any{
		"material_id": input.MaterialID, "direction": input.Direction, "quantity": input.Quantity,
	})
	return stx, nil
}

// ReverseTransaction deletes a ledger entry and undoes its effect on the
// stock counter, under the same lock. Reversing an inbound entry can itself
// be rejected when the stock it brought in has already been consumed.
func (s *Service) ReverseTransaction(ctx context.Context, id int64) error {
	actor := shared.ActorFromContext(ctx)
	if err := actor.Require(shared.CapMaterialsEdit); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stx, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		stock, err := tx.GetStockForUpdate(ctx, stx.MaterialID)
		if err != nil {
			return err
		}
		newStock := stock + stx.Quantity
		if stx.Direction == DirectionIn {
			newStock = stock - stx.Quantity
		}
		if newStock < 0 {
			return ErrNegativeStock
		}
		if err := tx.SetStock(ctx, stx.MaterialID, newStock); err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "materials:transaction:reverse", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "material",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
