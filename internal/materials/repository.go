package materials

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/platform/db"
)

// Repository persists materials and their stock ledger in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const materialColumns = `id, name, unit, unit_price, current_stock, image_url, note, created_at, updated_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var (
		m     Material
		price pgtype.Numeric
	)
	err := row.Scan(&m.ID, &m.Name, &m.Unit, &price, &m.CurrentStock, &m.ImageURL, &m.Note, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, ErrMaterialNotFound
		}
		return Material{}, fmt.Errorf("scan material: %w", err)
	}
	m.UnitPrice = numericToDecimal(price)
	return m, nil
}

func (r *Repository) GetMaterial(ctx context.Context, id int64) (Material, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id)
	return scanMaterial(row)
}

func (r *Repository) ListMaterials(ctx context.Context, search string) ([]Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials`
	args := []any{}
	if search != "" {
		query += ` WHERE name ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY name, id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) ListTransactions(ctx context.Context, materialID int64) ([]StockTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, material_id, direction, quantity, occurred_at, note, related_order_id, created_at
		 FROM stock_transactions WHERE material_id = $1 ORDER BY occurred_at DESC, id DESC`, materialID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []StockTransaction
	for rows.Next() {
		var tx StockTransaction
		if err := rows.Scan(&tx.ID, &tx.MaterialID, &tx.Direction, &tx.Quantity, &tx.OccurredAt, &tx.Note, &tx.RelatedOrderID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (StockTransaction, error) {
	var tx StockTransaction
	err := r.pool.QueryRow(ctx,
		`SELECT id, material_id, direction, quantity, occurred_at, note, related_order_id, created_at
		 FROM stock_transactions WHERE id = $1`, id).
		Scan(&tx.ID, &tx.MaterialID, &tx.Direction, &tx.Quantity, &tx.OccurredAt, &tx.Note, &tx.RelatedOrderID, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockTransaction{}, ErrTransactionNotFound
		}
		return StockTransaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertMaterial(ctx context.Context, m Material) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO materials (name, unit, unit_price, current_stock, image_url, note)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		m.Name, m.Unit, m.UnitPrice.String(), m.CurrentStock, m.ImageURL, m.Note).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert material: %w", err)
	}
	return id, nil
}

func (t *txRepo) UpdateMaterial(ctx context.Context, m Material) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE materials SET name = $2, unit = $3, unit_price = $4, image_url = $5, note = $6, updated_at = now()
		 WHERE id = $1`,
		m.ID, m.Name, m.Unit, m.UnitPrice.String(), m.ImageURL, m.Note)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (t *txRepo) DeleteMaterial(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

// GetStockForUpdate takes the row lock the check-then-write sequence relies
// on. Two concurrent outbound movements serialize here.
func (t *txRepo) GetStockForUpdate(ctx context.Context, materialID int64) (int64, error) {
	var stock int64
	err := t.tx.QueryRow(ctx, `SELECT current_stock FROM materials WHERE id = $1 FOR UPDATE`, materialID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrMaterialNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lock stock: %w", err)
	}
	return stock, nil
}

func (t *txRepo) SetStock(ctx context.Context, materialID, stock int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE materials SET current_stock = $2, updated_at = now() WHERE id = $1`, materialID, stock)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}

func (t *txRepo) InsertTransaction(ctx context.Context, stx StockTransaction) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO stock_transactions (material_id, direction, quantity, occurred_at, note, related_order_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		stx.MaterialID, stx.Direction, stx.Quantity, stx.OccurredAt, stx.Note, stx.RelatedOrderID).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

func (t *txRepo) GetTransactionForUpdate(ctx context.Context, id int64) (StockTransaction, error) {
	var stx StockTransaction
	err := t.tx.QueryRow(ctx,
		`SELECT id, material_id, direction, quantity, occurred_at, note, related_order_id, created_at
		 FROM stock_transactions WHERE id = $1 FOR UPDATE`, id).
		Scan(&stx.ID, &stx.MaterialID, &stx.Direction, &stx.Quantity, &stx.OccurredAt, &stx.Note, &stx.RelatedOrderID, &stx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockTransaction{}, ErrTransactionNotFound
		}
		return StockTransaction{}, fmt.Errorf("lock transaction: %w", err)
	}
	return stx, nil
}

func (t *txRepo) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM stock_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
