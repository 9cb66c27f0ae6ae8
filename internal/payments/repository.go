package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/platform/db"
	"github.com/harborline-erp/harborline/internal/shared"
)

// Repository persists payment requests in Postgres. A partial unique index on
// (source_type, source_ref, payment_type) WHERE status = 'requested' enforces
// the at-most-one-open-request invariant even under concurrent creates.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, number, source_type, source_ref, payment_type, amount, status, requested_at, note, completed_at, completed_by, created_at`

func scanRequest(row pgx.Row) (PaymentRequest, error) {
	var (
		pr          PaymentRequest
		amount      pgtype.Numeric
		completedAt pgtype.Timestamptz
		completedBy pgtype.Text
	)
	err := row.Scan(&pr.ID, &pr.Number, &pr.SourceType, &pr.SourceRef, &pr.PaymentType,
		&amount, &pr.Status, &pr.RequestedAt, &pr.Note, &completedAt, &completedBy, &pr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRequest{}, ErrRequestNotFound
		}
		return PaymentRequest{}, fmt.Errorf("scan payment request: %w", err)
	}
	pr.Amount = numericToDecimal(amount)
	if completedAt.Valid {
		pr.CompletedAt = &completedAt.Time
	}
	if completedBy.Valid {
		pr.CompletedBy = completedBy.String
	}
	return pr, nil
}

func (r *Repository) GetRequest(ctx context.Context, id int64) (PaymentRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *Repository) ListRequests(ctx context.Context, limit, offset int, filter ListFilter) ([]PaymentRequest, int, error) {
	where := ``
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		if where == "" {
			where = ` WHERE `
		} else {
			where += ` AND `
		}
		where += column + ` = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		add(`status`, filter.Status)
	}
	if filter.SourceType != "" {
		add(`source_type`, filter.SourceType)
	}
	if filter.PaymentType != "" {
		add(`payment_type`, filter.PaymentType)
	}
	if filter.SourceRef != "" {
		add(`source_ref`, filter.SourceRef)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payment requests: %w", err)
	}

	args = append(args, limit, offset)
	query := `SELECT ` + requestColumns + ` FROM payment_requests` + where +
		` ORDER BY requested_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payment requests: %w", err)
	}
	defer rows.Close()

	var requests []PaymentRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, pr)
	}
	return requests, total, rows.Err()
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

func (t *txRepo) InsertRequest(ctx context.Context, pr PaymentRequest) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO payment_requests (number, source_type, source_ref, payment_type, amount, status, requested_at, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		pr.Number, pr.SourceType, pr.SourceRef, pr.PaymentType, pr.Amount.String(), pr.Status, pr.RequestedAt, pr.Note).
		Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateOpen
		}
		return 0, fmt.Errorf("insert payment request: %w", err)
	}
	return id, nil
}

func (t *txRepo) GetRequestForUpdate(ctx context.Context, id int64) (PaymentRequest, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id = $1 FOR UPDATE`, id)
	return scanRequest(row)
}

// UpdateRequest rewrites the mutable fields. The status guard keeps completed
// requests immutable at the SQL level too.
func (t *txRepo) UpdateRequest(ctx context.Context, pr PaymentRequest) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payment_requests SET amount = $2, requested_at = $3, note = $4
		 WHERE id = $1 AND status = 'requested'`,
		pr.ID, pr.Amount.String(), pr.RequestedAt, pr.Note)
	if err != nil {
		return fmt.Errorf("update payment request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (t *txRepo) DeleteRequest(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM payment_requests WHERE id = $1 AND status = 'requested'`, id)
	if err != nil {
		return fmt.Errorf("delete payment request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (t *txRepo) CompleteRequest(ctx context.Context, id int64, at time.Time, completer string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE payment_requests SET status = 'completed', completed_at = $2, completed_by = $3
		 WHERE id = $1 AND status = 'requested'`,
		id, at, completer)
	if err != nil {
		return fmt.Errorf("complete payment request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// OrderPaymentState reads the payable amount and paid timestamp for one
// payment leg of a purchase order, locking the row.
func (t *txRepo) OrderPaymentState(ctx context.Context, orderID int64, pt PaymentType) (decimal.Decimal, *time.Time, error) {
	column := "advance"
	if pt == TypeBalance {
		column = "balance"
	}
	var (
		amount pgtype.Numeric
		paidAt pgtype.Timestamptz
	)
	err := t.tx.QueryRow(ctx,
		`SELECT `+column+`_amount, `+column+`_paid_at FROM purchase_orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&amount, &paidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil, fmt.Errorf("purchase order %d %w", orderID, shared.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("order payment state: %w", err)
	}
	var paid *time.Time
	if paidAt.Valid {
		paid = &paidAt.Time
	}
	return numericToDecimal(amount), paid, nil
}

// CodeShippingState sums the freight cost of every packing list sharing the
// code and reports whether any row is already marked paid. Rows are locked so
// completion cannot race.
func (t *txRepo) CodeShippingState(ctx context.Context, code string) (decimal.Decimal, *time.Time, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT freight_cost, wk_paid_at FROM packing_lists WHERE code = $1 FOR UPDATE`, code)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("code shipping state: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	var paid *time.Time
	found := false
	for rows.Next() {
		var (
			cost   pgtype.Numeric
			paidAt pgtype.Timestamptz
		)
		if err := rows.Scan(&cost, &paidAt); err != nil {
			return decimal.Zero, nil, fmt.Errorf("scan shipping state: %w", err)
		}
		found = true
		total = total.Add(numericToDecimal(cost))
		if paidAt.Valid && paid == nil {
			paid = &paidAt.Time
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, nil, err
	}
	if !found {
		return decimal.Zero, nil, fmt.Errorf("packing list code %q %w", code, shared.ErrNotFound)
	}
	return total, paid, nil
}

func (t *txRepo) MarkOrderPaid(ctx context.Context, orderID int64, pt PaymentType, at time.Time) error {
	column := "advance_paid_at"
	if pt == TypeBalance {
		column = "balance_paid_at"
	}
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET `+column+` = $2 WHERE id = $1`, orderID, at)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase order %d %w", orderID, shared.ErrNotFound)
	}
	return nil
}

// MarkCodePaid stamps wk_paid_at on every packing list row sharing the code.
func (t *txRepo) MarkCodePaid(ctx context.Context, code string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE packing_lists SET wk_paid_at = $2 WHERE code = $1`, code, at)
	if err != nil {
		return fmt.Errorf("mark code paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("packing list code %q %w", code, shared.ErrNotFound)
	}
	return nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
