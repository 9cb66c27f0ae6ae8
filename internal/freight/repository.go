package freight

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/platform/db"
)

// Repository persists packing lists and their children in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const listColumns = `id, code, shipped_at, arrived_at, freight_cost, weight, weight_ratio, wk_paid_at, note, created_at, updated_at`

func scanList(row pgx.Row) (PackingList, error) {
	var (
		pl      PackingList
		cost    pgtype.Numeric
		weight  pgtype.Numeric
		ratio   pgtype.Numeric
		arrived pgtype.Timestamptz
		paid    pgtype.Timestamptz
	)
	err := row.Scan(&pl.ID, &pl.Code, &pl.ShippedAt, &arrived, &cost, &weight, &ratio, &paid, &pl.Note, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PackingList{}, ErrListNotFound
		}
		return PackingList{}, fmt.Errorf("scan packing list: %w", err)
	}
	pl.FreightCost = numericToDecimal(cost)
	pl.Weight = numericToDecimal(weight)
	if ratio.Valid {
		r := numericToDecimal(ratio)
		pl.WeightRatio = &r
	}
	if arrived.Valid {
		pl.ArrivedAt = &arrived.Time
	}
	if paid.Valid {
		pl.WKPaidAt = &paid.Time
	}
	return pl, nil
}

func (r *Repository) GetList(ctx context.Context, id int64) (PackingList, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listColumns+` FROM packing_lists WHERE id = $1`, id)
	return scanList(row)
}

// ListLists returns a filtered page of packing lists plus the unpaged total.
func (r *Repository) ListLists(ctx context.Context, limit, offset int, filter ListFilter) ([]PackingList, int, error) {
	where := ``
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		if where == "" {
			where = ` WHERE `
		} else {
			where += ` AND `
		}
		where += clause + `$` + strconv.Itoa(len(args))
	}
	if filter.Code != "" {
		add(`code = `, filter.Code)
	}
	if filter.ShippedFrom != nil {
		add(`shipped_at >= `, *filter.ShippedFrom)
	}
	if filter.ShippedTo != nil {
		add(`shipped_at <= `, *filter.ShippedTo)
	}
	if filter.Unarrived {
		if where == "" {
			where = ` WHERE arrived_at IS NULL`
		} else {
			where += ` AND arrived_at IS NULL`
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM packing_lists`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count packing lists: %w", err)
	}

	args = append(args, limit, offset)
	query := `SELECT ` + listColumns + ` FROM packing_lists` + where +
		` ORDER BY shipped_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list packing lists: %w", err)
	}
	defer rows.Close()

	var lists []PackingList
	for rows.Next() {
		pl, err := scanList(rows)
		if err != nil {
			return nil, 0, err
		}
		lists = append(lists, pl)
	}
	return lists, total, rows.Err()
}

func (r *Repository) ListItems(ctx context.Context, listID int64) ([]PackingListItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, packing_list_id, order_id, quantity, pack_unit, note, created_at
		 FROM packing_list_items WHERE packing_list_id = $1 ORDER BY id`, listID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]PackingListItem, error) {
	var items []PackingListItem
	for rows.Next() {
		var item PackingListItem
		if err := rows.Scan(&item.ID, &item.PackingListID, &item.OrderID, &item.Quantity, &item.PackUnit, &item.Note, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) GetItem(ctx context.Context, id int64) (PackingListItem, error) {
	var item PackingListItem
	err := r.pool.QueryRow(ctx,
		`SELECT id, packing_list_id, order_id, quantity, pack_unit, note, created_at
		 FROM packing_list_items WHERE id = $1`, id).
		Scan(&item.ID, &item.PackingListID, &item.OrderID, &item.Quantity, &item.PackUnit, &item.Note, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PackingListItem{}, ErrItemNotFound
		}
		return PackingListItem{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (r *Repository) ListArrivals(ctx context.Context, itemID int64) ([]KoreaArrival, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, item_id, quantity, arrived_at, created_at
		 FROM korea_arrivals WHERE item_id = $1 ORDER BY arrived_at, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list arrivals: %w", err)
	}
	defer rows.Close()

	var arrivals []KoreaArrival
	for rows.Next() {
		var a KoreaArrival
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Quantity, &a.ArrivedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan arrival: %w", err)
		}
		arrivals = append(arrivals, a)
	}
	return arrivals, rows.Err()
}

func (r *Repository) GetArrival(ctx context.Context, id int64) (KoreaArrival, error) {
	var a KoreaArrival
	err := r.pool.QueryRow(ctx,
		`SELECT id, item_id, quantity, arrived_at, created_at FROM korea_arrivals WHERE id = $1`, id).
		Scan(&a.ID, &a.ItemID, &a.Quantity, &a.ArrivedAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return KoreaArrival{}, ErrArrivalNotFound
		}
		return KoreaArrival{}, fmt.Errorf("get arrival: %w", err)
	}
	return a, nil
}

// OrderShares gathers, per packing list that carries the order, the list's
// freight cost, its full item quantity, and the order's own quantity on it.
func (r *Repository) OrderShares(ctx context.Context, orderID int64) ([]ListShare, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT pl.id, pl.freight_cost,
		        (SELECT COALESCE(SUM(quantity), 0) FROM packing_list_items WHERE packing_list_id = pl.id),
		        COALESCE(SUM(pli.quantity), 0)
		 FROM packing_lists pl
		 JOIN packing_list_items pli ON pli.packing_list_id = pl.id
		 WHERE pli.order_id = $1
		 GROUP BY pl.id, pl.freight_cost
		 ORDER BY pl.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order shares: %w", err)
	}
	defer rows.Close()

	var shares []ListShare
	for rows.Next() {
		var (
			s    ListShare
			cost pgtype.Numeric
		)
		if err := rows.Scan(&s.ListID, &cost, &s.TotalQuantity, &s.OrderQuantity); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		s.FreightCost = numericToDecimal(cost)
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

// OrderIDsForList returns the distinct purchase orders referenced by a list's
// items. Used to fan out recomputation after list level changes.
func (r *Repository) OrderIDsForList(ctx context.Context, listID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT order_id FROM packing_list_items
		 WHERE packing_list_id = $1 AND order_id IS NOT NULL`, listID)
	if err != nil {
		return nil, fmt.Errorf("order ids for list: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// OrderPackState returns how much the order's factory has shipped and how
// much of that is already on packing lists.
func (r *Repository) OrderPackState(ctx context.Context, orderID int64) (factoryShipped, packed int64, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
		    (SELECT COALESCE(SUM(quantity), 0) FROM factory_shipments WHERE order_id = $1),
		    (SELECT COALESCE(SUM(quantity), 0) FROM packing_list_items WHERE order_id = $1)`,
		orderID).Scan(&factoryShipped, &packed)
	if err != nil {
		return 0, 0, fmt.Errorf("order pack state: %w", err)
	}
	return factoryShipped, packed, nil
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

func (t *txRepo) InsertList(ctx context.Context, pl PackingList) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO packing_lists (code, shipped_at, arrived_at, freight_cost, weight, weight_ratio, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		pl.Code, pl.ShippedAt, pl.ArrivedAt, pl.FreightCost.String(), pl.Weight.String(), decimalPtr(pl.WeightRatio), pl.Note).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert packing list: %w", err)
	}
	return id, nil
}

func (t *txRepo) UpdateList(ctx context.Context, pl PackingList) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE packing_lists
		 SET code = $2, shipped_at = $3, arrived_at = $4, freight_cost = $5, weight = $6,
		     weight_ratio = $7, note = $8, updated_at = now()
		 WHERE id = $1`,
		pl.ID, pl.Code, pl.ShippedAt, pl.ArrivedAt, pl.FreightCost.String(), pl.Weight.String(), decimalPtr(pl.WeightRatio), pl.Note)
	if err != nil {
		return fmt.Errorf("update packing list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListNotFound
	}
	return nil
}

func (t *txRepo) DeleteList(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM packing_lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete packing list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListNotFound
	}
	return nil
}

func (t *txRepo) GetListForUpdate(ctx context.Context, id int64) (PackingList, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+listColumns+` FROM packing_lists WHERE id = $1 FOR UPDATE`, id)
	return scanList(row)
}

// OrderExistsForUpdate locks the referenced purchase order row so an item
// insert cannot race a concurrent order delete.
func (t *txRepo) OrderExistsForUpdate(ctx context.Context, orderID int64) (bool, error) {
	var one int
	err := t.tx.QueryRow(ctx, `SELECT 1 FROM purchase_orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock purchase order: %w", err)
	}
	return true, nil
}

func (t *txRepo) InsertItem(ctx context.Context, item PackingListItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO packing_list_items (packing_list_id, order_id, quantity, pack_unit, note)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		item.PackingListID, item.OrderID, item.Quantity, item.PackUnit, item.Note).
		Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}
	return id, nil
}

func (t *txRepo) UpdateItem(ctx context.Context, item PackingListItem) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE packing_list_items SET order_id = $2, quantity = $3, pack_unit = $4, note = $5 WHERE id = $1`,
		item.ID, item.OrderID, item.Quantity, item.PackUnit, item.Note)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (t *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM packing_list_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (t *txRepo) InsertArrival(ctx context.Context, a KoreaArrival) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO korea_arrivals (item_id, quantity, arrived_at) VALUES ($1, $2, $3) RETURNING id`,
		a.ItemID, a.Quantity, a.ArrivedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert arrival: %w", err)
	}
	return id, nil
}

func (t *txRepo) DeleteArrival(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM korea_arrivals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete arrival: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrArrivalNotFound
	}
	return nil
}

func decimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
