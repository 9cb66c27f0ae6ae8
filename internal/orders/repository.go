package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harborline-erp/harborline/internal/platform/db"
	"github.com/harborline-erp/harborline/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, number, quantity, unit_price, back_margin, commission_rate,
	commission_basis, direct_freight, warehouse_freight, advance_amount, balance_amount,
	advance_paid_at, balance_paid_at, confirmed, status, ordered_at,
	expected_final_unit_price, image_url, note, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var (
		po                                         PurchaseOrder
		unitPrice, backMargin, commissionRate      pgtype.Numeric
		directFreight, warehouseFreight            pgtype.Numeric
		advanceAmount, balanceAmount, expectedUnit pgtype.Numeric
		advancePaidAt, balancePaidAt               pgtype.Timestamptz
		orderedAt, createdAt, updatedAt            pgtype.Timestamptz
	)
	err := row.Scan(&po.ID, &po.Number, &po.Quantity, &unitPrice, &backMargin, &commissionRate,
		&po.CommissionBasis, &directFreight, &warehouseFreight, &advanceAmount, &balanceAmount,
		&advancePaidAt, &balancePaidAt, &po.Confirmed, &po.Status, &orderedAt,
		&expectedUnit, &po.ImageURL, &po.Note, &createdAt, &updatedAt)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.UnitPrice = numericToDecimal(unitPrice)
	po.BackMargin = numericToDecimal(backMargin)
	po.CommissionRate = numericToDecimal(commissionRate)
	po.DirectFreight = numericToDecimal(directFreight)
	po.WarehouseFreight = numericToDecimal(warehouseFreight)
	po.AdvanceAmount = numericToDecimal(advanceAmount)
	po.BalanceAmount = numericToDecimal(balanceAmount)
	if expectedUnit.Valid {
		v := numericToDecimal(expectedUnit)
		po.ExpectedFinalUnitPrice = &v
	}
	if advancePaidAt.Valid {
		po.AdvancePaidAt = &advancePaidAt.Time
	}
	if balancePaidAt.Valid {
		po.BalancePaidAt = &balancePaidAt.Time
	}
	po.OrderedAt = orderedAt.Time
	po.CreatedAt = createdAt.Time
	po.UpdatedAt = updatedAt.Time
	return po, nil
}

// GetOrder fetches one purchase order.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id)
	po, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListOrders returns filtered, paginated purchase orders with a total count.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argNum := 1

	if filter.Status != "" {
		where += ` AND status = $` + itoa(argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.Search != "" {
		where += ` AND number ILIKE $` + itoa(argNum)
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}
	if !filter.From.IsZero() {
		where += ` AND ordered_at >= $` + itoa(argNum)
		args = append(args, filter.From)
		argNum++
	}
	if !filter.To.IsZero() {
		where += ` AND ordered_at <= $` + itoa(argNum)
		args = append(args, filter.To)
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT ` + orderColumns + ` FROM purchase_orders` + where +
		` ORDER BY ` + sortOrder(filter.SortBy, filter.SortDir) +
		` LIMIT $` + itoa(argNum) + ` OFFSET $` + itoa(argNum+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListOrderIDs returns every order id, oldest first.
func (r *Repository) ListOrderIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM purchase_orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// QuantitySums aggregates the raw child-record sums for one order.
func (r *Repository) QuantitySums(ctx context.Context, orderID int64) (QuantitySums, error) {
	const query = `
	SELECT po.quantity,
		COALESCE((SELECT SUM(fs.quantity) FROM factory_shipments fs WHERE fs.order_id = po.id), 0),
		COALESCE((SELECT SUM(pli.quantity) FROM packing_list_items pli WHERE pli.order_id = po.id), 0),
		COALESCE((SELECT SUM(ka.quantity)
			FROM korea_arrivals ka
			JOIN packing_list_items pli ON pli.id = ka.item_id
			WHERE pli.order_id = po.id), 0)
	FROM purchase_orders po WHERE po.id = $1`

	var sums QuantitySums
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&sums.Ordered, &sums.FactoryShipped, &sums.PackingShipped, &sums.Arrived)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QuantitySums{}, ErrOrderNotFound
		}
		return QuantitySums{}, err
	}
	return sums, nil
}

// ListFactoryShipments returns shipment entries for an order, oldest first.
func (r *Repository) ListFactoryShipments(ctx context.Context, orderID int64) ([]FactoryShipment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, quantity, shipped_at, tracking_no, created_at
		FROM factory_shipments WHERE order_id = $1 ORDER BY shipped_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []FactoryShipment
	for rows.Next() {
		var s FactoryShipment
		var shippedAt, createdAt pgtype.Timestamptz
		if err := rows.Scan(&s.ID, &s.OrderID, &s.Quantity, &shippedAt, &s.TrackingNo, &createdAt); err != nil {
			return nil, err
		}
		s.ShippedAt = shippedAt.Time
		s.CreatedAt = createdAt.Time
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

// GetFactoryShipment fetches one shipment entry.
func (r *Repository) GetFactoryShipment(ctx context.Context, id int64) (FactoryShipment, error) {
	var s FactoryShipment
	var shippedAt, createdAt pgtype.Timestamptz
	err := r.pool.QueryRow(ctx, `SELECT id, order_id, quantity, shipped_at, tracking_no, created_at
		FROM factory_shipments WHERE id = $1`, id).
		Scan(&s.ID, &s.OrderID, &s.Quantity, &shippedAt, &s.TrackingNo, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FactoryShipment{}, fmt.Errorf("orders: factory shipment %w", shared.ErrNotFound)
		}
		return FactoryShipment{}, err
	}
	s.ShippedAt = shippedAt.Time
	s.CreatedAt = createdAt.Time
	return s, nil
}

// ListCostItems returns all cost items for an order.
func (r *Repository) ListCostItems(ctx context.Context, orderID int64) ([]CostItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, kind, name, unit_price, quantity, admin_only, created_at
		FROM cost_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CostItem
	for rows.Next() {
		item, err := scanCostItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetCostItem fetches one cost item.
func (r *Repository) GetCostItem(ctx context.Context, id int64) (CostItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, order_id, kind, name, unit_price, quantity, admin_only, created_at
		FROM cost_items WHERE id = $1`, id)
	item, err := scanCostItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostItem{}, fmt.Errorf("orders: cost item %w", shared.ErrNotFound)
		}
		return CostItem{}, err
	}
	return item, nil
}

func scanCostItem(row pgx.Row) (CostItem, error) {
	var item CostItem
	var unitPrice pgtype.Numeric
	var createdAt pgtype.Timestamptz
	if err := row.Scan(&item.ID, &item.OrderID, &item.Kind, &item.Name, &unitPrice, &item.Quantity, &item.AdminOnly, &createdAt); err != nil {
		return CostItem{}, err
	}
	item.UnitPrice = numericToDecimal(unitPrice)
	item.CreatedAt = createdAt.Time
	return item, nil
}

func (t *txRepo) CreateOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders
		(number, quantity, unit_price, back_margin, commission_rate, commission_basis,
		 direct_freight, warehouse_freight, advance_amount, balance_amount,
		 confirmed, status, ordered_at, image_url, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		po.Number, po.Quantity, po.UnitPrice.String(), po.BackMargin.String(),
		po.CommissionRate.String(), po.CommissionBasis,
		po.DirectFreight.String(), po.WarehouseFreight.String(),
		po.AdvanceAmount.String(), po.BalanceAmount.String(),
		po.Confirmed, string(po.Status), po.OrderedAt, po.ImageURL, po.Note).
		Scan(&id)
	return id, err
}

func (t *txRepo) UpdateOrder(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET
		quantity = $2, unit_price = $3, back_margin = $4, commission_rate = $5,
		commission_basis = $6, direct_freight = $7, warehouse_freight = $8,
		advance_amount = $9, balance_amount = $10, confirmed = $11, status = $12,
		image_url = $13, note = $14, updated_at = NOW()
		WHERE id = $1`,
		po.ID, po.Quantity, po.UnitPrice.String(), po.BackMargin.String(),
		po.CommissionRate.String(), po.CommissionBasis,
		po.DirectFreight.String(), po.WarehouseFreight.String(),
		po.AdvanceAmount.String(), po.BalanceAmount.String(),
		po.Confirmed, string(po.Status), po.ImageURL, po.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
	po, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (t *txRepo) InsertFactoryShipment(ctx context.Context, s FactoryShipment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO factory_shipments (order_id, quantity, shipped_at, tracking_no)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		s.OrderID, s.Quantity, s.ShippedAt, s.TrackingNo).Scan(&id)
	return id, err
}

func (t *txRepo) UpdateFactoryShipment(ctx context.Context, s FactoryShipment) error {
	_, err := t.tx.Exec(ctx, `UPDATE factory_shipments SET quantity = $2, shipped_at = $3, tracking_no = $4
		WHERE id = $1`, s.ID, s.Quantity, s.ShippedAt, s.TrackingNo)
	return err
}

func (t *txRepo) DeleteFactoryShipment(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM factory_shipments WHERE id = $1`, id)
	return err
}

func (t *txRepo) InsertCostItem(ctx context.Context, item CostItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO cost_items (order_id, kind, name, unit_price, quantity, admin_only)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		item.OrderID, string(item.Kind), item.Name, item.UnitPrice.String(), item.Quantity, item.AdminOnly).
		Scan(&id)
	return id, err
}

func (t *txRepo) UpdateCostItem(ctx context.Context, item CostItem) error {
	_, err := t.tx.Exec(ctx, `UPDATE cost_items SET kind = $2, name = $3, unit_price = $4, quantity = $5, admin_only = $6
		WHERE id = $1`, item.ID, string(item.Kind), item.Name, item.UnitPrice.String(), item.Quantity, item.AdminOnly)
	return err
}

func (t *txRepo) DeleteCostItem(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cost_items WHERE id = $1`, id)
	return err
}

func (t *txRepo) SetExpectedFinalUnitPrice(ctx context.Context, orderID int64, price *decimal.Decimal) error {
	var value any
	if price != nil {
		value = price.String()
	}
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET expected_final_unit_price = $2, updated_at = NOW()
		WHERE id = $1`, orderID, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// sortOrder returns a safe ORDER BY clause for order listings.
func sortOrder(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "number " + dir
	case "ordered_at":
		return "ordered_at " + dir
	case "status":
		return "status " + dir
	case "quantity":
		return "quantity " + dir
	default:
		return "ordered_at DESC"
	}
}

// itoa converts int to string for dynamic query building.
func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
