package summary

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the aggregate queries behind the summary views.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OrderAggregates reads fleet-wide purchase order numbers in one round trip.
func (r *Repository) OrderAggregates(ctx context.Context) (OrderAggregates, error) {
	var (
		agg           OrderAggregates
		advanceTotal  pgtype.Numeric
		balanceTotal  pgtype.Numeric
		unpaidAdvance pgtype.Numeric
		unpaidBalance pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(quantity), 0),
		       COALESCE(SUM(advance_amount), 0),
		       COALESCE(SUM(balance_amount), 0),
		       COALESCE(SUM(advance_amount) FILTER (WHERE advance_paid_at IS NULL), 0),
		       COALESCE(SUM(balance_amount) FILTER (WHERE balance_paid_at IS NULL), 0)
		FROM purchase_orders`).
		Scan(&agg.OrderCount, &agg.TotalOrdered, &advanceTotal, &balanceTotal, &unpaidAdvance, &unpaidBalance)
	if err != nil {
		return OrderAggregates{}, fmt.Errorf("order aggregates: %w", err)
	}
	agg.AdvanceTotal = numericToDecimal(advanceTotal)
	agg.BalanceTotal = numericToDecimal(balanceTotal)
	agg.UnpaidAdvance = numericToDecimal(unpaidAdvance)
	agg.UnpaidBalance = numericToDecimal(unpaidBalance)
	return agg, nil
}

// StatusCounts groups orders by delivery status.
func (r *Repository) StatusCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM purchase_orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// FreightAggregates sums freight over all packing lists, split by payment
// state.
func (r *Repository) FreightAggregates(ctx context.Context) (FreightAggregates, error) {
	var (
		agg    FreightAggregates
		total  pgtype.Numeric
		unpaid pgtype.Numeric
	)
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE arrived_at IS NULL),
		       COALESCE(SUM(freight_cost), 0),
		       COALESCE(SUM(freight_cost) FILTER (WHERE wk_paid_at IS NULL), 0)
		FROM packing_lists`).
		Scan(&agg.ListCount, &agg.InTransitCount, &total, &unpaid)
	if err != nil {
		return FreightAggregates{}, fmt.Errorf("freight aggregates: %w", err)
	}
	agg.FreightTotal = numericToDecimal(total)
	agg.UnpaidFreight = numericToDecimal(unpaid)
	return agg, nil
}

// MaterialAggregates values current stock at unit price per material.
func (r *Repository) MaterialAggregates(ctx context.Context) ([]MaterialValue, decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, current_stock, unit_price, current_stock * unit_price
		FROM materials ORDER BY name, id`)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("material aggregates: %w", err)
	}
	defer rows.Close()

	var (
		values []MaterialValue
		total  = decimal.Zero
	)
	for rows.Next() {
		var (
			mv    MaterialValue
			price pgtype.Numeric
			value pgtype.Numeric
		)
		if err := rows.Scan(&mv.MaterialID, &mv.Name, &mv.CurrentStock, &price, &value); err != nil {
			return nil, decimal.Zero, fmt.Errorf("scan material value: %w", err)
		}
		mv.UnitPrice = numericToDecimal(price)
		mv.StockValue = numericToDecimal(value)
		total = total.Add(mv.StockValue)
		values = append(values, mv)
	}
	return values, total, rows.Err()
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
