package summary

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// OrderAggregates are fleet-wide purchase order totals.
type OrderAggregates struct {
	OrderCount    int64           `json:"order_count"`
	TotalOrdered  int64           `json:"total_ordered"`
	AdvanceTotal  decimal.Decimal `json:"advance_total"`
	BalanceTotal  decimal.Decimal `json:"balance_total"`
	UnpaidAdvance decimal.Decimal `json:"unpaid_advance"`
	UnpaidBalance decimal.Decimal `json:"unpaid_balance"`
}

// FreightAggregates are totals over all packing lists.
type FreightAggregates struct {
	ListCount      int64           `json:"list_count"`
	InTransitCount int64           `json:"in_transit_count"`
	FreightTotal   decimal.Decimal `json:"freight_total"`
	UnpaidFreight  decimal.Decimal `json:"unpaid_freight"`
}

// MaterialValue is one material's stock valued at its unit price.
type MaterialValue struct {
	MaterialID   int64           `json:"material_id"`
	Name         string          `json:"name"`
	CurrentStock int64           `json:"current_stock"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	StockValue   decimal.Decimal `json:"stock_value"`
}

// OrderSummary is the cached order dashboard payload.
type OrderSummary struct {
	Aggregates     OrderAggregates   `json:"aggregates"`
	StatusCounts   map[string]int64  `json:"status_counts"`
	Freight        FreightAggregates `json:"freight"`
	UnpaidTotal    decimal.Decimal   `json:"unpaid_total"`
	UnpaidDisplay  string            `json:"unpaid_display"`
	FreightDisplay string            `json:"freight_display"`
}

// MaterialSummary is the cached material valuation payload.
type MaterialSummary struct {
	Materials    []MaterialValue `json:"materials"`
	TotalValue   decimal.Decimal `json:"total_value"`
	TotalDisplay string          `json:"total_display"`
}

// RepositoryPort is the aggregate-query contract the service depends on.
type RepositoryPort interface {
	OrderAggregates(ctx context.Context) (OrderAggregates, error)
	StatusCounts(ctx context.Context) (map[string]int64, error)
	FreightAggregates(ctx context.Context) (FreightAggregates, error)
	MaterialAggregates(ctx context.Context) ([]MaterialValue, decimal.Decimal, error)
}

const (
	keyOrders    = "summary:orders"
	keyMaterials = "summary:materials"
)

// Service serves dashboard summaries from cache, recomputing on miss.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	logger  *slog.Logger
	printer *message.Printer
}

func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}
}

// Orders returns the order dashboard summary.
func (s *Service) Orders(ctx context.Context) (OrderSummary, error) {
	var out OrderSummary
	err := s.cache.FetchJSON(ctx, keyOrders, &out, func(ctx context.Context) (any, error) {
		return s.buildOrderSummary(ctx)
	})
	return out, err
}

// Materials returns the stock valuation summary.
func (s *Service) Materials(ctx context.Context) (MaterialSummary, error) {
	var out MaterialSummary
	err := s.cache.FetchJSON(ctx, keyMaterials, &out, func(ctx context.Context) (any, error) {
		return s.buildMaterialSummary(ctx)
	})
	return out, err
}

// Refresh drops both cached summaries so the next read recomputes.
func (s *Service) Refresh(ctx context.Context) error {
	return s.cache.Invalidate(ctx, keyOrders, keyMaterials)
}

func (s *Service) buildOrderSummary(ctx context.Context) (OrderSummary, error) {
	agg, err := s.repo.OrderAggregates(ctx)
	if err != nil {
		return OrderSummary{}, err
	}
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return OrderSummary{}, err
	}
	freight, err := s.repo.FreightAggregates(ctx)
	if err != nil {
		return OrderSummary{}, err
	}
	unpaid := agg.UnpaidAdvance.Add(agg.UnpaidBalance).Add(freight.UnpaidFreight)
	return OrderSummary{
		Aggregates:     agg,
		StatusCounts:   counts,
		Freight:        freight,
		UnpaidTotal:    unpaid,
		UnpaidDisplay:  s.formatAmount(unpaid),
		FreightDisplay: s.formatAmount(freight.FreightTotal),
	}, nil
}

func (s *Service) buildMaterialSummary(ctx context.Context) (MaterialSummary, error) {
	values, total, err := s.repo.MaterialAggregates(ctx)
	if err != nil {
		return MaterialSummary{}, err
	}
	return MaterialSummary{
		Materials:    values,
		TotalValue:   total,
		TotalDisplay: s.formatAmount(total),
	}, nil
}

// formatAmount renders a decimal with thousands separators for display
// columns, keeping two fraction digits.
func (s *Service) formatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return s.printer.Sprintf("%.2f", f)
}
