package summary

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	orderCalls    int
	statusCalls   int
	freightCalls  int
	materialCalls int
}

func (m *mockRepo) OrderAggregates(ctx context.Context) (OrderAggregates, error) {
	m.orderCalls++
	return OrderAggregates{
		OrderCount:    4,
		TotalOrdered:  900,
		AdvanceTotal:  decimal.NewFromInt(5000),
		BalanceTotal:  decimal.NewFromInt(7000),
		UnpaidAdvance: decimal.NewFromInt(1000),
		UnpaidBalance: decimal.NewFromInt(2500),
	}, nil
}

func (m *mockRepo) StatusCounts(ctx context.Context) (map[string]int64, error) {
	m.statusCalls++
	return map[string]int64{"ORDERED": 1, "SHIPPING": 2, "ARRIVED": 1}, nil
}

func (m *mockRepo) FreightAggregates(ctx context.Context) (FreightAggregates, error) {
	m.freightCalls++
	return FreightAggregates{
		ListCount:      3,
		InTransitCount: 2,
		FreightTotal:   decimal.NewFromInt(1234567),
		UnpaidFreight:  decimal.NewFromInt(500),
	}, nil
}

func (m *mockRepo) MaterialAggregates(ctx context.Context) ([]MaterialValue, decimal.Decimal, error) {
	m.materialCalls++
	return []MaterialValue{
		{MaterialID: 1, Name: "boxes", CurrentStock: 10, UnitPrice: decimal.NewFromInt(3), StockValue: decimal.NewFromInt(30)},
	}, decimal.NewFromInt(30), nil
}

func newTestService(t *testing.T) (*Service, *mockRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &mockRepo{}
	return NewService(repo, NewCache(client, time.Minute), nil), repo
}

func TestOrdersSummaryAggregatesAndFormats(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.Orders(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, out.Aggregates.OrderCount)
	require.EqualValues(t, 2, out.StatusCounts["SHIPPING"])
	// unpaid advance + unpaid balance + unpaid freight
	require.True(t, out.UnpaidTotal.Equal(decimal.NewFromInt(4000)))
	require.Equal(t, "4,000.00", out.UnpaidDisplay)
	require.Equal(t, "1,234,567.00", out.FreightDisplay)
}

func TestOrdersSummaryIsCached(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Orders(ctx)
	require.NoError(t, err)
	_, err = svc.Orders(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.orderCalls, "second read must come from cache")

	require.NoError(t, svc.Refresh(ctx))
	_, err = svc.Orders(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, repo.orderCalls)
}

func TestMaterialsSummary(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.Materials(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Materials, 1)
	require.True(t, out.TotalValue.Equal(decimal.NewFromInt(30)))
	require.Equal(t, "30.00", out.TotalDisplay)
}

func TestSummaryWorksWithoutRedis(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, NewCache(nil, time.Minute), nil)

	out, err := svc.Orders(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, out.Aggregates.OrderCount)

	// Without a cache backend every read recomputes.
	_, err = svc.Orders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.orderCalls)
}
