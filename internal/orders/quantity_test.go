package orders

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveQuantitiesPartialFlow(t *testing.T) {
	// 80 of 100 left the factory, 50 of those were packed, 30 arrived.
	q := DeriveQuantities(QuantitySums{Ordered: 100, FactoryShipped: 80, PackingShipped: 50, Arrived: 30})
	require.EqualValues(t, 20, q.Unreceived)
	require.EqualValues(t, 30, q.Unshipped)
	require.EqualValues(t, 20, q.InTransit)
	require.EqualValues(t, 30, q.Arrived)
	require.EqualValues(t, q.Ordered, q.Unreceived+q.FactoryShipped)
}

func TestDeriveQuantitiesZeroRecords(t *testing.T) {
	q := DeriveQuantities(QuantitySums{Ordered: 100})
	require.EqualValues(t, 100, q.Unreceived)
	require.EqualValues(t, 0, q.FactoryShipped)
	require.EqualValues(t, 0, q.Unshipped)
	require.EqualValues(t, 0, q.InTransit)
	require.EqualValues(t, 0, q.Arrived)
}

func TestDeriveQuantitiesClampsOverShipment(t *testing.T) {
	// More packed than factory-shipped, more arrived than packed. Physical
	// corrections land after the fact; aggregates clamp instead of failing.
	q := DeriveQuantities(QuantitySums{Ordered: 10, FactoryShipped: 12, PackingShipped: 15, Arrived: 20})
	require.EqualValues(t, 0, q.Unreceived)
	require.EqualValues(t, 0, q.Unshipped)
	require.EqualValues(t, 0, q.InTransit)
	require.EqualValues(t, 20, q.Arrived)
}

func TestDeriveQuantitiesNeverNegative(t *testing.T) {
	cases := []QuantitySums{
		{},
		{Ordered: 1},
		{FactoryShipped: 5},
		{PackingShipped: 7},
		{Arrived: 9},
		{Ordered: 3, FactoryShipped: 9, PackingShipped: 1, Arrived: 4},
	}
	for _, sums := range cases {
		q := DeriveQuantities(sums)
		require.GreaterOrEqual(t, q.Unreceived, int64(0))
		require.GreaterOrEqual(t, q.Unshipped, int64(0))
		require.GreaterOrEqual(t, q.InTransit, int64(0))
	}
}
