package freight

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAllocatedFreightAcrossLists(t *testing.T) {
	// Two lists, each 1000 freight over 500 units, carrying 100 and 50 units
	// of the same order.
	shares := []ListShare{
		{ListID: 1, FreightCost: dec("1000"), TotalQuantity: 500, OrderQuantity: 100},
		{ListID: 2, FreightCost: dec("1000"), TotalQuantity: 500, OrderQuantity: 50},
	}
	require.True(t, AllocatedFreight(shares).Equal(dec("300")))
}

func TestAllocatedFreightEmptyAndDegenerate(t *testing.T) {
	require.True(t, AllocatedFreight(nil).IsZero())

	// A list with zero total quantity allocates nothing rather than dividing
	// by zero.
	shares := []ListShare{{FreightCost: dec("1000"), TotalQuantity: 0, OrderQuantity: 0}}
	require.True(t, AllocatedFreight(shares).IsZero())
}

func TestUnitShippingCostUsesOrderedQuantity(t *testing.T) {
	// Allocation over the ordered quantity, not the shipped one, so a
	// partially shipped order still carries a forward-looking estimate.
	require.True(t, UnitShippingCost(dec("300"), 150).Equal(dec("2")))
	require.True(t, UnitShippingCost(dec("300"), 0).IsZero())
	require.True(t, UnitShippingCost(dec("100"), 3).Equal(dec("33.3333")))
}

func TestProrateItemsConservesFreightCost(t *testing.T) {
	items := []PackingListItem{
		{ID: 1, Quantity: 100},
		{ID: 2, Quantity: 250},
		{ID: 3, Quantity: 150},
	}
	freight := dec("1234.56")
	allocations := ProrateItems(freight, items)
	require.Len(t, allocations, 3)

	sum := decimal.Zero
	for _, a := range allocations {
		sum = sum.Add(a)
	}
	require.True(t, freight.Sub(sum).Abs().LessThanOrEqual(dec("0.01")),
		"allocated %s, want %s", sum, freight)
}

func TestProrateItemsUnevenSplit(t *testing.T) {
	items := []PackingListItem{
		{ID: 1, Quantity: 1},
		{ID: 2, Quantity: 2},
	}
	allocations := ProrateItems(dec("100"), items)

	sum := allocations[1].Add(allocations[2])
	require.True(t, dec("100").Sub(sum).Abs().LessThanOrEqual(dec("0.01")))
	require.True(t, allocations[2].Equal(allocations[1].Mul(dec("2"))))
}

func TestProrateItemsEmpty(t *testing.T) {
	require.Empty(t, ProrateItems(dec("100"), nil))
	require.Empty(t, ProrateItems(dec("100"), []PackingListItem{{ID: 1, Quantity: 0}}))
}

func TestChargeableWeight(t *testing.T) {
	pl := PackingList{Weight: dec("120")}
	require.True(t, pl.ChargeableWeight().Equal(dec("120")))

	ratio := dec("1.15")
	pl.WeightRatio = &ratio
	require.True(t, pl.ChargeableWeight().Equal(dec("138")))
}
