package orders

import (
	"testing"
	"time"

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

func TestBreakdownSeparateCommission(t *testing.T) {
	po := PurchaseOrder{
		Quantity:       100,
		UnitPrice:      dec("10"),
		BackMargin:     dec("2"),
		CommissionRate: dec("5"),
		OrderedAt:      DefaultCommissionCutoff.AddDate(0, 1, 0),
	}
	out := Calculator{}.Breakdown(po, nil, decimal.Zero)

	require.True(t, out.OrderUnitPrice.Equal(dec("12")), out.OrderUnitPrice.String())
	require.True(t, out.BaseCost.Equal(dec("1200")), out.BaseCost.String())
	require.True(t, out.Commission.Equal(dec("60")), out.Commission.String())
	require.True(t, out.FinalPaymentAmount.Equal(dec("1260")), out.FinalPaymentAmount.String())
	require.Equal(t, "separate", out.Rule)
	require.NotNil(t, out.ExpectedFinalUnitPrice)
	require.True(t, out.ExpectedFinalUnitPrice.Equal(dec("12.6")), out.ExpectedFinalUnitPrice.String())
}

func TestBreakdownFoldedCommission(t *testing.T) {
	po := PurchaseOrder{
		Quantity:       100,
		UnitPrice:      dec("10"),
		BackMargin:     dec("2"),
		CommissionRate: dec("5"),
		OrderedAt:      DefaultCommissionCutoff.AddDate(0, -1, 0),
	}
	out := Calculator{}.Breakdown(po, nil, decimal.Zero)

	// Legacy orders gross the base up by the rate; no separate commission line.
	require.True(t, out.BaseCost.Equal(dec("1260")), out.BaseCost.String())
	require.True(t, out.Commission.IsZero())
	require.True(t, out.FinalPaymentAmount.Equal(dec("1260")), out.FinalPaymentAmount.String())
	require.Equal(t, "folded", out.Rule)
}

func TestBreakdownCostItemEligibility(t *testing.T) {
	po := PurchaseOrder{
		Quantity:       10,
		UnitPrice:      dec("100"),
		CommissionRate: dec("10"),
		OrderedAt:      DefaultCommissionCutoff,
	}
	items := []CostItem{
		{Kind: CostKindOption, UnitPrice: dec("20"), Quantity: 10},                  // 200, eligible
		{Kind: CostKindLabor, UnitPrice: dec("5"), Quantity: 10},                    // 50, eligible
		{Kind: CostKindOption, UnitPrice: dec("30"), Quantity: 10, AdminOnly: true}, // 300, exempt
	}
	out := Calculator{}.Breakdown(po, items, decimal.Zero)

	// Commission base excludes the admin-only item; the cash total includes it.
	require.True(t, out.Commission.Equal(dec("125")), out.Commission.String())
	require.True(t, out.OptionCost.Equal(dec("500")), out.OptionCost.String())
	require.True(t, out.LaborCost.Equal(dec("50")), out.LaborCost.String())
	require.True(t, out.FinalPaymentAmount.Equal(dec("1675")), out.FinalPaymentAmount.String())
}

func TestBreakdownIncludesFreightFields(t *testing.T) {
	po := PurchaseOrder{
		Quantity:         10,
		UnitPrice:        dec("10"),
		CommissionRate:   dec("0"),
		DirectFreight:    dec("40"),
		WarehouseFreight: dec("60"),
		OrderedAt:        DefaultCommissionCutoff,
	}
	out := Calculator{}.Breakdown(po, nil, dec("300"))

	require.True(t, out.FinalPaymentAmount.Equal(dec("200")), out.FinalPaymentAmount.String())
	// Unit price carries the prorated freight share on top of the cash total.
	require.True(t, out.ExpectedFinalUnitPrice.Equal(dec("50")), out.ExpectedFinalUnitPrice.String())
}

func TestBreakdownZeroQuantityLeavesUnitPriceUnset(t *testing.T) {
	po := PurchaseOrder{UnitPrice: dec("10"), OrderedAt: DefaultCommissionCutoff}
	out := Calculator{}.Breakdown(po, nil, decimal.Zero)
	require.Nil(t, out.ExpectedFinalUnitPrice)
}

func TestBreakdownIdempotent(t *testing.T) {
	po := PurchaseOrder{
		Quantity:       33,
		UnitPrice:      dec("7.77"),
		BackMargin:     dec("0.23"),
		CommissionRate: dec("3.5"),
		OrderedAt:      DefaultCommissionCutoff.AddDate(1, 0, 0),
	}
	items := []CostItem{{Kind: CostKindLabor, UnitPrice: dec("1.5"), Quantity: 33}}
	first := Calculator{}.Breakdown(po, items, dec("12.34"))
	second := Calculator{}.Breakdown(po, items, dec("12.34"))
	require.True(t, first.FinalPaymentAmount.Equal(second.FinalPaymentAmount))
	require.True(t, first.ExpectedFinalUnitPrice.Equal(*second.ExpectedFinalUnitPrice))
}

func TestCalculatorCustomCutoff(t *testing.T) {
	cutoff := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	calc := NewCalculator(cutoff)

	before := calc.Breakdown(PurchaseOrder{Quantity: 1, UnitPrice: dec("100"), CommissionRate: dec("10"),
		OrderedAt: cutoff.AddDate(0, 0, -1)}, nil, decimal.Zero)
	after := calc.Breakdown(PurchaseOrder{Quantity: 1, UnitPrice: dec("100"), CommissionRate: dec("10"),
		OrderedAt: cutoff}, nil, decimal.Zero)

	require.Equal(t, "folded", before.Rule)
	require.Equal(t, "separate", after.Rule)
}
