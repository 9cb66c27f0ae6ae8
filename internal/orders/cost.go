package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCommissionCutoff is the order date on which the commission policy
// changed: orders placed on or after it keep commission separate from the
// base cost and include eligible cost items in the commission base; older
// orders fold commission into the base cost.
var DefaultCommissionCutoff = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

var oneHundred = decimal.NewFromInt(100)

// CostBreakdown is the full landed-cost result for one order.
type CostBreakdown struct {
	OrderUnitPrice decimal.Decimal `json:"order_unit_price"`
	BaseCost       decimal.Decimal `json:"base_cost"`
	Commission     decimal.Decimal `json:"commission"`
	OptionCost     decimal.Decimal `json:"option_cost"`
	LaborCost      decimal.Decimal `json:"labor_cost"`

	// FinalPaymentAmount is the cash total payable to the factory side:
	// base cost, commission where separate, both freight fields and every
	// cost item regardless of commission eligibility.
	FinalPaymentAmount decimal.Decimal `json:"final_payment_amount"`

	ProratedFreight decimal.Decimal `json:"prorated_freight"`

	// ExpectedFinalUnitPrice is nil when the order quantity is zero; an
	// order may briefly exist without a quantity during creation and that
	// must not surface as an error.
	ExpectedFinalUnitPrice *decimal.Decimal `json:"expected_final_unit_price,omitempty"`

	Rule string `json:"rule"`
}

// commissionRule is one historical commission policy. Rules are selected by
// order date so a future policy change is a third implementation, not a new
// branch inside an existing one.
type commissionRule interface {
	name() string
	apply(po PurchaseOrder, eligible costTotals) (baseCost, commission decimal.Decimal)
}

// separateCommissionRule applies to orders on/after the cutoff: commission is
// computed over the goods value plus commission-eligible cost items and kept
// as its own line.
type separateCommissionRule struct{}

func (separateCommissionRule) name() string { return "separate" }

func (separateCommissionRule) apply(po PurchaseOrder, eligible costTotals) (decimal.Decimal, decimal.Decimal) {
	goods := po.OrderUnitPrice().Mul(decimal.NewFromInt(po.Quantity))
	commissionBase := goods.Add(eligible.option).Add(eligible.labor)
	commission := commissionBase.Mul(po.CommissionRate).Div(oneHundred)
	return goods, commission
}

// foldedCommissionRule applies to orders before the cutoff: the base cost is
// grossed up by the commission rate and no separate commission line exists.
type foldedCommissionRule struct{}

func (foldedCommissionRule) name() string { return "folded" }

func (foldedCommissionRule) apply(po PurchaseOrder, _ costTotals) (decimal.Decimal, decimal.Decimal) {
	goods := po.OrderUnitPrice().Mul(decimal.NewFromInt(po.Quantity))
	grossed := goods.Mul(decimal.NewFromInt(1).Add(po.CommissionRate.Div(oneHundred)))
	return grossed, decimal.Zero
}

type costTotals struct {
	option decimal.Decimal
	labor  decimal.Decimal
}

func splitCostItems(items []CostItem) (eligible, all costTotals) {
	eligible = costTotals{option: decimal.Zero, labor: decimal.Zero}
	all = costTotals{option: decimal.Zero, labor: decimal.Zero}
	for _, item := range items {
		total := item.Total()
		switch item.Kind {
		case CostKindLabor:
			all.labor = all.labor.Add(total)
			if !item.AdminOnly {
				eligible.labor = eligible.labor.Add(total)
			}
		default:
			all.option = all.option.Add(total)
			if !item.AdminOnly {
				eligible.option = eligible.option.Add(total)
			}
		}
	}
	return eligible, all
}

// Calculator computes landed costs. The zero value uses the default cutoff.
type Calculator struct {
	cutoff time.Time
}

// NewCalculator builds a Calculator with an explicit cutoff date.
func NewCalculator(cutoff time.Time) Calculator {
	return Calculator{cutoff: cutoff}
}

func (c Calculator) ruleFor(orderedAt time.Time) commissionRule {
	cutoff := c.cutoff
	if cutoff.IsZero() {
		cutoff = DefaultCommissionCutoff
	}
	if orderedAt.Before(cutoff) {
		return foldedCommissionRule{}
	}
	return separateCommissionRule{}
}

// Breakdown computes the full cost result for an order given its cost items
// and the freight already prorated onto it. The computation is a pure
// function of its inputs: recomputing with unchanged inputs yields an
// identical result.
func (c Calculator) Breakdown(po PurchaseOrder, items []CostItem, proratedFreight decimal.Decimal) CostBreakdown {
	rule := c.ruleFor(po.OrderedAt)
	eligible, all := splitCostItems(items)
	baseCost, commission := rule.apply(po, eligible)

	final := baseCost.
		Add(commission).
		Add(po.DirectFreight).
		Add(po.WarehouseFreight).
		Add(all.option).
		Add(all.labor)

	out := CostBreakdown{
		OrderUnitPrice:     po.OrderUnitPrice(),
		BaseCost:           baseCost,
		Commission:         commission,
		OptionCost:         all.option,
		LaborCost:          all.labor,
		FinalPaymentAmount: final,
		ProratedFreight:    proratedFreight,
		Rule:               rule.name(),
	}
	if po.Quantity > 0 {
		unit := final.Add(proratedFreight).DivRound(decimal.NewFromInt(po.Quantity), 4)
		out.ExpectedFinalUnitPrice = &unit
	}
	return out
}
