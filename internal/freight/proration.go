package freight

import "github.com/shopspring/decimal"

// ListShare is one packing list's contribution to a purchase order: the
// list's total freight cost, the total quantity of every item on the list
// regardless of order, and the quantity belonging to the order in question.
type ListShare struct {
	ListID        int64
	FreightCost   decimal.Decimal
	TotalQuantity int64
	OrderQuantity int64
}

// UnitFreight is the list's freight cost spread evenly over every unit it
// carries. Zero when the list is empty.
func (s ListShare) UnitFreight() decimal.Decimal {
	if s.TotalQuantity <= 0 {
		return decimal.Zero
	}
	return s.FreightCost.Div(decimal.NewFromInt(s.TotalQuantity))
}

// AllocatedFreight sums, over every packing list carrying the order, the
// list's per-unit freight times the order's quantity on that list. Freight is
// billed per consolidated shipment, so the allocation is quantity-weighted
// across whatever else shipped alongside.
func AllocatedFreight(shares []ListShare) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s.UnitFreight().Mul(decimal.NewFromInt(s.OrderQuantity)))
	}
	return total
}

// UnitShippingCost divides the order's allocated freight by its ordered
// quantity, not its shipped quantity, so partially shipped orders still show
// a forward-looking per-unit estimate. Nil-safe: zero ordered yields zero.
func UnitShippingCost(allocated decimal.Decimal, orderedQuantity int64) decimal.Decimal {
	if orderedQuantity <= 0 {
		return decimal.Zero
	}
	return allocated.DivRound(decimal.NewFromInt(orderedQuantity), 4)
}

// ProrateItems spreads a list's freight cost over its items by quantity,
// returning the per-item allocation keyed by item ID. The allocations sum
// back to the list's freight cost up to division precision.
func ProrateItems(freightCost decimal.Decimal, items []PackingListItem) map[int64]decimal.Decimal {
	var total int64
	for _, item := range items {
		total += item.Quantity
	}
	out := make(map[int64]decimal.Decimal, len(items))
	if total <= 0 {
		return out
	}
	unit := freightCost.Div(decimal.NewFromInt(total))
	for _, item := range items {
		out[item.ID] = unit.Mul(decimal.NewFromInt(item.Quantity))
	}
	return out
}
