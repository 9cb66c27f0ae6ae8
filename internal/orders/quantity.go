package orders

// DeriveQuantities computes the derived quantity figures from raw child-record
// sums. Fulfilled state is never stored on the order row; it is always derived
// at read time from factory shipments, packing-list items and arrivals, which
// are created independently and out of order.
//
//	unreceived = max(0, ordered − factory_shipped)
//	unshipped  = max(0, factory_shipped − packing_shipped)
//	in_transit = max(0, packing_shipped − arrived)
//
// Over-shipment (more packed than factory-shipped, or more arrived than
// packed) is clamped, not rejected.
func DeriveQuantities(in QuantitySums) Quantities {
	return Quantities{
		Ordered:        in.Ordered,
		FactoryShipped: in.FactoryShipped,
		PackingShipped: in.PackingShipped,
		Unreceived:     clampNonNegative(in.Ordered - in.FactoryShipped),
		Unshipped:      clampNonNegative(in.FactoryShipped - in.PackingShipped),
		InTransit:      clampNonNegative(in.PackingShipped - in.Arrived),
		Arrived:        in.Arrived,
	}
}

func clampNonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
