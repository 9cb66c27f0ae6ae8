package shared

import "fmt"

// Capabilities understood by the core modules.
const (
	CapOrdersView = "orders.view"
	CapOrdersEdit = "orders.edit"

	// CapCostAdmin gates admin-only cost items and privileged cost fields
	// such as commission rate and back margin.
	CapCostAdmin = "cost.admin"

	CapFreightEdit   = "freight.edit"
	CapPaymentsEdit  = "payments.edit"
	CapMaterialsEdit = "materials.edit"
)

// Actor identifies the caller of a core operation together with the
// capabilities granted to it. The HTTP layer resolves authentication into an
// Actor; the core only ever checks capabilities.
type Actor struct {
	ID           int64
	Name         string
	Capabilities []string
}

// Can reports whether the actor holds the given capability.
func (a Actor) Can(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden unless the actor holds the capability.
func (a Actor) Require(capability string) error {
	if !a.Can(capability) {
		return fmt.Errorf("%w: missing capability %s", ErrForbidden, capability)
	}
	return nil
}
