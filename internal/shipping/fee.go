package shipping

import "github.com/lokastore/storefront-api/internal/pricing"

// DiscountKind identifies how a courier-level discount reduces shipping cost.
type DiscountKind string

const (
	DiscountFree       DiscountKind = "free"
	DiscountFixed      DiscountKind = "fixed"
	DiscountPercentage DiscountKind = "percentage"
)

// CourierDiscount is a shipping-fee reduction attached to a courier. It
// applies to every package the courier offers.
type CourierDiscount struct {
	Kind     DiscountKind `json:"kind"`
	Value    int64        `json:"value"`
	MinSpend *int64       `json:"minSpend,omitempty"`
	Active   bool         `json:"active"`
}

// Package is a single shipping option offered by a courier.
type Package struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Cost    pricing.Money `json:"cost"`
	ETD     string        `json:"etd"`
	Courier string        `json:"courier,omitempty"`
}

// Courier is a carrier with its shipping packages and optional discount.
type Courier struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Discount *CourierDiscount `json:"discount,omitempty"`
}

// Fee applies the owning courier's discount to a package cost. A nil courier
// means the package is not owned by any known carrier and the cost passes
// through unchanged.
func Fee(pkg Package, courier *Courier, subtotal pricing.Money) pricing.Money {
	cost := pkg.Cost
	if cost < 0 {
		cost = 0
	}
	if courier == nil || courier.Discount == nil || !courier.Discount.Active {
		return cost
	}
	d := courier.Discount
	if d.MinSpend != nil && subtotal < *d.MinSpend {
		return cost
	}
	switch d.Kind {
	case DiscountFree:
		return 0
	case DiscountFixed:
		reduced := cost - d.Value
		if reduced < 0 {
			return 0
		}
		return reduced
	case DiscountPercentage:
		return cost - (cost*d.Value)/100
	}
	return cost
}
