package promo

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/pricing"
)

var (
	// ErrNotFound is returned when no promo exists for the provided code.
	ErrNotFound = errors.New("promo code not found")
	// ErrInactive is returned when the promo has been disabled.
	ErrInactive = errors.New("promo code is not active")
	// ErrExpired is returned when the promo expiry date has passed.
	ErrExpired = errors.New("promo code has expired")
)

// Promo captures a promo code rule. Codes are matched case-insensitively.
type Promo struct {
	ID        uuid.UUID
	Code      string
	Scope     pricing.Scope
	TargetID  uuid.UUID
	Kind      pricing.Kind
	Value     int64
	ExpiresAt *time.Time
	Active    bool
}

// Item represents a priced cart line eligible for promo calculation.
type Item struct {
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Bundle     bool
	Subtotal   int64
}

// Validate reports whether the promo can be applied at the provided instant.
// Expiry uses a date-only comparison: a promo expiring today is still valid.
func (p Promo) Validate(now time.Time) error {
	if !p.Active {
		return ErrInactive
	}
	if p.ExpiresAt != nil && dateOnly(*p.ExpiresAt).Before(dateOnly(now)) {
		return ErrExpired
	}
	return nil
}

// ApplicableSubtotal calculates the portion of the cart subtotal the promo
// applies to. Bundle lines are excluded from scoped promos so bundle pricing
// is never discounted twice.
func ApplicableSubtotal(items []Item, p Promo) int64 {
	var total int64
	for _, it := range items {
		if it.Subtotal <= 0 {
			continue
		}
		if !itemMatches(it, p) {
			continue
		}
		total += it.Subtotal
	}
	return total
}

func itemMatches(it Item, p Promo) bool {
	switch p.Scope {
	case pricing.ScopeAll:
		return true
	case pricing.ScopeProduct:
		return !it.Bundle && it.ProductID == p.TargetID
	case pricing.ScopeCategory:
		return !it.Bundle && it.CategoryID == p.TargetID
	}
	return false
}

// Discount determines the discount amount for the applicable subtotal. A zero
// applicable subtotal makes the promo inert, not invalid. A fixed discount
// never exceeds the applicable subtotal.
func Discount(applicable int64, p Promo) int64 {
	if applicable <= 0 {
		return 0
	}
	var discount int64
	switch p.Kind {
	case pricing.KindPercentage:
		discount = (applicable * p.Value) / 100
	case pricing.KindFixed:
		discount = p.Value
	}
	if discount > applicable {
		discount = applicable
	}
	if discount < 0 {
		return 0
	}
	return discount
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
