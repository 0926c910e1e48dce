package pricing

import (
	"time"

	"github.com/google/uuid"
)

// Money represents a monetary value in whole Rupiah.
type Money = int64

// Scope identifies the class of products a discount rule targets.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeCategory Scope = "category"
	ScopeProduct  Scope = "product"
)

// Kind identifies how a discount value is interpreted.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

// Product carries the reference data needed to resolve a unit price.
type Product struct {
	ID         uuid.UUID
	CategoryID uuid.UUID
	BasePrice  Money
}

// Rule captures a product discount rule.
type Rule struct {
	ID       uuid.UUID
	Scope    Scope
	TargetID uuid.UUID
	Kind     Kind
	Value    int64
	StartsAt *time.Time
	EndsAt   *time.Time
	Active   bool
}

// Quote is the result of resolving a product against active discount rules.
type Quote struct {
	OriginalPrice   Money
	FinalPrice      Money
	DiscountApplied bool
	DiscountKind    Kind
	DiscountValue   int64
}

// EffectiveAt reports whether the rule is active and inside its date window.
func (r Rule) EffectiveAt(now time.Time) bool {
	if !r.Active {
		return false
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return false
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return false
	}
	return true
}

func (r Rule) matches(p Product) bool {
	switch r.Scope {
	case ScopeProduct:
		return r.TargetID == p.ID
	case ScopeCategory:
		return r.TargetID == p.CategoryID
	case ScopeAll:
		return true
	}
	return false
}

// Resolve computes the effective unit price for a product. When several rules
// could apply, the most specific scope wins (product, then category, then
// all); within a scope the first effective rule in slice order is taken.
func Resolve(p Product, rules []Rule, now time.Time) Quote {
	q := Quote{OriginalPrice: p.BasePrice, FinalPrice: p.BasePrice}
	rule, ok := pick(p, rules, now)
	if !ok {
		return q
	}
	final := applyRule(p.BasePrice, rule)
	if final < 0 {
		final = 0
	}
	// A negative fixed value or percentage over 100 would raise the price;
	// a discount rule can only ever lower it.
	if final > p.BasePrice {
		final = p.BasePrice
	}
	q.FinalPrice = final
	q.DiscountApplied = final < p.BasePrice
	if q.DiscountApplied {
		q.DiscountKind = rule.Kind
		q.DiscountValue = rule.Value
	}
	return q
}

func pick(p Product, rules []Rule, now time.Time) (Rule, bool) {
	for _, scope := range []Scope{ScopeProduct, ScopeCategory, ScopeAll} {
		for _, r := range rules {
			if r.Scope != scope {
				continue
			}
			if !r.EffectiveAt(now) || !r.matches(p) {
				continue
			}
			return r, true
		}
	}
	return Rule{}, false
}

func applyRule(base Money, r Rule) Money {
	switch r.Kind {
	case KindPercentage:
		return base - (base*r.Value)/100
	case KindFixed:
		return base - r.Value
	}
	return base
}

// Line is a priced cart entry fed into total calculation.
type Line struct {
	UnitPrice Money
	Qty       int
}

// Summary aggregates the checkout total components.
type Summary struct {
	Subtotal      Money
	ShippingCost  Money
	PromoDiscount Money
	Total         Money
}

// Totals composes subtotal, shipping cost and promo discount into the amount
// payable. It is pure and recomputed in full on every cart or selection
// change.
func Totals(lines []Line, shipping Money, promoDiscount Money) Summary {
	var subtotal Money
	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		subtotal += Money(l.Qty) * l.UnitPrice
	}
	if shipping < 0 {
		shipping = 0
	}
	if promoDiscount < 0 {
		promoDiscount = 0
	}
	total := subtotal + shipping - promoDiscount
	if total < 0 {
		total = 0
	}
	return Summary{
		Subtotal:      subtotal,
		ShippingCost:  shipping,
		PromoDiscount: promoDiscount,
		Total:         total,
	}
}
