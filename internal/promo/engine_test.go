package promo

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/pricing"
)

var (
	catX  = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	catY  = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	prodA = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
)

func TestValidateInactive(t *testing.T) {
	p := Promo{Code: "HEMAT10", Active: false}
	if err := p.Validate(time.Now()); err != ErrInactive {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestValidateExpiredDateOnly(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	expired := Promo{Code: "LAMA", Active: true, ExpiresAt: &yesterday}
	if err := expired.Validate(now); err != ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	// Expiring today means valid through the whole day.
	current := Promo{Code: "HARIINI", Active: true, ExpiresAt: &today}
	if err := current.Validate(now); err != nil {
		t.Fatalf("promo expiring today must still validate, got %v", err)
	}
}

func TestDiscountPercentageAllScope(t *testing.T) {
	p := Promo{Code: "HEMAT10", Scope: pricing.ScopeAll, Kind: pricing.KindPercentage, Value: 10, Active: true}
	items := []Item{
		{ProductID: prodA, CategoryID: catX, Subtotal: 150_000},
		{CategoryID: catY, Subtotal: 150_000},
	}
	got := Discount(ApplicableSubtotal(items, p), p)
	if got != 30_000 {
		t.Fatalf("expected 30000 discount, got %d", got)
	}
}

func TestDiscountFixedCappedAtApplicable(t *testing.T) {
	p := Promo{Scope: pricing.ScopeAll, Kind: pricing.KindFixed, Value: 100_000, Active: true}
	items := []Item{{Subtotal: 50_000}}
	got := Discount(ApplicableSubtotal(items, p), p)
	if got != 50_000 {
		t.Fatalf("fixed discount must cap at applicable subtotal, got %d", got)
	}
}

func TestScopedPromoSkipsOtherCategories(t *testing.T) {
	p := Promo{Scope: pricing.ScopeCategory, TargetID: catX, Kind: pricing.KindPercentage, Value: 20, Active: true}
	items := []Item{{CategoryID: catY, Subtotal: 120_000}}
	if got := ApplicableSubtotal(items, p); got != 0 {
		t.Fatalf("expected 0 applicable subtotal, got %d", got)
	}
	if got := Discount(0, p); got != 0 {
		t.Fatalf("expected inert promo, got discount %d", got)
	}
}

func TestScopedPromoExcludesBundles(t *testing.T) {
	p := Promo{Scope: pricing.ScopeCategory, TargetID: catX, Kind: pricing.KindPercentage, Value: 50, Active: true}
	items := []Item{
		{CategoryID: catX, Subtotal: 80_000},
		{CategoryID: catX, Bundle: true, Subtotal: 150_000},
	}
	if got := ApplicableSubtotal(items, p); got != 80_000 {
		t.Fatalf("bundles must be excluded from scoped promos, got %d", got)
	}
}

func TestAllScopePromoIncludesBundles(t *testing.T) {
	p := Promo{Scope: pricing.ScopeAll, Kind: pricing.KindPercentage, Value: 10, Active: true}
	items := []Item{
		{CategoryID: catX, Subtotal: 100_000},
		{Bundle: true, Subtotal: 150_000},
	}
	if got := ApplicableSubtotal(items, p); got != 250_000 {
		t.Fatalf("all-scope promo covers the full subtotal, got %d", got)
	}
}

func TestProductScopedPromo(t *testing.T) {
	p := Promo{Scope: pricing.ScopeProduct, TargetID: prodA, Kind: pricing.KindFixed, Value: 5_000, Active: true}
	items := []Item{
		{ProductID: prodA, CategoryID: catX, Subtotal: 40_000},
		{ProductID: uuid.New(), CategoryID: catX, Subtotal: 60_000},
	}
	if got := ApplicableSubtotal(items, p); got != 40_000 {
		t.Fatalf("expected 40000, got %d", got)
	}
}
