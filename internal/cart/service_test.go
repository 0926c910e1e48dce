package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/catalog"
	"github.com/lokastore/storefront-api/internal/pricing"
)

type memStore struct {
	carts map[uuid.UUID]*Cart
	lines map[uuid.UUID]*Line
}

func newMemStore() *memStore {
	return &memStore{carts: map[uuid.UUID]*Cart{}, lines: map[uuid.UUID]*Line{}}
}

func (m *memStore) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	if c, ok := m.carts[id]; ok {
		return *c, nil
	}
	return Cart{}, ErrNotFound
}

func (m *memStore) GetCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error) {
	for _, c := range m.carts {
		if c.UserID != nil && *c.UserID == userID {
			return *c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (m *memStore) GetCartByAnon(ctx context.Context, anonID string) (Cart, error) {
	for _, c := range m.carts {
		if c.AnonID != nil && *c.AnonID == anonID {
			return *c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (m *memStore) CreateCart(ctx context.Context, cart Cart) (Cart, error) {
	c := cart
	m.carts[c.ID] = &c
	return c, nil
}

func (m *memStore) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	if c, ok := m.carts[id]; ok {
		c.ExpiresAt = expiresAt
	}
	return nil
}

func (m *memStore) ListLines(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	var out []Line
	for _, l := range m.lines {
		if l.CartID == cartID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memStore) FindLine(ctx context.Context, cartID uuid.UUID, kind LineKind, productID uuid.UUID) (Line, error) {
	for _, l := range m.lines {
		if l.CartID == cartID && l.Kind == kind && l.ProductID == productID {
			return *l, nil
		}
	}
	return Line{}, ErrNotFound
}

func (m *memStore) CreateLine(ctx context.Context, line Line) (Line, error) {
	l := line
	m.lines[l.ID] = &l
	return l, nil
}

func (m *memStore) UpdateLineQty(ctx context.Context, lineID uuid.UUID, qty int) error {
	l, ok := m.lines[lineID]
	if !ok {
		return ErrNotFound
	}
	l.Qty = qty
	return nil
}

func (m *memStore) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) error {
	delete(m.lines, lineID)
	return nil
}

func (m *memStore) SetShipping(ctx context.Context, cartID uuid.UUID, packageID *string) error {
	if c, ok := m.carts[cartID]; ok {
		c.ShippingPackageID = packageID
	}
	return nil
}

type memCatalog struct {
	products map[uuid.UUID]catalog.Product
}

func (m memCatalog) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := make(map[uuid.UUID]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type noRules struct{}

func (noRules) ActiveRules(ctx context.Context) ([]pricing.Rule, error) { return nil, nil }

func newCartService(store Store, cat Catalog) *Service {
	return &Service{
		Store:   store,
		Catalog: cat,
		Rules:   noRules{},
		Now:     func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) },
	}
}

func TestEnsureCartCreatesAndReuses(t *testing.T) {
	store := newMemStore()
	svc := newCartService(store, memCatalog{})

	anon := "guest-123"
	first, err := svc.EnsureCart(context.Background(), nil, &anon)
	if err != nil {
		t.Fatalf("EnsureCart: %v", err)
	}
	second, err := svc.EnsureCart(context.Background(), nil, &anon)
	if err != nil {
		t.Fatalf("EnsureCart reuse: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same cart, got %s and %s", first.ID, second.ID)
	}
	if _, err := svc.EnsureCart(context.Background(), nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without identity, got %v", err)
	}
}

func TestAddProductIncrementsExistingLine(t *testing.T) {
	store := newMemStore()
	prodID := uuid.New()
	svc := newCartService(store, memCatalog{})
	cartID := uuid.New()

	if err := svc.AddProduct(context.Background(), cartID, prodID, 2); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if err := svc.AddProduct(context.Background(), cartID, prodID, 1); err != nil {
		t.Fatalf("AddProduct increment: %v", err)
	}
	lines, _ := store.ListLines(context.Background(), cartID)
	if len(lines) != 1 {
		t.Fatalf("expected one merged line, got %d", len(lines))
	}
	if lines[0].Qty != 3 {
		t.Fatalf("expected qty 3, got %d", lines[0].Qty)
	}
	if err := svc.AddProduct(context.Background(), cartID, prodID, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero qty, got %v", err)
	}
}

func TestExpandUsesLivePrices(t *testing.T) {
	catID := uuid.New()
	prodID := uuid.New()
	cat := memCatalog{products: map[uuid.UUID]catalog.Product{
		prodID: {ID: prodID, Title: "Sepatu Lari", CategoryID: catID, BasePrice: 400000},
	}}
	svc := newCartService(newMemStore(), cat)
	svc.Rules = staticRuleSource{rules: []pricing.Rule{{
		ID:       uuid.New(),
		Scope:    pricing.ScopeProduct,
		TargetID: prodID,
		Kind:     pricing.KindFixed,
		Value:    50000,
		Active:   true,
	}}}

	priced, err := svc.Expand(context.Background(), []Line{{ID: uuid.New(), Kind: KindProduct, ProductID: prodID, Qty: 2}})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(priced) != 1 {
		t.Fatalf("expected 1 line, got %d", len(priced))
	}
	l := priced[0]
	if l.UnitPrice != 350000 || l.OriginalPrice != 400000 {
		t.Fatalf("expected live price 350000/400000, got %d/%d", l.UnitPrice, l.OriginalPrice)
	}
	if l.Subtotal != 700000 {
		t.Fatalf("expected subtotal 700000, got %d", l.Subtotal)
	}
	if !l.DiscountApplied {
		t.Fatal("expected discountApplied")
	}
}

type staticRuleSource struct {
	rules []pricing.Rule
}

func (s staticRuleSource) ActiveRules(ctx context.Context) ([]pricing.Rule, error) {
	return s.rules, nil
}

func TestExpandDropsMissingProducts(t *testing.T) {
	known := uuid.New()
	cat := memCatalog{products: map[uuid.UUID]catalog.Product{
		known: {ID: known, Title: "Topi", BasePrice: 75000},
	}}
	svc := newCartService(newMemStore(), cat)

	priced, err := svc.Expand(context.Background(), []Line{
		{ID: uuid.New(), Kind: KindProduct, ProductID: known, Qty: 1},
		{ID: uuid.New(), Kind: KindProduct, ProductID: uuid.New(), Qty: 1},
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(priced) != 1 {
		t.Fatalf("missing products must be dropped, got %d lines", len(priced))
	}
}

func TestExpandBundlePricing(t *testing.T) {
	memberA := uuid.New()
	memberB := uuid.New()
	owner := uuid.New()
	cat := memCatalog{products: map[uuid.UUID]catalog.Product{
		owner: {
			ID:    owner,
			Title: "Paket Hemat",
			Bundle: &catalog.Bundle{
				Price: 150000,
				Items: []catalog.BundleItem{
					{ProductID: memberA, Slot: "atasan"},
					{ProductID: memberB, Slot: "bawahan"},
				},
			},
		},
		memberA: {ID: memberA, Title: "Kaos Polos", BasePrice: 80000},
		memberB: {ID: memberB, Title: "Celana Pendek", BasePrice: 120000},
	}}
	svc := newCartService(newMemStore(), cat)

	priced, err := svc.Expand(context.Background(), []Line{{
		ID:         uuid.New(),
		Kind:       KindBundle,
		ProductID:  owner,
		Selections: map[string]string{"atasan": "L", "bawahan": "32"},
		Qty:        1,
	}})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(priced) != 1 {
		t.Fatalf("expected 1 line, got %d", len(priced))
	}
	l := priced[0]
	if l.UnitPrice != 150000 {
		t.Fatalf("bundle unit price must be the fixed bundle price, got %d", l.UnitPrice)
	}
	if l.OriginalPrice != 200000 {
		t.Fatalf("bundle original price must sum member base prices, got %d", l.OriginalPrice)
	}
	if !l.DiscountApplied {
		t.Fatal("expected discountApplied when bundle price undercuts member sum")
	}
	if len(l.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(l.Members))
	}
	if l.Members[0].Selection != "L" || l.Members[1].Selection != "32" {
		t.Fatalf("selections not carried through: %+v", l.Members)
	}
}

func TestExpandBundleMissingMemberFallsBackToZero(t *testing.T) {
	member := uuid.New()
	owner := uuid.New()
	cat := memCatalog{products: map[uuid.UUID]catalog.Product{
		owner: {
			ID:    owner,
			Title: "Paket",
			Bundle: &catalog.Bundle{
				Price: 100000,
				Items: []catalog.BundleItem{
					{ProductID: member, Slot: "utama"},
					{ProductID: uuid.New(), Slot: "bonus"},
				},
			},
		},
		member: {ID: member, Title: "Jaket", BasePrice: 90000},
	}}
	svc := newCartService(newMemStore(), cat)

	priced, err := svc.Expand(context.Background(), []Line{{ID: uuid.New(), Kind: KindBundle, ProductID: owner, Qty: 1}})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if priced[0].OriginalPrice != 90000 {
		t.Fatalf("missing member should contribute 0, got original %d", priced[0].OriginalPrice)
	}
	if priced[0].DiscountApplied {
		t.Fatal("bundle price above member sum must not flag a discount")
	}
}

func TestGetRejectsExpiredCart(t *testing.T) {
	store := newMemStore()
	svc := newCartService(store, memCatalog{})
	id := uuid.New()
	store.carts[id] = &Cart{ID: id, ExpiresAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	if _, err := svc.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired cart to read as not found, got %v", err)
	}
}
