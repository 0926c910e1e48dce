package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lokastore/storefront-api/internal/catalog"
	"github.com/lokastore/storefront-api/internal/obs"
	"github.com/lokastore/storefront-api/internal/pricing"
	"github.com/lokastore/storefront-api/internal/promo"
)

// ErrNotFound indicates the requested cart or line could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// LineKind discriminates plain product lines from bundle lines.
type LineKind string

const (
	KindProduct LineKind = "product"
	KindBundle  LineKind = "bundle"
)

// Line is a stored cart entry. A bundle line references the product that owns
// the bundle definition and carries the buyer's per-slot selections.
type Line struct {
	ID         uuid.UUID         `json:"id"`
	CartID     uuid.UUID         `json:"cartId"`
	Kind       LineKind          `json:"kind"`
	ProductID  uuid.UUID         `json:"productId"`
	Selections map[string]string `json:"selections,omitempty"`
	Qty        int               `json:"qty"`
}

// Cart is the persisted cart header.
type Cart struct {
	ID                uuid.UUID  `json:"id"`
	UserID            *uuid.UUID `json:"userId,omitempty"`
	AnonID            *string    `json:"anonId,omitempty"`
	PromoCode         *string    `json:"promoCode,omitempty"`
	ShippingPackageID *string    `json:"shippingPackageId,omitempty"`
	ExpiresAt         time.Time  `json:"expiresAt"`
}

// BundleMember describes one resolved bundle component for display.
type BundleMember struct {
	ProductID uuid.UUID `json:"productId"`
	Title     string    `json:"title"`
	Slot      string    `json:"slot"`
	Selection string    `json:"selection,omitempty"`
}

// PricedLine is a cart line expanded against the live catalog.
type PricedLine struct {
	LineID          uuid.UUID      `json:"lineId"`
	Kind            LineKind       `json:"kind"`
	ProductID       uuid.UUID      `json:"productId"`
	CategoryID      uuid.UUID      `json:"categoryId"`
	Title           string         `json:"title"`
	UnitPrice       int64          `json:"unitPrice"`
	OriginalPrice   int64          `json:"originalPrice"`
	Qty             int            `json:"qty"`
	Subtotal        int64          `json:"subtotal"`
	DiscountApplied bool           `json:"discountApplied"`
	Members         []BundleMember `json:"members,omitempty"`
}

// Store defines cart persistence operations.
type Store interface {
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	GetCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error)
	GetCartByAnon(ctx context.Context, anonID string) (Cart, error)
	CreateCart(ctx context.Context, cart Cart) (Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	ListLines(ctx context.Context, cartID uuid.UUID) ([]Line, error)
	FindLine(ctx context.Context, cartID uuid.UUID, kind LineKind, productID uuid.UUID) (Line, error)
	CreateLine(ctx context.Context, line Line) (Line, error)
	UpdateLineQty(ctx context.Context, lineID uuid.UUID, qty int) error
	DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) error
	SetShipping(ctx context.Context, cartID uuid.UUID, packageID *string) error
}

// Catalog resolves products during line expansion.
type Catalog interface {
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Store   Store
	Catalog Catalog
	Rules   catalog.RuleSource
	TTL     time.Duration
	Now     func() time.Time
	Log     *zerolog.Logger
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *zerolog.Logger {
	if s != nil && s.Log != nil {
		return s.Log
	}
	l := zerolog.Nop()
	return &l
}

// EnsureCart loads or creates a cart for the provided identifiers.
func (s *Service) EnsureCart(ctx context.Context, userID *string, anonID *string) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	expires := s.now().Add(s.ttl())

	if userID != nil && *userID != "" {
		uid, err := uuid.Parse(*userID)
		if err != nil {
			return Cart{}, fmt.Errorf("parse user id: %w", err)
		}
		cart, err := s.Store.GetCartByUser(ctx, uid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return s.Store.CreateCart(ctx, Cart{ID: uuid.New(), UserID: &uid, ExpiresAt: expires})
			}
			return Cart{}, err
		}
		_ = s.Store.TouchCart(ctx, cart.ID, expires)
		return cart, nil
	}

	if anonID != nil && *anonID != "" {
		cart, err := s.Store.GetCartByAnon(ctx, *anonID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return s.Store.CreateCart(ctx, Cart{ID: uuid.New(), AnonID: anonID, ExpiresAt: expires})
			}
			return Cart{}, err
		}
		_ = s.Store.TouchCart(ctx, cart.ID, expires)
		return cart, nil
	}

	return Cart{}, ErrInvalidInput
}

// Get loads an unexpired cart by ID.
func (s *Service) Get(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	cart, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	if !cart.ExpiresAt.IsZero() && cart.ExpiresAt.Before(s.now()) {
		return Cart{}, ErrNotFound
	}
	return cart, nil
}

// AddProduct inserts or increments a plain product line.
func (s *Service) AddProduct(ctx context.Context, cartID uuid.UUID, productID uuid.UUID, qty int) error {
	return s.addLine(ctx, Line{CartID: cartID, Kind: KindProduct, ProductID: productID, Qty: qty})
}

// AddBundle inserts a bundle line with the buyer's per-slot selections. The
// referenced product must carry a bundle definition.
func (s *Service) AddBundle(ctx context.Context, cartID uuid.UUID, productID uuid.UUID, selections map[string]string, qty int) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if s.Catalog != nil {
		products, err := s.Catalog.GetProducts(ctx, []uuid.UUID{productID})
		if err != nil {
			return fmt.Errorf("load bundle product: %w", err)
		}
		p, ok := products[productID]
		if !ok || p.Bundle == nil {
			return fmt.Errorf("product has no bundle: %w", ErrInvalidInput)
		}
	}
	return s.addLine(ctx, Line{CartID: cartID, Kind: KindBundle, ProductID: productID, Selections: selections, Qty: qty})
}

func (s *Service) addLine(ctx context.Context, line Line) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if line.Qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	expires := s.now().Add(s.ttl())
	existing, err := s.Store.FindLine(ctx, line.CartID, line.Kind, line.ProductID)
	if err == nil {
		if err := s.Store.UpdateLineQty(ctx, existing.ID, existing.Qty+line.Qty); err != nil {
			return err
		}
		_ = s.Store.TouchCart(ctx, line.CartID, expires)
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	line.ID = uuid.New()
	if _, err := s.Store.CreateLine(ctx, line); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, line.CartID, expires)
	return nil
}

// UpdateQty updates the quantity for a cart line.
func (s *Service) UpdateQty(ctx context.Context, cartID, lineID uuid.UUID, qty int) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if qty <= 0 {
		return fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	if err := s.Store.UpdateLineQty(ctx, lineID, qty); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// RemoveLine deletes a cart line.
func (s *Service) RemoveLine(ctx context.Context, cartID, lineID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Store.DeleteLine(ctx, cartID, lineID); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// SelectShipping records the chosen shipping package on the cart. A nil
// packageID clears the selection.
func (s *Service) SelectShipping(ctx context.Context, cartID uuid.UUID, packageID *string) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if packageID != nil && *packageID == "" {
		packageID = nil
	}
	if err := s.Store.SetShipping(ctx, cartID, packageID); err != nil {
		return err
	}
	_ = s.Store.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
	return nil
}

// Expand resolves stored lines against the live catalog. Prices are always
// current, never the price captured at add time. Lines whose product no
// longer exists are dropped with a warning, since that signals a catalog and
// cart desync rather than a user error.
func (s *Service) Expand(ctx context.Context, lines []Line) ([]PricedLine, error) {
	if s == nil || s.Catalog == nil {
		return nil, errors.New("cart service not configured")
	}
	ids := make([]uuid.UUID, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			ids = append(ids, l.ProductID)
		}
	}
	products, err := s.Catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	// Bundle members come from a second lookup so a single round trip covers
	// every member of every bundle line.
	memberIDs := make([]uuid.UUID, 0)
	for _, l := range lines {
		if l.Kind != KindBundle {
			continue
		}
		p, ok := products[l.ProductID]
		if !ok || p.Bundle == nil {
			continue
		}
		for _, item := range p.Bundle.Items {
			if _, ok := seen[item.ProductID]; !ok {
				seen[item.ProductID] = struct{}{}
				memberIDs = append(memberIDs, item.ProductID)
			}
		}
	}
	if len(memberIDs) > 0 {
		members, err := s.Catalog.GetProducts(ctx, memberIDs)
		if err != nil {
			return nil, fmt.Errorf("load bundle members: %w", err)
		}
		for id, p := range members {
			products[id] = p
		}
	}

	var rules []pricing.Rule
	if s.Rules != nil {
		rules, err = s.Rules.ActiveRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("load discount rules: %w", err)
		}
	}

	now := s.now()
	out := make([]PricedLine, 0, len(lines))
	for _, l := range lines {
		if l.Qty <= 0 {
			continue
		}
		p, ok := products[l.ProductID]
		if !ok {
			s.logger().Warn().
				Str("cart_id", l.CartID.String()).
				Str("product_id", l.ProductID.String()).
				Msg("dropping cart line for missing product")
			if obs.CartLinesDropped != nil {
				obs.CartLinesDropped.Inc()
			}
			continue
		}
		switch l.Kind {
		case KindBundle:
			priced, ok := s.expandBundle(l, p, products)
			if !ok {
				continue
			}
			out = append(out, priced)
		default:
			quote := pricing.Resolve(pricing.Product{ID: p.ID, CategoryID: p.CategoryID, BasePrice: p.BasePrice}, rules, now)
			out = append(out, PricedLine{
				LineID:          l.ID,
				Kind:            KindProduct,
				ProductID:       p.ID,
				CategoryID:      p.CategoryID,
				Title:           p.Title,
				UnitPrice:       quote.FinalPrice,
				OriginalPrice:   quote.OriginalPrice,
				Qty:             l.Qty,
				Subtotal:        quote.FinalPrice * int64(l.Qty),
				DiscountApplied: quote.DiscountApplied,
			})
		}
	}
	return out, nil
}

// expandBundle prices a bundle line: the unit price is the fixed bundle
// price, while the original price is the sum of member base prices. Member
// products missing from the catalog contribute 0.
func (s *Service) expandBundle(l Line, owner catalog.Product, products map[uuid.UUID]catalog.Product) (PricedLine, bool) {
	if owner.Bundle == nil {
		s.logger().Warn().
			Str("cart_id", l.CartID.String()).
			Str("product_id", l.ProductID.String()).
			Msg("dropping bundle line for product without bundle definition")
		return PricedLine{}, false
	}
	var memberSum int64
	members := make([]BundleMember, 0, len(owner.Bundle.Items))
	for _, item := range owner.Bundle.Items {
		member := BundleMember{ProductID: item.ProductID, Slot: item.Slot}
		if sel, ok := l.Selections[item.Slot]; ok {
			member.Selection = sel
		}
		if mp, ok := products[item.ProductID]; ok {
			member.Title = mp.Title
			memberSum += mp.BasePrice
		}
		members = append(members, member)
	}
	unit := owner.Bundle.Price
	if unit < 0 {
		unit = 0
	}
	return PricedLine{
		LineID:          l.ID,
		Kind:            KindBundle,
		ProductID:       owner.ID,
		CategoryID:      owner.CategoryID,
		Title:           owner.Title,
		UnitPrice:       unit,
		OriginalPrice:   memberSum,
		Qty:             l.Qty,
		Subtotal:        unit * int64(l.Qty),
		DiscountApplied: unit < memberSum,
		Members:         members,
	}, true
}

// PromoItems converts priced lines into the shape the promo engine scores.
func PromoItems(lines []PricedLine) []promo.Item {
	items := make([]promo.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, promo.Item{
			ProductID:  l.ProductID,
			CategoryID: l.CategoryID,
			Bundle:     l.Kind == KindBundle,
			Subtotal:   l.Subtotal,
		})
	}
	return items
}

// Subtotal sums expanded line subtotals.
func Subtotal(lines []PricedLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal
	}
	return total
}
