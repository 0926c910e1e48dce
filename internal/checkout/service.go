package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/cart"
	"github.com/lokastore/storefront-api/internal/events"
	"github.com/lokastore/storefront-api/internal/order"
	"github.com/lokastore/storefront-api/internal/pricing"
	"github.com/lokastore/storefront-api/internal/promo"
	"github.com/lokastore/storefront-api/internal/shipping"
)

// Checkout guard errors. Each maps to a distinct pre-submission condition.
var (
	ErrCartEmpty         = errors.New("cart is empty")
	ErrNoShippingChoice  = errors.New("no shipping package selected")
	ErrNoAddress         = errors.New("shipping address is required")
	ErrCartOwnerMismatch = errors.New("cart does not belong to user")
)

// Input is the checkout submission payload.
type Input struct {
	CartID  string        `json:"cartId"`
	Address order.Address `json:"address"`
	Email   string        `json:"email"`
	Notes   *string       `json:"notes"`
}

// Summary is the composed price breakdown for a cart.
type Summary struct {
	Subtotal      int64 `json:"subtotal"`
	ShippingCost  int64 `json:"shippingCost"`
	PromoDiscount int64 `json:"promoDiscount"`
	Total         int64 `json:"total"`
}

// Output is returned after a successful checkout.
type Output struct {
	OrderID string  `json:"orderId"`
	Status  string  `json:"status"`
	Pricing Summary `json:"pricing"`
}

// OrderWriter persists the order and its lines inside the caller's
// transaction.
type OrderWriter interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, ord order.Order, lines []order.Line) (order.Order, error)
}

// Service composes cart expansion, shipping fees, and promo discounts into a
// final total, and turns a cart into a persisted order.
type Service struct {
	Pool     *pgxpool.Pool
	Carts    *cart.Service
	Shipping *shipping.Service
	Promos   *promo.Service
	Orders   OrderWriter
	Events   *events.Bus
	Currency string
}

// Quote recomputes the full price breakdown for the cart's current
// selections. It is pure with respect to stored state and is safe to call on
// every cart change.
func (s *Service) Quote(ctx context.Context, cartID uuid.UUID) (Summary, []cart.PricedLine, error) {
	if s == nil || s.Carts == nil {
		return Summary{}, nil, errors.New("checkout service not configured")
	}
	c, err := s.Carts.Get(ctx, cartID)
	if err != nil {
		return Summary{}, nil, err
	}
	lines, err := s.Carts.Store.ListLines(ctx, cartID)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("list cart lines: %w", err)
	}
	priced, err := s.Carts.Expand(ctx, lines)
	if err != nil {
		return Summary{}, nil, err
	}
	return s.summarize(ctx, c, priced)
}

func (s *Service) summarize(ctx context.Context, c cart.Cart, priced []cart.PricedLine) (Summary, []cart.PricedLine, error) {
	subtotal := cart.Subtotal(priced)

	var shippingCost int64
	if c.ShippingPackageID != nil && *c.ShippingPackageID != "" && s.Shipping != nil {
		cost, err := s.Shipping.Cost(ctx, *c.ShippingPackageID, subtotal)
		if err != nil {
			return Summary{}, nil, fmt.Errorf("shipping cost: %w", err)
		}
		shippingCost = cost
	}

	var discount int64
	if c.PromoCode != nil && *c.PromoCode != "" && s.Promos != nil {
		// Evaluate treats unknown or invalid codes as a zero discount; an
		// error here means the promo store itself failed, and pricing the
		// cart without its applied promo would overcharge the buyer.
		d, err := s.Promos.Evaluate(ctx, *c.PromoCode, cart.PromoItems(priced))
		if err != nil {
			return Summary{}, nil, fmt.Errorf("evaluate promo: %w", err)
		}
		discount = d
	}

	pl := make([]pricing.Line, 0, len(priced))
	for _, l := range priced {
		pl = append(pl, pricing.Line{UnitPrice: l.UnitPrice, Qty: l.Qty})
	}
	totals := pricing.Totals(pl, shippingCost, discount)
	return Summary{
		Subtotal:      totals.Subtotal,
		ShippingCost:  totals.ShippingCost,
		PromoDiscount: totals.PromoDiscount,
		Total:         totals.Total,
	}, priced, nil
}

// Create turns the cart into a persisted order. The cart must be non-empty,
// have a shipping package selected, and the submission must carry a
// destination address.
func (s *Service) Create(ctx context.Context, userID *string, in Input) (Output, error) {
	if s == nil || s.Orders == nil || s.Carts == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if userID == nil || *userID == "" {
		return Output{}, errors.New("user is required for checkout")
	}
	uID, err := uuid.Parse(*userID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid user id: %w", err)
	}
	cID, err := uuid.Parse(in.CartID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid cart id: %w", err)
	}
	if in.Address.ReceiverName == "" || in.Address.AddressLine == "" || in.Address.City == "" {
		return Output{}, ErrNoAddress
	}

	c, err := s.Carts.Get(ctx, cID)
	if err != nil {
		return Output{}, err
	}
	if c.UserID != nil && *c.UserID != uID {
		return Output{}, ErrCartOwnerMismatch
	}
	if c.ShippingPackageID == nil || *c.ShippingPackageID == "" {
		return Output{}, ErrNoShippingChoice
	}
	lines, err := s.Carts.Store.ListLines(ctx, cID)
	if err != nil {
		return Output{}, fmt.Errorf("list cart lines: %w", err)
	}
	priced, err := s.Carts.Expand(ctx, lines)
	if err != nil {
		return Output{}, err
	}
	if len(priced) == 0 {
		return Output{}, ErrCartEmpty
	}
	summary, priced, err := s.summarize(ctx, c, priced)
	if err != nil {
		return Output{}, err
	}

	var courierName string
	if s.Shipping != nil {
		if _, courier, err := s.Shipping.FindPackage(ctx, *c.ShippingPackageID); err == nil && courier != nil {
			courierName = courier.Name
		}
	}

	addressRaw, _ := json.Marshal(in.Address)
	ord := order.Order{
		ID:                uuid.New(),
		UserID:            uID,
		CartID:            cID,
		Status:            order.StatusNew,
		Currency:          s.Currency,
		Subtotal:          summary.Subtotal,
		ShippingCost:      summary.ShippingCost,
		PromoDiscount:     summary.PromoDiscount,
		Total:             summary.Total,
		PromoCode:         c.PromoCode,
		ShippingPackageID: *c.ShippingPackageID,
		CourierName:       courierName,
		AddressRaw:        addressRaw,
	}
	orderLines := make([]order.Line, 0, len(priced))
	for _, l := range priced {
		ol := order.Line{
			ID:        uuid.New(),
			OrderID:   ord.ID,
			Kind:      l.Kind,
			ProductID: l.ProductID,
			Title:     l.Title,
			UnitPrice: l.UnitPrice,
			Qty:       l.Qty,
			Subtotal:  l.Subtotal,
		}
		if len(l.Members) > 0 {
			ol.MembersRaw, _ = json.Marshal(l.Members)
		}
		orderLines = append(orderLines, ol)
	}

	created, err := s.persistOrder(ctx, ord, orderLines)
	if err != nil {
		return Output{}, err
	}

	if s.Events != nil {
		payload := map[string]any{
			"orderId": created.ID.String(),
			"userId":  uID.String(),
			"total":   summary.Total,
		}
		if in.Email != "" {
			payload["email"] = in.Email
		}
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, created.ID, payload)
	}

	return Output{OrderID: created.ID.String(), Status: created.Status, Pricing: summary}, nil
}

// persistOrder writes the order and its lines, wrapping them in one
// transaction when a pool is configured. A nil tx tells the writer to use
// its own connection.
func (s *Service) persistOrder(ctx context.Context, ord order.Order, lines []order.Line) (order.Order, error) {
	if s.Pool == nil {
		created, err := s.Orders.CreateOrder(ctx, nil, ord, lines)
		if err != nil {
			return order.Order{}, fmt.Errorf("create order: %w", err)
		}
		return created, nil
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return order.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	created, err := s.Orders.CreateOrder(ctx, tx, ord, lines)
	if err != nil {
		return order.Order{}, fmt.Errorf("create order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return order.Order{}, err
	}
	return created, nil
}
