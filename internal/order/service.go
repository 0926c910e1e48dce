package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/cart"
	"github.com/lokastore/storefront-api/internal/events"
	"github.com/lokastore/storefront-api/internal/shipping"
)

// ErrNotFound indicates the requested order could not be located.
var ErrNotFound = errors.New("order not found")

// ErrNotCancelable is returned when the order has progressed past the point
// where the buyer may cancel it.
var ErrNotCancelable = errors.New("order can no longer be canceled")

// Order lifecycle statuses.
const (
	StatusNew        = "NEW"
	StatusProcessing = "PROCESSING"
	StatusShipped    = "SHIPPED"
	StatusDelivered  = "DELIVERED"
	StatusCanceled   = "CANCELED"
)

// Address is the shipping destination captured at checkout time.
type Address struct {
	ReceiverName string `json:"receiverName"`
	Phone        string `json:"phone"`
	Province     string `json:"province"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	AddressLine  string `json:"addressLine"`
}

// Line is one purchased entry frozen at checkout time.
type Line struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"orderId"`
	Kind       cart.LineKind   `json:"kind"`
	ProductID  uuid.UUID       `json:"productId"`
	Title      string          `json:"title"`
	UnitPrice  int64           `json:"unitPrice"`
	Qty        int             `json:"qty"`
	Subtotal   int64           `json:"subtotal"`
	MembersRaw json.RawMessage `json:"members,omitempty"`
}

// Order is the persisted purchase record.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"userId"`
	CartID            uuid.UUID       `json:"cartId"`
	Status            string          `json:"status"`
	Currency          string          `json:"currency"`
	Subtotal          int64           `json:"subtotal"`
	ShippingCost      int64           `json:"shippingCost"`
	PromoDiscount     int64           `json:"promoDiscount"`
	Total             int64           `json:"total"`
	PromoCode         *string         `json:"promoCode,omitempty"`
	ShippingPackageID string          `json:"shippingPackageId"`
	CourierName       string          `json:"courierName,omitempty"`
	TrackingNumber    *string         `json:"trackingNumber,omitempty"`
	AddressRaw        json.RawMessage `json:"address,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Store defines order persistence operations.
type Store interface {
	ListOrdersForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error)
	CountOrdersForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	GetOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (Order, error)
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]Line, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error
}

// Service serves buyer-facing order reads, cancellation, and live tracking.
type Service struct {
	Store   Store
	Tracker shipping.Tracker
	Events  *events.Bus
}

// List returns the user's orders newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Order, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("order service not configured")
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	total, err := s.Store.CountOrdersForUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	orders, err := s.Store.ListOrdersForUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// Get loads one order with its lines, scoped to the owning user.
func (s *Service) Get(ctx context.Context, orderID, userID uuid.UUID) (Order, []Line, error) {
	if s == nil || s.Store == nil {
		return Order{}, nil, errors.New("order service not configured")
	}
	ord, err := s.Store.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		return Order{}, nil, err
	}
	lines, err := s.Store.ListOrderLines(ctx, ord.ID)
	if err != nil {
		return Order{}, nil, fmt.Errorf("list order lines: %w", err)
	}
	return ord, lines, nil
}

// Cancel moves an order to CANCELED while it has not shipped yet.
func (s *Service) Cancel(ctx context.Context, orderID, userID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("order service not configured")
	}
	ord, err := s.Store.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		return err
	}
	switch ord.Status {
	case StatusNew, StatusProcessing:
	default:
		return ErrNotCancelable
	}
	if err := s.Store.UpdateOrderStatus(ctx, ord.ID, StatusCanceled); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderCanceled, ord.ID, map[string]any{
			"orderId": ord.ID.String(),
			"userId":  userID.String(),
		})
	}
	return nil
}

// Track fetches live tracking events for a shipped order.
func (s *Service) Track(ctx context.Context, orderID, userID uuid.UUID) ([]shipping.TrackEvent, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("order service not configured")
	}
	ord, err := s.Store.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if s.Tracker == nil || ord.TrackingNumber == nil || *ord.TrackingNumber == "" {
		return nil, nil
	}
	evts, err := s.Tracker.Track(ctx, shipping.TrackReq{
		Courier:        ord.CourierName,
		TrackingNumber: *ord.TrackingNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("track shipment: %w", err)
	}
	return evts, nil
}
