package order

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/shipping"
)

type memOrderStore struct {
	orders map[uuid.UUID]*Order
	lines  map[uuid.UUID][]Line
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: map[uuid.UUID]*Order{}, lines: map[uuid.UUID][]Line{}}
}

func (m *memOrderStore) ListOrdersForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrderStore) CountOrdersForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	for _, o := range m.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memOrderStore) GetOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (Order, error) {
	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

func (m *memOrderStore) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]Line, error) {
	return m.lines[orderID], nil
}

func (m *memOrderStore) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

type stubTracker struct {
	lastReq shipping.TrackReq
	events  []shipping.TrackEvent
}

func (s *stubTracker) Track(ctx context.Context, req shipping.TrackReq) ([]shipping.TrackEvent, error) {
	s.lastReq = req
	return s.events, nil
}

func TestCancelGuardsStatus(t *testing.T) {
	store := newMemOrderStore()
	userID := uuid.New()
	cancelable := uuid.New()
	shipped := uuid.New()
	store.orders[cancelable] = &Order{ID: cancelable, UserID: userID, Status: StatusNew}
	store.orders[shipped] = &Order{ID: shipped, UserID: userID, Status: StatusShipped}

	svc := &Service{Store: store}
	if err := svc.Cancel(context.Background(), cancelable, userID); err != nil {
		t.Fatalf("Cancel NEW: %v", err)
	}
	if store.orders[cancelable].Status != StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", store.orders[cancelable].Status)
	}
	if err := svc.Cancel(context.Background(), shipped, userID); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("expected ErrNotCancelable for shipped order, got %v", err)
	}
}

func TestGetScopedToUser(t *testing.T) {
	store := newMemOrderStore()
	owner := uuid.New()
	orderID := uuid.New()
	store.orders[orderID] = &Order{ID: orderID, UserID: owner, Status: StatusNew}

	svc := &Service{Store: store}
	if _, _, err := svc.Get(context.Background(), orderID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected foreign order to read as not found, got %v", err)
	}
	if _, _, err := svc.Get(context.Background(), orderID, owner); err != nil {
		t.Fatalf("Get owner: %v", err)
	}
}

func TestTrackUsesStoredTrackingNumber(t *testing.T) {
	store := newMemOrderStore()
	userID := uuid.New()
	orderID := uuid.New()
	tracking := "JNE123456"
	store.orders[orderID] = &Order{
		ID:             orderID,
		UserID:         userID,
		Status:         StatusShipped,
		CourierName:    "jne",
		TrackingNumber: &tracking,
	}
	tracker := &stubTracker{events: []shipping.TrackEvent{{Status: "IN_TRANSIT", Description: "Paket dalam perjalanan"}}}

	svc := &Service{Store: store, Tracker: tracker}
	evts, err := svc.Track(context.Background(), orderID, userID)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if len(evts) != 1 {
		t.Fatalf("expected 1 tracking event, got %d", len(evts))
	}
	if tracker.lastReq.Courier != "jne" || tracker.lastReq.TrackingNumber != tracking {
		t.Fatalf("unexpected track request: %+v", tracker.lastReq)
	}
}

func TestTrackWithoutTrackingNumberReturnsNothing(t *testing.T) {
	store := newMemOrderStore()
	userID := uuid.New()
	orderID := uuid.New()
	store.orders[orderID] = &Order{ID: orderID, UserID: userID, Status: StatusProcessing}

	svc := &Service{Store: store, Tracker: &stubTracker{}}
	evts, err := svc.Track(context.Background(), orderID, userID)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if evts != nil {
		t.Fatalf("expected no events before shipment, got %v", evts)
	}
}
