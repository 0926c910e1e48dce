package shipping

import (
	"context"
	"time"
)

// MockProvider returns static Indonesian couriers and rates. Useful for
// development and tests.
type MockProvider struct{}

func minSpend(v int64) *int64 { return &v }

// Couriers returns canned carriers.
func (MockProvider) Couriers(ctx context.Context) ([]Courier, error) {
	_ = ctx
	return []Courier{
		{ID: "jne", Name: "JNE"},
		{ID: "tiki", Name: "TIKI", Discount: &CourierDiscount{Kind: DiscountPercentage, Value: 50, MinSpend: minSpend(200_000), Active: true}},
		{ID: "sicepat", Name: "SiCepat", Discount: &CourierDiscount{Kind: DiscountFree, MinSpend: minSpend(500_000), Active: true}},
	}, nil
}

// Packages returns canned rates regardless of the courier.
func (MockProvider) Packages(ctx context.Context, courierID string) ([]Package, error) {
	_ = ctx
	return []Package{
		{ID: courierID + "-reg", Name: "REG", Cost: 20_000, ETD: "2-3 hari", Courier: courierID},
		{ID: courierID + "-yes", Name: "YES", Cost: 40_000, ETD: "1 hari", Courier: courierID},
	}, nil
}

// MockTracker returns a fixed delivered-style event trail.
type MockTracker struct{}

// Track fabricates a plausible event sequence for the tracking number.
func (MockTracker) Track(ctx context.Context, req TrackReq) ([]TrackEvent, error) {
	_ = ctx
	now := time.Now()
	return []TrackEvent{
		{Status: "PICKED_UP", Description: "Paket telah dijemput kurir", Location: "Jakarta", OccurredAt: now.Add(-48 * time.Hour).Unix()},
		{Status: "IN_TRANSIT", Description: "Paket dalam perjalanan", Location: "Bandung", OccurredAt: now.Add(-24 * time.Hour).Unix()},
		{Status: "OUT_FOR_DELIVERY", Description: "Paket sedang diantar", Location: req.Courier, OccurredAt: now.Unix()},
	}, nil
}
