package shipping

import "context"

// Provider models a courier aggregator capable of listing carriers and
// quoting their packages. Package quotes are fetched per courier on demand.
type Provider interface {
	Couriers(ctx context.Context) ([]Courier, error)
	Packages(ctx context.Context, courierID string) ([]Package, error)
}

// TrackReq encapsulates tracking lookup parameters for a shipment provider.
type TrackReq struct {
	Courier        string
	TrackingNumber string
}

// TrackEvent represents a single tracking event returned by a provider.
type TrackEvent struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location"`
	OccurredAt  int64  `json:"occurredAt"`
}

// Tracker models a tracking provider capable of fetching tracking events.
type Tracker interface {
	Track(ctx context.Context, req TrackReq) ([]TrackEvent, error)
}
