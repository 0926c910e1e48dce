package shipping

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPProvider quotes couriers and rates from a RajaOngkir-style aggregator
// API. Outbound calls are traced via the otelhttp transport.
type HTTPProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPProvider constructs a provider with a traced HTTP client.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Couriers fetches the carrier list.
func (p *HTTPProvider) Couriers(ctx context.Context) ([]Courier, error) {
	var out struct {
		Data []Courier `json:"data"`
	}
	if err := p.getJSON(ctx, "/v1/couriers", nil, &out); err != nil {
		return nil, fmt.Errorf("fetch couriers: %w", err)
	}
	return out.Data, nil
}

// Packages fetches the rate options for a single courier.
func (p *HTTPProvider) Packages(ctx context.Context, courierID string) ([]Package, error) {
	var out struct {
		Data []Package `json:"data"`
	}
	q := url.Values{"courier": {courierID}}
	if err := p.getJSON(ctx, "/v1/rates", q, &out); err != nil {
		return nil, fmt.Errorf("fetch rates for %s: %w", courierID, err)
	}
	for i := range out.Data {
		if out.Data[i].Courier == "" {
			out.Data[i].Courier = courierID
		}
	}
	return out.Data, nil
}

// Track fetches tracking events for a shipment.
func (p *HTTPProvider) Track(ctx context.Context, req TrackReq) ([]TrackEvent, error) {
	var out struct {
		Data []TrackEvent `json:"data"`
	}
	q := url.Values{"courier": {req.Courier}, "waybill": {req.TrackingNumber}}
	if err := p.getJSON(ctx, "/v1/track", q, &out); err != nil {
		return nil, fmt.Errorf("fetch tracking: %w", err)
	}
	return out.Data, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	endpoint := p.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if p.APIKey != "" {
		req.Header.Set("key", p.APIKey)
	}
	req.Header.Set("Accept", "application/json")
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
