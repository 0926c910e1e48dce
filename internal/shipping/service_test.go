package shipping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingProvider struct {
	MockProvider
	packageCalls int
}

func (p *countingProvider) Packages(ctx context.Context, courierID string) ([]Package, error) {
	p.packageCalls++
	return p.MockProvider.Packages(ctx, courierID)
}

func newTestService(t *testing.T, provider Provider) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Service{Provider: provider, R: rdb, TTL: time.Minute}
}

func TestPackagesCachedPerCourier(t *testing.T) {
	provider := &countingProvider{}
	svc := newTestService(t, provider)
	ctx := context.Background()

	if _, err := svc.Packages(ctx, "jne"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := svc.Packages(ctx, "jne"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if provider.packageCalls != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.packageCalls)
	}
	if _, err := svc.Packages(ctx, "tiki"); err != nil {
		t.Fatalf("other courier: %v", err)
	}
	if provider.packageCalls != 2 {
		t.Fatalf("expected lazy fetch per courier, got %d calls", provider.packageCalls)
	}
}

func TestFindPackageReverseLookup(t *testing.T) {
	svc := newTestService(t, MockProvider{})
	pkg, courier, err := svc.FindPackage(context.Background(), "tiki-reg")
	if err != nil {
		t.Fatalf("find package: %v", err)
	}
	if courier == nil || courier.ID != "tiki" {
		t.Fatalf("expected tiki to own the package, got %+v", courier)
	}
	if pkg.Cost != 20_000 {
		t.Fatalf("unexpected package cost %d", pkg.Cost)
	}
}

func TestFindPackageUnknown(t *testing.T) {
	svc := newTestService(t, MockProvider{})
	_, _, err := svc.FindPackage(context.Background(), "nope")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
}

func TestCostAppliesCourierDiscount(t *testing.T) {
	svc := newTestService(t, MockProvider{})
	// TIKI has a 50% discount with min spend 200000.
	cost, err := svc.Cost(context.Background(), "tiki-reg", 300_000)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != 10_000 {
		t.Fatalf("expected 10000, got %d", cost)
	}
	cost, err = svc.Cost(context.Background(), "tiki-reg", 100_000)
	if err != nil {
		t.Fatalf("cost below min spend: %v", err)
	}
	if cost != 20_000 {
		t.Fatalf("expected undiscounted 20000, got %d", cost)
	}
}
