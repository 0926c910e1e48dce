package promo

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lokastore/storefront-api/internal/pricing"
)

type stubStore struct {
	promos  map[string]Promo
	applied map[string]*string
}

func newStubStore(promos ...Promo) *stubStore {
	s := &stubStore{promos: map[string]Promo{}, applied: map[string]*string{}}
	for _, p := range promos {
		s.promos[strings.ToLower(p.Code)] = p
	}
	return s
}

func (s *stubStore) GetPromoByCode(_ context.Context, code string) (Promo, error) {
	p, ok := s.promos[strings.ToLower(code)]
	if !ok {
		return Promo{}, ErrNotFound
	}
	return p, nil
}

func (s *stubStore) SetCartPromo(_ context.Context, cartID string, code *string) error {
	s.applied[cartID] = code
	return nil
}

func TestApplyNotFound(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	res, err := svc.Apply(context.Background(), "cart-1", "NADA", nil)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, ErrNotFound.Error(), res.Message)
}

func TestApplyExpiredLeavesCartUntouched(t *testing.T) {
	expired := time.Now().Add(-48 * time.Hour)
	store := newStubStore(Promo{Code: "LAMA", Active: true, ExpiresAt: &expired, Kind: pricing.KindFixed, Value: 1000, Scope: pricing.ScopeAll})
	svc := &Service{Store: store}
	res, err := svc.Apply(context.Background(), "cart-1", "lama", nil)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, ErrExpired.Error(), res.Message)
	_, touched := store.applied["cart-1"]
	require.False(t, touched, "failed apply must not change applied promo")
}

func TestApplyCaseInsensitiveAndIdempotent(t *testing.T) {
	store := newStubStore(Promo{Code: "HEMAT10", Active: true, Kind: pricing.KindPercentage, Value: 10, Scope: pricing.ScopeAll})
	svc := &Service{Store: store}
	items := []Item{{Subtotal: 300_000}}

	first, err := svc.Apply(context.Background(), "cart-1", "hemat10", items)
	require.NoError(t, err)
	require.True(t, first.Success)
	require.Equal(t, int64(30_000), first.Discount)

	second, err := svc.Apply(context.Background(), "cart-1", "HEMAT10", items)
	require.NoError(t, err)
	require.Equal(t, first.Code, second.Code)
	require.Equal(t, first.Discount, second.Discount)
	require.NotNil(t, store.applied["cart-1"])
	require.Equal(t, "HEMAT10", *store.applied["cart-1"])
}

func TestApplyValidButInertForCart(t *testing.T) {
	store := newStubStore(Promo{Code: "KATX", Active: true, Kind: pricing.KindPercentage, Value: 20, Scope: pricing.ScopeCategory, TargetID: catX})
	svc := &Service{Store: store}
	items := []Item{{CategoryID: catY, Subtotal: 90_000}}
	res, err := svc.Apply(context.Background(), "cart-1", "KATX", items)
	require.NoError(t, err)
	require.True(t, res.Success, "a valid code with no matching items still applies")
	require.Zero(t, res.Discount)
}

func TestRemoveClearsUnconditionally(t *testing.T) {
	store := newStubStore()
	svc := &Service{Store: store}
	require.NoError(t, svc.Remove(context.Background(), "cart-1"))
	code, ok := store.applied["cart-1"]
	require.True(t, ok)
	require.Nil(t, code)
}
