package discount

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lokastore/storefront-api/internal/catalog"
	"github.com/lokastore/storefront-api/internal/pricing"
)

type stubRuleStore struct {
	rules []pricing.Rule
	calls int
}

func (s *stubRuleStore) ListActiveRules(ctx context.Context, now time.Time) ([]pricing.Rule, error) {
	s.calls++
	return s.rules, nil
}

func (s *stubRuleStore) ListRules(ctx context.Context) ([]pricing.Rule, error) { return s.rules, nil }

func (s *stubRuleStore) CreateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error) {
	rule.ID = uuid.New()
	s.rules = append(s.rules, rule)
	return rule, nil
}

func (s *stubRuleStore) UpdateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error) {
	return rule, nil
}

func (s *stubRuleStore) DeleteRule(ctx context.Context, id string) error { return nil }

func TestActiveRulesServedFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &stubRuleStore{rules: []pricing.Rule{{
		ID:     uuid.New(),
		Scope:  pricing.ScopeAll,
		Kind:   pricing.KindPercentage,
		Value:  10,
		Active: true,
	}}}
	svc := &Service{Store: store, Cache: catalog.NewCache(client, time.Minute)}

	ctx := context.Background()
	first, err := svc.ActiveRules(ctx)
	if err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(first))
	}
	second, err := svc.ActiveRules(ctx)
	if err != nil {
		t.Fatalf("ActiveRules cached: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected 1 cached rule, got %d", len(second))
	}
	if store.calls != 1 {
		t.Fatalf("expected one store hit, got %d", store.calls)
	}
}

func TestRuleMutationsInvalidateCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &stubRuleStore{}
	svc := &Service{Store: store, Cache: catalog.NewCache(client, time.Minute)}

	ctx := context.Background()
	if _, err := svc.ActiveRules(ctx); err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one store hit after warmup, got %d", store.calls)
	}
	mr.Set(catalog.PopularListKey, `{"items":[],"total":0}`)

	created, err := svc.CreateRule(ctx, pricing.Rule{
		Scope:  pricing.ScopeAll,
		Kind:   pricing.KindPercentage,
		Value:  10,
		Active: true,
	})
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if mr.Exists(catalog.PopularListKey) {
		t.Fatal("expected popular listing cache to be dropped")
	}
	rules, err := svc.ActiveRules(ctx)
	if err != nil {
		t.Fatalf("ActiveRules after create: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected snapshot to be rebuilt from the store, got %d hits", store.calls)
	}
	if len(rules) != 1 || rules[0].ID != created.ID {
		t.Fatalf("expected the new rule in the snapshot, got %+v", rules)
	}

	if _, err := svc.UpdateRule(ctx, created); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if _, err := svc.ActiveRules(ctx); err != nil {
		t.Fatalf("ActiveRules after update: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected update to drop the snapshot, got %d hits", store.calls)
	}

	if err := svc.DeleteRule(ctx, created.ID.String()); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if _, err := svc.ActiveRules(ctx); err != nil {
		t.Fatalf("ActiveRules after delete: %v", err)
	}
	if store.calls != 4 {
		t.Fatalf("expected delete to drop the snapshot, got %d hits", store.calls)
	}
}

func TestActiveRulesWithoutCache(t *testing.T) {
	store := &stubRuleStore{}
	svc := &Service{Store: store}

	ctx := context.Background()
	if _, err := svc.ActiveRules(ctx); err != nil {
		t.Fatalf("ActiveRules: %v", err)
	}
	if _, err := svc.ActiveRules(ctx); err != nil {
		t.Fatalf("ActiveRules second call: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected every call to hit the store, got %d", store.calls)
	}
}

func TestActiveRulesNotConfigured(t *testing.T) {
	var svc *Service
	if _, err := svc.ActiveRules(context.Background()); err == nil {
		t.Fatal("expected error from nil service")
	}
}
