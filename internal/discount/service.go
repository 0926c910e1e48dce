package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lokastore/storefront-api/internal/catalog"
	"github.com/lokastore/storefront-api/internal/pricing"
)

// ErrNotFound indicates the requested discount rule does not exist.
var ErrNotFound = errors.New("discount rule not found")

// Store defines discount rule persistence.
type Store interface {
	ListActiveRules(ctx context.Context, now time.Time) ([]pricing.Rule, error)
	ListRules(ctx context.Context) ([]pricing.Rule, error)
	CreateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error)
	UpdateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

// Service serves the active discount rule snapshot used by price resolution.
// The snapshot is cached briefly so every product list render does not hit
// the database.
type Service struct {
	Store Store
	Cache *catalog.Cache
	Now   func() time.Time
}

const activeRulesCacheKey = "discount:rules:active"

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ActiveRules implements catalog.RuleSource.
func (s *Service) ActiveRules(ctx context.Context) ([]pricing.Rule, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("discount service not configured")
	}
	if s.Cache != nil {
		var cached []pricing.Rule
		ok, err := s.Cache.GetJSON(ctx, activeRulesCacheKey, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	rules, err := s.Store.ListActiveRules(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	if s.Cache != nil {
		_ = s.Cache.SetJSON(ctx, activeRulesCacheKey, rules)
	}
	return rules, nil
}

// ListRules returns every rule, active or not, for the admin surface.
func (s *Service) ListRules(ctx context.Context) ([]pricing.Rule, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("discount service not configured")
	}
	return s.Store.ListRules(ctx)
}

// CreateRule persists a rule and drops the cached snapshots so the next
// price resolution sees it.
func (s *Service) CreateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error) {
	if s == nil || s.Store == nil {
		return pricing.Rule{}, errors.New("discount service not configured")
	}
	created, err := s.Store.CreateRule(ctx, rule)
	if err != nil {
		return pricing.Rule{}, err
	}
	s.invalidate(ctx)
	return created, nil
}

// UpdateRule persists changes to a rule and drops the cached snapshots.
func (s *Service) UpdateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error) {
	if s == nil || s.Store == nil {
		return pricing.Rule{}, errors.New("discount service not configured")
	}
	updated, err := s.Store.UpdateRule(ctx, rule)
	if err != nil {
		return pricing.Rule{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// DeleteRule removes a rule and drops the cached snapshots.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	if s == nil || s.Store == nil {
		return errors.New("discount service not configured")
	}
	if err := s.Store.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate drops the active-rule snapshot together with the cached
// popular product listing, whose effective prices depend on it.
func (s *Service) invalidate(ctx context.Context) {
	_ = s.Cache.Delete(ctx, activeRulesCacheKey, catalog.PopularListKey)
}
