package promo

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store defines the persistence operations required by the promo service.
type Store interface {
	GetPromoByCode(ctx context.Context, code string) (Promo, error)
	SetCartPromo(ctx context.Context, cartID string, code *string) error
}

// ApplyResult is the structured outcome of an apply attempt. Validation
// failures are reported here, never as errors.
type ApplyResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
	Discount int64  `json:"discount"`
}

// Service validates promo codes and tracks the single applied promo per cart.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Apply looks up the code case-insensitively, validates it and stores it as
// the cart's applied promo, replacing any prior one. Applying the same code
// twice leaves the cart in the same state as applying it once.
func (s *Service) Apply(ctx context.Context, cartID, code string, items []Item) (ApplyResult, error) {
	if s == nil || s.Store == nil {
		return ApplyResult{}, errors.New("promo service not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ApplyResult{Message: "promo code is required"}, nil
	}
	p, err := s.Store.GetPromoByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ApplyResult{Message: ErrNotFound.Error()}, nil
		}
		return ApplyResult{}, err
	}
	if err := p.Validate(s.now()); err != nil {
		return ApplyResult{Message: err.Error()}, nil
	}
	if err := s.Store.SetCartPromo(ctx, cartID, &p.Code); err != nil {
		return ApplyResult{}, err
	}
	// A promo with no matching items is valid but inert for this cart.
	discount := Discount(ApplicableSubtotal(items, p), p)
	return ApplyResult{Success: true, Message: "promo applied", Code: p.Code, Discount: discount}, nil
}

// Remove clears the applied promo unconditionally.
func (s *Service) Remove(ctx context.Context, cartID string) error {
	if s == nil || s.Store == nil {
		return errors.New("promo service not configured")
	}
	return s.Store.SetCartPromo(ctx, cartID, nil)
}

// Evaluate recomputes the discount for an already-applied code without
// mutating state. Codes that fail validation contribute no discount.
func (s *Service) Evaluate(ctx context.Context, code string, items []Item) (int64, error) {
	if s == nil || s.Store == nil {
		return 0, errors.New("promo service not configured")
	}
	p, err := s.Store.GetPromoByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if err := p.Validate(s.now()); err != nil {
		return 0, nil
	}
	return Discount(ApplicableSubtotal(items, p), p), nil
}
