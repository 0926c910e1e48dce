package promo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/pricing"
)

// AdminStore extends Store with management operations.
type AdminStore interface {
	Store
	CreatePromo(ctx context.Context, p Promo) (Promo, error)
	UpdatePromo(ctx context.Context, p Promo) (Promo, error)
	ListPromos(ctx context.Context) ([]Promo, error)
}

// Handler exposes administrative promo management endpoints.
type Handler struct {
	Store    AdminStore
	Svc      *Service
	Validate *validator.Validate
}

type promoPayload struct {
	Code      string     `json:"code" validate:"required,min=3,max=32"`
	Scope     string     `json:"scope" validate:"required,oneof=all category product"`
	TargetID  *string    `json:"targetId" validate:"omitempty,uuid"`
	Kind      string     `json:"kind" validate:"required,oneof=percentage fixed"`
	Value     int64      `json:"value" validate:"required,gt=0"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Active    *bool      `json:"active"`
}

type previewRequest struct {
	Code     string        `json:"code"`
	Subtotal int64         `json:"subtotal"`
	Items    []previewItem `json:"items"`
}

type previewItem struct {
	ProductID  string `json:"productId"`
	CategoryID string `json:"categoryId"`
	Bundle     bool   `json:"bundle"`
	Subtotal   int64  `json:"subtotal"`
}

// Create inserts a new promo code rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	p, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	created, err := h.Store.CreatePromo(r.Context(), p)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "promo code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create promo", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing promo identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	p, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	p.Code = code
	updated, err := h.Store.UpdatePromo(r.Context(), p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promo not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update promo", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// List returns all promo rules.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	promos, err := h.Store.ListPromos(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list promos", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promos})
}

// Preview returns the simulated discount for a code without persisting state.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		item := Item{Bundle: it.Bundle, Subtotal: it.Subtotal}
		if id, err := uuid.Parse(strings.TrimSpace(it.ProductID)); err == nil {
			item.ProductID = id
		}
		if id, err := uuid.Parse(strings.TrimSpace(it.CategoryID)); err == nil {
			item.CategoryID = id
		}
		items = append(items, item)
	}
	discount, err := h.Svc.Evaluate(r.Context(), req.Code, items)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to evaluate promo", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"discount": discount}})
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (Promo, bool) {
	var payload promoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Promo{}, false
	}
	v := h.Validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promo payload", validationDetails(err))
		return Promo{}, false
	}
	// Percentage values are bounded here, at creation time; the engine never
	// clamps at compute time.
	if payload.Kind == string(pricing.KindPercentage) && payload.Value > 100 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "percentage value must be between 1 and 100", nil)
		return Promo{}, false
	}
	scope := pricing.Scope(payload.Scope)
	if scope != pricing.ScopeAll && payload.TargetID == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "targetId is required for scoped promos", nil)
		return Promo{}, false
	}
	p := Promo{
		Code:      strings.TrimSpace(payload.Code),
		Scope:     scope,
		Kind:      pricing.Kind(payload.Kind),
		Value:     payload.Value,
		ExpiresAt: payload.ExpiresAt,
		Active:    true,
	}
	if payload.Active != nil {
		p.Active = *payload.Active
	}
	if payload.TargetID != nil {
		id, err := uuid.Parse(strings.TrimSpace(*payload.TargetID))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid targetId", nil)
			return Promo{}, false
		}
		p.TargetID = id
	}
	return p, true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return map[string]any{"fields": fields}
}
