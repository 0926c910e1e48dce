package discount

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/pricing"
)

// Handler exposes administrative discount rule endpoints. Mutations go
// through the service so cached rule snapshots are invalidated.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type rulePayload struct {
	Scope    string     `json:"scope" validate:"required,oneof=all category product"`
	TargetID *string    `json:"targetId" validate:"omitempty,uuid"`
	Kind     string     `json:"kind" validate:"required,oneof=percentage fixed"`
	Value    int64      `json:"value" validate:"required,gt=0"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
	Active   *bool      `json:"active"`
}

// List returns every discount rule.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	rules, err := h.Svc.ListRules(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list rules", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rules})
}

// Create inserts a new discount rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	rule, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.CreateRule(r.Context(), rule)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create rule", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing rule by ID.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rule id", nil)
		return
	}
	rule, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	rule.ID = id
	updated, err := h.Svc.UpdateRule(r.Context(), rule)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "rule not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update rule", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// Delete removes a rule by ID.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "discount service not configured", nil)
		return
	}
	if err := h.Svc.DeleteRule(r.Context(), strings.TrimSpace(chi.URLParam(r, "id"))); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "rule not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete rule", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (pricing.Rule, bool) {
	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return pricing.Rule{}, false
	}
	v := h.Validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rule payload", nil)
		return pricing.Rule{}, false
	}
	// Percentage bounds are a creation-time invariant; price resolution never
	// clamps.
	if payload.Kind == string(pricing.KindPercentage) && payload.Value > 100 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "percentage value must be between 1 and 100", nil)
		return pricing.Rule{}, false
	}
	scope := pricing.Scope(payload.Scope)
	if scope != pricing.ScopeAll && payload.TargetID == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "targetId is required for scoped rules", nil)
		return pricing.Rule{}, false
	}
	if payload.StartsAt != nil && payload.EndsAt != nil && payload.EndsAt.Before(*payload.StartsAt) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "endsAt must not precede startsAt", nil)
		return pricing.Rule{}, false
	}
	rule := pricing.Rule{
		Scope:    scope,
		Kind:     pricing.Kind(payload.Kind),
		Value:    payload.Value,
		StartsAt: payload.StartsAt,
		EndsAt:   payload.EndsAt,
		Active:   true,
	}
	if payload.Active != nil {
		rule.Active = *payload.Active
	}
	if payload.TargetID != nil {
		id, err := uuid.Parse(strings.TrimSpace(*payload.TargetID))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid targetId", nil)
			return pricing.Rule{}, false
		}
		rule.TargetID = id
	}
	return rule, true
}
