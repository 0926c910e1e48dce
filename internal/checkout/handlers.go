package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/cart"
	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/obs"
)

type Handler struct {
	Svc *Service
}

// Quote returns the live price breakdown for a cart without creating an
// order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	cartID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("cartId")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	summary, lines, err := h.Svc.Quote(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"pricing": summary,
			"items":   lines,
		},
	})
}

// Checkout creates an order from the cart's current state.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.Create(r.Context(), &userID, payload)
	if err != nil {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues("rejected").Inc()
		}
		h.writeError(w, err)
		return
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("created").Inc()
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrCartEmpty),
		errors.Is(err, ErrNoShippingChoice),
		errors.Is(err, ErrNoAddress):
		common.JSONError(w, http.StatusUnprocessableEntity, "CHECKOUT_BLOCKED", err.Error(), nil)
	case errors.Is(err, ErrCartOwnerMismatch):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	}
}
