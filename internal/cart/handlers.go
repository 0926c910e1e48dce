package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/obs"
	"github.com/lokastore/storefront-api/internal/promo"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc    *Service
	Promos *promo.Service
}

// Create creates or returns a guest cart identifier.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	anonID := strings.TrimSpace(payload.AnonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	var userID *string
	if uid, ok := common.UserID(r.Context()); ok {
		userID = &uid
	}
	cart, err := h.Svc.EnsureCart(r.Context(), userID, &anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"cartId": cart.ID.String(),
			"anonId": anonID,
			"promo":  cart.PromoCode,
		},
	})
}

// Get returns the expanded cart with live prices and the current subtotal.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	cart, err := h.Svc.Get(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	lines, err := h.Svc.Store.ListLines(r.Context(), cartID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart lines", nil)
		return
	}
	priced, err := h.Svc.Expand(r.Context(), lines)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to expand cart", nil)
		return
	}
	subtotal := Subtotal(priced)
	var discount int64
	if cart.PromoCode != nil && h.Promos != nil {
		discount, _ = h.Promos.Evaluate(r.Context(), *cart.PromoCode, PromoItems(priced))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":                cart.ID.String(),
			"anonId":            cart.AnonID,
			"promo":             cart.PromoCode,
			"shippingPackageId": cart.ShippingPackageID,
			"items":             priced,
			"subtotal":          subtotal,
			"promoDiscount":     discount,
		},
	})
}

// AddItem appends a product or bundle line to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Kind       string            `json:"kind"`
		ProductID  string            `json:"productId"`
		Selections map[string]string `json:"selections"`
		Qty        int               `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	productID, err := uuid.Parse(strings.TrimSpace(payload.ProductID))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	switch LineKind(payload.Kind) {
	case KindBundle:
		err = h.Svc.AddBundle(r.Context(), cartID, productID, payload.Selections, payload.Qty)
	case KindProduct, "":
		err = h.Svc.AddProduct(r.Context(), cartID, productID, payload.Qty)
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "kind must be product or bundle", nil)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"cartId": cartID.String()}})
}

// UpdateItem changes a line quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "lineId")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
		return
	}
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), cartID, lineID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"lineId": lineID.String(), "qty": payload.Qty}})
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "lineId")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
		return
	}
	if err := h.Svc.RemoveLine(r.Context(), cartID, lineID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": lineID.String()}})
}

// SelectShipping stores the chosen shipping package.
func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		PackageID *string `json:"packageId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Svc.SelectShipping(r.Context(), cartID, payload.PackageID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"packageId": payload.PackageID}})
}

// ApplyPromo validates a promo code against the current cart contents.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Promos == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	code := strings.TrimSpace(payload.Code)
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "promo code is required", nil)
		return
	}
	if _, err := h.Svc.Get(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	lines, err := h.Svc.Store.ListLines(r.Context(), cartID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart lines", nil)
		return
	}
	priced, err := h.Svc.Expand(r.Context(), lines)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to expand cart", nil)
		return
	}
	result, err := h.Promos.Apply(r.Context(), cartID.String(), code, PromoItems(priced))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to apply promo", nil)
		return
	}
	if obs.PromoApplyTotal != nil {
		outcome := "rejected"
		if result.Success {
			outcome = "applied"
		}
		obs.PromoApplyTotal.WithLabelValues(outcome).Inc()
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	common.JSON(w, status, map[string]any{"data": result})
}

// RemovePromo clears the applied promo unconditionally.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	if h.Promos == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if err := h.Promos.Remove(r.Context(), cartID.String()); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to remove promo", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": nil})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
