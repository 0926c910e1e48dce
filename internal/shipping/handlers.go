package shipping

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/obs"
)

// Handler exposes courier and rate lookup endpoints.
type Handler struct {
	Svc *Service
}

// Couriers lists available carriers with their discounts.
func (h *Handler) Couriers(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping service not configured", nil)
		return
	}
	couriers, err := h.Svc.Couriers(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "SHIPPING_ERROR", "failed to fetch couriers", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": couriers})
}

// Packages lists the rate options for one courier.
func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping service not configured", nil)
		return
	}
	courierID := strings.TrimSpace(chi.URLParam(r, "courierId"))
	if courierID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "courierId is required", nil)
		return
	}
	packages, err := h.Svc.Packages(r.Context(), courierID)
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "SHIPPING_ERROR", "failed to fetch rates", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": packages})
}

// Quote returns the discounted cost of a package for a given subtotal.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping service not configured", nil)
		return
	}
	packageID := strings.TrimSpace(r.URL.Query().Get("packageId"))
	if packageID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "packageId is required", nil)
		return
	}
	subtotal := common.ParseInt64(r.URL.Query().Get("subtotal"), 0)
	pkg, courier, err := h.Svc.FindPackage(r.Context(), packageID)
	if err != nil {
		if obs.ShippingQuoteTotal != nil {
			obs.ShippingQuoteTotal.WithLabelValues("unknown", "error").Inc()
		}
		if errors.Is(err, ErrPackageNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shipping package not found", nil)
			return
		}
		common.JSONError(w, http.StatusBadGateway, "SHIPPING_ERROR", "failed to quote shipping", nil)
		return
	}
	cost := Fee(pkg, courier, subtotal)
	if obs.ShippingQuoteTotal != nil {
		obs.ShippingQuoteTotal.WithLabelValues(pkg.Courier, "ok").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"packageId": packageID, "cost": cost}})
}
