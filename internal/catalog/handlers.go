package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lokastore/storefront-api/internal/common"
)

// Handler wires catalog services to HTTP.
type Handler struct {
	Svc *Service
}

// Categories returns all product categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	cats, err := h.Svc.ListCategories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list categories", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cats})
}

// Products returns the filtered, paginated product list with live prices.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	params, err := h.Svc.ParseListParams(r.URL.Query())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	result, err := h.Svc.ListProducts(r.Context(), params)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": result.Items,
		"meta": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)},
	})
}

// ProductDetail returns a single product by slug.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	detail, err := h.Svc.GetProductDetail(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}

func writeCatalogError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog error", nil)
}
