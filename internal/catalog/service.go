package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/pricing"
)

// ErrNotFound indicates the requested product could not be located.
var ErrNotFound = errors.New("product not found")

// PopularListKey caches the default unfiltered product listing; anything
// that changes effective prices must drop it.
const PopularListKey = "catalog:products:list:popular"

// Product is the catalog's immutable reference data for one sellable item.
type Product struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	CategoryID   uuid.UUID `json:"categoryId"`
	CategorySlug string    `json:"categorySlug,omitempty"`
	BasePrice    int64     `json:"basePrice"`
	Active       bool      `json:"active"`
	Bundle       *Bundle   `json:"bundle,omitempty"`
}

// Bundle is a fixed-price grouping of member products sold as one line.
type Bundle struct {
	Price int64        `json:"price"`
	Items []BundleItem `json:"items"`
}

// BundleItem names one member slot of a bundle.
type BundleItem struct {
	ProductID uuid.UUID `json:"productId"`
	Slot      string    `json:"slot"`
}

// Category represents the public category payload.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// Store defines catalog persistence operations.
type Store interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
}

// RuleSource provides the active discount rules snapshot.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]pricing.Rule, error)
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Sort     string
	Page     int
	Limit    int
}

// ListedProduct is a catalog entry with its resolved live price.
type ListedProduct struct {
	Product
	Price           int64 `json:"price"`
	DiscountApplied bool  `json:"discountApplied"`
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []ListedProduct
	Total int64
	Page  int
	Limit int
}

// Service orchestrates catalog queries, live pricing, and caching.
type Service struct {
	store        Store
	rules        RuleSource
	cache        *Cache
	defaultPage  int
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Rules        RuleSource
	Cache        *Cache
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        cfg.Store,
		rules:        cfg.Rules,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          now,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit
	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// ListCategories returns all categories sorted by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// ListProducts returns the filtered product list with live prices and
// pagination metadata.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ListResult, error) {
	key, shouldUseCache := s.listCacheKey(params)
	if shouldUseCache && s.cache != nil {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return ListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}
	products, total, err := s.store.ListProducts(ctx, params)
	if err != nil {
		return ListResult{}, fmt.Errorf("list products: %w", err)
	}
	rules, err := s.activeRules(ctx)
	if err != nil {
		return ListResult{}, err
	}
	now := s.now()
	items := make([]ListedProduct, 0, len(products))
	for _, p := range products {
		items = append(items, s.priced(p, rules, now))
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if shouldUseCache && s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return result, nil
}

// GetProductDetail returns a product with its resolved live price.
func (s *Service) GetProductDetail(ctx context.Context, slug string) (ListedProduct, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ListedProduct{}, badRequest("slug", "slug is required", nil)
	}
	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ListedProduct{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: err}
		}
		return ListedProduct{}, fmt.Errorf("get product by slug: %w", err)
	}
	rules, err := s.activeRules(ctx)
	if err != nil {
		return ListedProduct{}, err
	}
	return s.priced(product, rules, s.now()), nil
}

// GetProduct looks up a product by ID for cart expansion. Callers treat a
// not-found result as a recoverable catalog/cart desync.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.store.GetProduct(ctx, id)
}

// GetProducts resolves several products at once, omitting missing IDs.
func (s *Service) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error) {
	return s.store.GetProducts(ctx, ids)
}

func (s *Service) activeRules(ctx context.Context) ([]pricing.Rule, error) {
	if s.rules == nil {
		return nil, nil
	}
	rules, err := s.rules.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load discount rules: %w", err)
	}
	return rules, nil
}

func (s *Service) priced(p Product, rules []pricing.Rule, now time.Time) ListedProduct {
	quote := pricing.Resolve(pricing.Product{ID: p.ID, CategoryID: p.CategoryID, BasePrice: p.BasePrice}, rules, now)
	return ListedProduct{Product: p, Price: quote.FinalPrice, DiscountApplied: quote.DiscountApplied}
}

type cachedList struct {
	Items []ListedProduct `json:"items"`
	Total int64           `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != s.defaultPage || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" || params.Sort != "" {
		return "", false
	}
	return PopularListKey, true
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "price:asc", "price:desc", "title:asc", "title:desc":
		return s
	default:
		return ""
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
