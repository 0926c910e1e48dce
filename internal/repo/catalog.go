package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/catalog"
)

// CatalogRepo serves catalog reads from Postgres.
type CatalogRepo struct {
	Pool *pgxpool.Pool
}

// ListCategories returns all categories ordered by name.
func (r CatalogRepo) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, name, slug
		FROM categories
		ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListProducts returns active products matching the filters plus the total
// count before pagination.
func (r CatalogRepo) ListProducts(ctx context.Context, params catalog.ListParams) ([]catalog.Product, int64, error) {
	where := `WHERE p.active`
	args := []any{}
	if params.Query != "" {
		args = append(args, "%"+params.Query+"%")
		where += fmt.Sprintf(" AND p.title ILIKE $%d", len(args))
	}
	if params.Category != "" {
		args = append(args, params.Category)
		where += fmt.Sprintf(" AND c.slug = $%d", len(args))
	}

	var total int64
	countSQL := `SELECT COUNT(*) FROM products p LEFT JOIN categories c ON c.id = p.category_id ` + where
	if err := r.Pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "p.created_at DESC"
	switch params.Sort {
	case "price:asc":
		order = "p.base_price ASC"
	case "price:desc":
		order = "p.base_price DESC"
	case "title:asc":
		order = "p.title ASC"
	case "title:desc":
		order = "p.title DESC"
	}

	limit := params.Limit
	if limit < 1 {
		limit = 20
	}
	offset := (params.Page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	listSQL := fmt.Sprintf(`
		SELECT p.id, p.title, p.slug, p.category_id, COALESCE(c.slug, ''), p.base_price, p.active, p.bundle
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, where, order, len(args)-1, len(args))

	rows, err := r.Pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// GetProductBySlug loads one active product.
func (r CatalogRepo) GetProductBySlug(ctx context.Context, slug string) (catalog.Product, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT p.id, p.title, p.slug, p.category_id, COALESCE(c.slug, ''), p.base_price, p.active, p.bundle
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.slug = $1 AND p.active`, slug)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, err
	}
	return p, nil
}

// GetProduct loads one product by ID regardless of active flag, so existing
// cart lines keep resolving while a product is toggled off.
func (r CatalogRepo) GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT p.id, p.title, p.slug, p.category_id, COALESCE(c.slug, ''), p.base_price, p.active, p.bundle
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`, pgUUID(id))
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, err
	}
	return p, nil
}

// GetProducts resolves several products at once, omitting missing IDs.
func (r CatalogRepo) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := make(map[uuid.UUID]catalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.Pool.Query(ctx, `
		SELECT p.id, p.title, p.slug, p.category_id, COALESCE(c.slug, ''), p.base_price, p.active, p.bundle
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	var bundleRaw []byte
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.CategoryID, &p.CategorySlug, &p.BasePrice, &p.Active, &bundleRaw); err != nil {
		return catalog.Product{}, err
	}
	if len(bundleRaw) > 0 {
		var b catalog.Bundle
		if err := json.Unmarshal(bundleRaw, &b); err != nil {
			return catalog.Product{}, fmt.Errorf("decode bundle: %w", err)
		}
		p.Bundle = &b
	}
	return p, nil
}
