package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/promo"
)

// PromoRepo persists promo codes and the cart's applied promo.
type PromoRepo struct {
	Pool *pgxpool.Pool
}

const promoColumns = `id, code, scope, target_id, kind, value, expires_at, active`

// GetPromoByCode looks a promo up case-insensitively.
func (r PromoRepo) GetPromoByCode(ctx context.Context, code string) (promo.Promo, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT `+promoColumns+`
		FROM promos
		WHERE UPPER(code) = UPPER($1)`, code)
	p, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promo.Promo{}, promo.ErrNotFound
		}
		return promo.Promo{}, err
	}
	return p, nil
}

// SetCartPromo stores or clears the single applied promo on a cart.
func (r PromoRepo) SetCartPromo(ctx context.Context, cartID string, code *string) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE carts SET promo_code = $2, updated_at = now()
		WHERE id = $1`, cartID, pgText(code))
	return err
}

// CreatePromo inserts a promo code rule.
func (r PromoRepo) CreatePromo(ctx context.Context, p promo.Promo) (promo.Promo, error) {
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO promos (code, scope, target_id, kind, value, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+promoColumns,
		p.Code, p.Scope, p.TargetID, p.Kind, p.Value, p.ExpiresAt, p.Active)
	return scanPromo(row)
}

// UpdatePromo mutates an existing promo by ID.
func (r PromoRepo) UpdatePromo(ctx context.Context, p promo.Promo) (promo.Promo, error) {
	row := r.Pool.QueryRow(ctx, `
		UPDATE promos
		SET code = $2, scope = $3, target_id = $4, kind = $5, value = $6, expires_at = $7, active = $8
		WHERE id = $1
		RETURNING `+promoColumns,
		p.ID, p.Code, p.Scope, p.TargetID, p.Kind, p.Value, p.ExpiresAt, p.Active)
	out, err := scanPromo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promo.Promo{}, promo.ErrNotFound
		}
		return promo.Promo{}, err
	}
	return out, nil
}

// ListPromos returns every promo for administration.
func (r PromoRepo) ListPromos(ctx context.Context) ([]promo.Promo, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+promoColumns+`
		FROM promos
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []promo.Promo
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPromo(row pgx.Row) (promo.Promo, error) {
	var p promo.Promo
	if err := row.Scan(&p.ID, &p.Code, &p.Scope, &p.TargetID, &p.Kind, &p.Value, &p.ExpiresAt, &p.Active); err != nil {
		return promo.Promo{}, err
	}
	return p, nil
}
