package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/discount"
	"github.com/lokastore/storefront-api/internal/pricing"
)

// DiscountRepo persists catalog discount rules.
type DiscountRepo struct {
	Pool *pgxpool.Pool
}

const discountColumns = `id, scope, target_id, kind, value, starts_at, ends_at, active`

// ListActiveRules returns rules that are active and inside their window at
// the provided instant.
func (r DiscountRepo) ListActiveRules(ctx context.Context, now time.Time) ([]pricing.Rule, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+discountColumns+`
		FROM discount_rules
		WHERE active
		  AND (starts_at IS NULL OR starts_at <= $1)
		  AND (ends_at IS NULL OR ends_at >= $1)
		ORDER BY created_at`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListRules returns every rule for administration.
func (r DiscountRepo) ListRules(ctx context.Context) ([]pricing.Rule, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+discountColumns+`
		FROM discount_rules
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// CreateRule inserts a rule.
func (r DiscountRepo) CreateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error) {
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO discount_rules (scope, target_id, kind, value, starts_at, ends_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+discountColumns,
		rule.Scope, rule.TargetID, rule.Kind, rule.Value, rule.StartsAt, rule.EndsAt, rule.Active)
	return scanRule(row)
}

// UpdateRule mutates an existing rule.
func (r DiscountRepo) UpdateRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error) {
	row := r.Pool.QueryRow(ctx, `
		UPDATE discount_rules
		SET scope = $2, target_id = $3, kind = $4, value = $5, starts_at = $6, ends_at = $7, active = $8
		WHERE id = $1
		RETURNING `+discountColumns,
		rule.ID, rule.Scope, rule.TargetID, rule.Kind, rule.Value, rule.StartsAt, rule.EndsAt, rule.Active)
	out, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Rule{}, discount.ErrNotFound
		}
		return pricing.Rule{}, err
	}
	return out, nil
}

// DeleteRule removes a rule by ID.
func (r DiscountRepo) DeleteRule(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM discount_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func scanRules(rows pgx.Rows) ([]pricing.Rule, error) {
	var out []pricing.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(row pgx.Row) (pricing.Rule, error) {
	var rule pricing.Rule
	if err := row.Scan(&rule.ID, &rule.Scope, &rule.TargetID, &rule.Kind, &rule.Value, &rule.StartsAt, &rule.EndsAt, &rule.Active); err != nil {
		return pricing.Rule{}, err
	}
	return rule, nil
}
