package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/cart"
)

// CartRepo persists carts and their lines.
type CartRepo struct {
	Pool *pgxpool.Pool
}

const cartColumns = `id, user_id, anon_id, promo_code, shipping_package_id, expires_at`

// GetCart loads a cart by ID.
func (r CartRepo) GetCart(ctx context.Context, id uuid.UUID) (cart.Cart, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, pgUUID(id))
	return scanCart(row)
}

// GetCartByUser loads the user's unexpired cart.
func (r CartRepo) GetCartByUser(ctx context.Context, userID uuid.UUID) (cart.Cart, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT `+cartColumns+`
		FROM carts
		WHERE user_id = $1 AND expires_at > now()
		ORDER BY updated_at DESC
		LIMIT 1`, pgUUID(userID))
	return scanCart(row)
}

// GetCartByAnon loads the guest cart for an anonymous session ID.
func (r CartRepo) GetCartByAnon(ctx context.Context, anonID string) (cart.Cart, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT `+cartColumns+`
		FROM carts
		WHERE anon_id = $1 AND expires_at > now()
		ORDER BY updated_at DESC
		LIMIT 1`, anonID)
	return scanCart(row)
}

// CreateCart inserts a new cart.
func (r CartRepo) CreateCart(ctx context.Context, c cart.Cart) (cart.Cart, error) {
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO carts (id, user_id, anon_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+cartColumns,
		pgUUID(c.ID), pgUUIDPtr(c.UserID), pgText(c.AnonID), c.ExpiresAt)
	return scanCart(row)
}

// TouchCart extends the cart's expiry.
func (r CartRepo) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE carts SET expires_at = $2, updated_at = now()
		WHERE id = $1`, pgUUID(id), expiresAt)
	return err
}

// ListLines returns the cart's stored lines.
func (r CartRepo) ListLines(ctx context.Context, cartID uuid.UUID) ([]cart.Line, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, cart_id, kind, product_id, selections, qty
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at`, pgUUID(cartID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cart.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// FindLine locates an existing line with the same kind and product.
func (r CartRepo) FindLine(ctx context.Context, cartID uuid.UUID, kind cart.LineKind, productID uuid.UUID) (cart.Line, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT id, cart_id, kind, product_id, selections, qty
		FROM cart_lines
		WHERE cart_id = $1 AND kind = $2 AND product_id = $3`,
		pgUUID(cartID), kind, pgUUID(productID))
	l, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Line{}, cart.ErrNotFound
		}
		return cart.Line{}, err
	}
	return l, nil
}

// CreateLine inserts a cart line.
func (r CartRepo) CreateLine(ctx context.Context, line cart.Line) (cart.Line, error) {
	var selections []byte
	if len(line.Selections) > 0 {
		var err error
		selections, err = json.Marshal(line.Selections)
		if err != nil {
			return cart.Line{}, fmt.Errorf("encode selections: %w", err)
		}
	}
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO cart_lines (id, cart_id, kind, product_id, selections, qty)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pgUUID(line.ID), pgUUID(line.CartID), line.Kind, pgUUID(line.ProductID), selections, line.Qty)
	if err != nil {
		return cart.Line{}, err
	}
	return line, nil
}

// UpdateLineQty sets a line's quantity.
func (r CartRepo) UpdateLineQty(ctx context.Context, lineID uuid.UUID, qty int) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE cart_lines SET qty = $2 WHERE id = $1`, pgUUID(lineID), qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// DeleteLine removes a line scoped to its cart.
func (r CartRepo) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) error {
	_, err := r.Pool.Exec(ctx, `DELETE FROM cart_lines WHERE id = $1 AND cart_id = $2`,
		pgUUID(lineID), pgUUID(cartID))
	return err
}

// SetShipping stores or clears the selected shipping package.
func (r CartRepo) SetShipping(ctx context.Context, cartID uuid.UUID, packageID *string) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE carts SET shipping_package_id = $2, updated_at = now()
		WHERE id = $1`, pgUUID(cartID), pgText(packageID))
	return err
}

func scanCart(row pgx.Row) (cart.Cart, error) {
	var c cart.Cart
	var userID pgtype.UUID
	var anonID, promoCode, packageID pgtype.Text
	if err := row.Scan(&c.ID, &userID, &anonID, &promoCode, &packageID, &c.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Cart{}, cart.ErrNotFound
		}
		return cart.Cart{}, err
	}
	c.UserID = uuidPtrFrom(userID)
	c.AnonID = textPtrFrom(anonID)
	c.PromoCode = textPtrFrom(promoCode)
	c.ShippingPackageID = textPtrFrom(packageID)
	return c, nil
}

func scanLine(row pgx.Row) (cart.Line, error) {
	var l cart.Line
	var selections []byte
	if err := row.Scan(&l.ID, &l.CartID, &l.Kind, &l.ProductID, &selections, &l.Qty); err != nil {
		return cart.Line{}, err
	}
	if len(selections) > 0 {
		if err := json.Unmarshal(selections, &l.Selections); err != nil {
			return cart.Line{}, fmt.Errorf("decode selections: %w", err)
		}
	}
	return l, nil
}
