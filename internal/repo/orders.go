package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/order"
)

// OrderRepo persists orders and their frozen lines.
type OrderRepo struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, user_id, cart_id, status, currency, subtotal, shipping_cost,
	promo_discount, total, promo_code, shipping_package_id, courier_name,
	tracking_number, address, created_at`

// CreateOrder writes the order header and its lines. When tx is nil the
// write runs on the pool without an explicit transaction.
func (r OrderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, ord order.Order, lines []order.Line) (order.Order, error) {
	insertOrder := `
		INSERT INTO orders (id, user_id, cart_id, status, currency, subtotal, shipping_cost,
			promo_discount, total, promo_code, shipping_package_id, courier_name, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	insertLine := `
		INSERT INTO order_lines (id, order_id, kind, product_id, title, unit_price, qty, subtotal, members)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	orderArgs := []any{
		pgUUID(ord.ID), pgUUID(ord.UserID), pgUUID(ord.CartID), ord.Status, ord.Currency,
		ord.Subtotal, ord.ShippingCost, ord.PromoDiscount, ord.Total,
		pgText(ord.PromoCode), ord.ShippingPackageID, ord.CourierName, []byte(ord.AddressRaw),
	}

	if tx != nil {
		if _, err := tx.Exec(ctx, insertOrder, orderArgs...); err != nil {
			return order.Order{}, err
		}
		for _, l := range lines {
			if _, err := tx.Exec(ctx, insertLine, lineArgs(l)...); err != nil {
				return order.Order{}, err
			}
		}
		return ord, nil
	}

	if _, err := r.Pool.Exec(ctx, insertOrder, orderArgs...); err != nil {
		return order.Order{}, err
	}
	for _, l := range lines {
		if _, err := r.Pool.Exec(ctx, insertLine, lineArgs(l)...); err != nil {
			return order.Order{}, err
		}
	}
	return ord, nil
}

func lineArgs(l order.Line) []any {
	return []any{
		pgUUID(l.ID), pgUUID(l.OrderID), l.Kind, pgUUID(l.ProductID),
		l.Title, l.UnitPrice, l.Qty, l.Subtotal, []byte(l.MembersRaw),
	}
}

// ListOrdersForUser returns the user's orders newest first.
func (r OrderRepo) ListOrdersForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]order.Order, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, pgUUID(userID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountOrdersForUser returns the user's total order count.
func (r OrderRepo) CountOrdersForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, pgUUID(userID)).Scan(&n)
	return n, err
}

// GetOrderForUser loads one order scoped to its owner.
func (r OrderRepo) GetOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (order.Order, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND user_id = $2`, pgUUID(orderID), pgUUID(userID))
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, err
	}
	return o, nil
}

// ListOrderLines returns the frozen lines of one order.
func (r OrderRepo) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]order.Line, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, order_id, kind, product_id, title, unit_price, qty, subtotal, members
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at`, pgUUID(orderID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Line
	for rows.Next() {
		var l order.Line
		var members []byte
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Kind, &l.ProductID, &l.Title, &l.UnitPrice, &l.Qty, &l.Subtotal, &members); err != nil {
			return nil, err
		}
		l.MembersRaw = members
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateOrderStatus transitions the order's status.
func (r OrderRepo) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) error {
	tag, err := r.Pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, pgUUID(orderID), status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var o order.Order
	var promoCode, trackingNumber pgtype.Text
	var address []byte
	if err := row.Scan(
		&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Currency,
		&o.Subtotal, &o.ShippingCost, &o.PromoDiscount, &o.Total,
		&promoCode, &o.ShippingPackageID, &o.CourierName,
		&trackingNumber, &address, &o.CreatedAt,
	); err != nil {
		return order.Order{}, err
	}
	o.PromoCode = textPtrFrom(promoCode)
	o.TrackingNumber = textPtrFrom(trackingNumber)
	o.AddressRaw = address
	return o, nil
}
