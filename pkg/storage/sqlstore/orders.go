package sqlstore

import (
	"context"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/storage"
)

const orderColumns = `SELECT o.id, o.order_code, COALESCE(o.customer_id, 0),
	COALESCE(c.full_name, o.walk_in_name), o.walk_in_name, o.walk_in_phone, COALESCE(o.user_id, 0),
	o.total_amount, o.discount_amount, o.final_amount, o.status, o.payment_method, o.notes,
	o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN customers c ON c.id = o.customer_id`

func (t *Tx) scanOrder(r scanner) (core.Order, error) {
	var (
		o                      core.Order
		total, discount, final string
		status, payment        string
		created, updated       int64
	)
	if err := r.Scan(&o.ID, &o.Code, &o.CustomerID, &o.CustomerName, &o.WalkInName, &o.WalkInPhone, &o.UserID,
		&total, &discount, &final, &status, &payment, &o.Note, &created, &updated); err != nil {
		return core.Order{}, t.d.classify(err, "order")
	}
	var err error
	if o.TotalAmount, err = parseMoney(total, "order"); err != nil {
		return core.Order{}, err
	}
	if o.Discount, err = parseMoney(discount, "order"); err != nil {
		return core.Order{}, err
	}
	if o.FinalAmount, err = parseMoney(final, "order"); err != nil {
		return core.Order{}, err
	}
	o.Status, o.PaymentMethod = core.OrderStatus(status), core.PaymentMethod(payment)
	o.CreatedAt, o.UpdatedAt = fromMillis(created), fromMillis(updated)
	return o, nil
}

func (t *Tx) InsertOrder(ctx context.Context, o *core.Order) error {
	ts := now()
	id, err := t.insert(ctx, "order", `INSERT INTO orders(order_code, customer_id, walk_in_name, walk_in_phone,
		user_id, total_amount, discount_amount, final_amount, status, payment_method, notes, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.Code, nullID(o.CustomerID), o.WalkInName, o.WalkInPhone, nullID(o.UserID),
		moneyText(o.TotalAmount), moneyText(o.Discount), moneyText(o.FinalAmount),
		string(o.Status), string(o.PaymentMethod), o.Note, ts, ts)
	if err != nil {
		return err
	}
	o.ID = id
	o.CreatedAt, o.UpdatedAt = fromMillis(ts), fromMillis(ts)
	return nil
}

func (t *Tx) InsertOrderItem(ctx context.Context, it *core.OrderItem) error {
	id, err := t.insert(ctx, "order item", `INSERT INTO order_items(order_id, product_id, quantity, unit_price,
		total_price) VALUES(?,?,?,?,?)`,
		it.OrderID, it.ProductID, it.Quantity, moneyText(it.UnitPrice), moneyText(it.TotalPrice))
	if err != nil {
		return err
	}
	it.ID = id
	return nil
}

func (t *Tx) GetOrder(ctx context.Context, id int64) (core.Order, error) {
	return t.scanOrder(t.tx.QueryRowContext(ctx, t.d.rebind(orderColumns+" WHERE o.id = ?"), id))
}

func (t *Tx) LockOrder(ctx context.Context, id int64) (core.Order, error) {
	q := orderColumns + " WHERE o.id = ?" + t.d.forUpdate("o")
	return t.scanOrder(t.tx.QueryRowContext(ctx, t.d.rebind(q), id))
}

func (t *Tx) ListOrders(ctx context.Context, f storage.OrderFilter) ([]core.Order, error) {
	q := orderColumns
	var args []any
	if f.CustomerID != 0 {
		q += " WHERE o.customer_id = ?"
		args = append(args, f.CustomerID)
	}
	q += " ORDER BY o.id DESC"
	var out []core.Order
	err := t.queryRows(ctx, "order", q, args, func(r scanner) error {
		o, err := t.scanOrder(r)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	return out, err
}

func (t *Tx) ListOrderItems(ctx context.Context, orderID int64) ([]core.OrderItem, error) {
	var out []core.OrderItem
	err := t.queryRows(ctx, "order item", `SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''),
		oi.quantity, oi.unit_price, oi.total_price
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ?
		ORDER BY oi.id`, []any{orderID},
		func(r scanner) error {
			var (
				it           core.OrderItem
				price, total string
			)
			if err := r.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &price, &total); err != nil {
				return t.d.classify(err, "order item")
			}
			var err error
			if it.UnitPrice, err = parseMoney(price, "order item"); err != nil {
				return err
			}
			if it.TotalPrice, err = parseMoney(total, "order item"); err != nil {
				return err
			}
			out = append(out, it)
			return nil
		})
	return out, err
}

func (t *Tx) SetOrderStatus(ctx context.Context, id int64, status core.OrderStatus) error {
	return t.mustAffect(ctx, "order", `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), now(), id)
}
