package sqlstore

import (
	"context"
	"errors"

	"github.com/rexliu/motoshop/pkg/core"
)

const inventoryColumns = `SELECT i.id, i.product_id, COALESCE(p.name, ''), COALESCE(p.brand, ''), COALESCE(p.model, ''),
	i.quantity_in, i.quantity_out, i.quantity_current, i.updated_at
	FROM inventory i
	LEFT JOIN products p ON p.id = i.product_id`

func (t *Tx) scanInventory(r scanner) (core.InventoryRecord, error) {
	var (
		rec     core.InventoryRecord
		updated int64
	)
	if err := r.Scan(&rec.ID, &rec.ProductID, &rec.ProductName, &rec.Brand, &rec.Model,
		&rec.QuantityIn, &rec.QuantityOut, &rec.Current, &updated); err != nil {
		return core.InventoryRecord{}, t.d.classify(err, "inventory")
	}
	rec.UpdatedAt = fromMillis(updated)
	return rec, nil
}

func (t *Tx) InsertInventory(ctx context.Context, productID, initial int64) error {
	_, err := t.insert(ctx, "inventory", `INSERT INTO inventory(product_id, quantity_in, quantity_out,
		quantity_current, updated_at) VALUES(?,?,0,?,?)`, productID, initial, initial, now())
	return err
}

func (t *Tx) GetInventory(ctx context.Context, productID int64) (core.InventoryRecord, error) {
	return t.scanInventory(t.tx.QueryRowContext(ctx, t.d.rebind(inventoryColumns+" WHERE i.product_id = ?"), productID))
}

func (t *Tx) LockInventory(ctx context.Context, productID int64) (core.InventoryRecord, error) {
	q := inventoryColumns + " WHERE i.product_id = ?" + t.d.forUpdate("i")
	return t.scanInventory(t.tx.QueryRowContext(ctx, t.d.rebind(q), productID))
}

func (t *Tx) StockIn(ctx context.Context, productID, n int64) error {
	return t.mustAffect(ctx, "inventory", `UPDATE inventory SET quantity_in = quantity_in + ?,
		quantity_current = quantity_current + ?, updated_at = ? WHERE product_id = ?`,
		n, n, now(), productID)
}

// StockOut decrements only while enough stock remains, so two transactions
// racing for the last units cannot both succeed.
func (t *Tx) StockOut(ctx context.Context, productID, n int64) error {
	err := t.mustAffect(ctx, "inventory", `UPDATE inventory SET quantity_out = quantity_out + ?,
		quantity_current = quantity_current - ?, updated_at = ? WHERE product_id = ? AND quantity_current >= ?`,
		n, n, now(), productID, n)
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	rec, getErr := t.GetInventory(ctx, productID)
	if getErr != nil {
		return getErr
	}
	return core.InsufficientStock(-1, productID, n, rec.Current)
}

func (t *Tx) ReturnStock(ctx context.Context, productID, n int64) error {
	return t.mustAffect(ctx, "inventory", `UPDATE inventory SET quantity_out = quantity_out - ?,
		quantity_current = quantity_current + ?, updated_at = ? WHERE product_id = ? AND quantity_out >= ?`,
		n, n, now(), productID, n)
}

func (t *Tx) ListInventory(ctx context.Context) ([]core.InventoryRecord, error) {
	var out []core.InventoryRecord
	err := t.queryRows(ctx, "inventory", inventoryColumns+" ORDER BY i.id DESC", nil, func(r scanner) error {
		rec, err := t.scanInventory(r)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

// ListLowStock returns products whose current stock is strictly below threshold.
func (t *Tx) ListLowStock(ctx context.Context, threshold int64) ([]core.Product, error) {
	q := productColumns + " WHERE i.quantity_current < ? ORDER BY i.quantity_current ASC, p.id"
	var out []core.Product
	err := t.queryRows(ctx, "product", q, []any{threshold}, func(r scanner) error {
		p, err := t.scanProduct(r)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}
