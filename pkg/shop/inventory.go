package shop

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/events"
	"github.com/rexliu/motoshop/pkg/storage"
)

// Inventory applies manual stock movements and reports stock levels.
type Inventory struct {
	base
}

func NewInventory(repo storage.Repository, opts ...Option) *Inventory {
	return &Inventory{base: newBase(repo, "inventory", opts)}
}

// Adjust receives (IN) or removes (OUT) quantity units of a product. An OUT
// larger than the current stock is rejected with core.ErrInsufficientStock.
func (s *Inventory) Adjust(ctx context.Context, productID, quantity int64, dir core.Direction) (rec core.InventoryRecord, err error) {
	ctx, span := s.tracer.Start(ctx, "shop.Inventory.Adjust")
	span.SetAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int64("quantity", quantity),
		attribute.String("direction", string(dir)),
	)
	defer func() { endSpan(span, err) }()

	if dir != "" {
		if parsed, perr := core.ParseDirection(string(dir)); perr == nil {
			dir = parsed
		}
	}
	if err := core.ValidateAdjustment(productID, quantity, dir); err != nil {
		return core.InventoryRecord{}, err
	}

	err = s.repo.WithTx(ctx, func(tx storage.Tx) error {
		cur, err := tx.LockInventory(ctx, productID)
		if err != nil {
			return err
		}
		switch dir {
		case core.StockIn:
			err = tx.StockIn(ctx, productID, quantity)
		case core.StockOut:
			if cur.Current < quantity {
				return core.InsufficientStock(-1, productID, quantity, cur.Current)
			}
			err = tx.StockOut(ctx, productID, quantity)
		}
		if err != nil {
			return err
		}
		rec, err = tx.GetInventory(ctx, productID)
		return err
	})
	if err != nil {
		return core.InventoryRecord{}, err
	}
	s.log.Infow("stock adjusted", "product", productID, "direction", dir, "quantity", quantity, "current", rec.Current)
	s.publish(ctx, events.Event{
		Type:      events.StockAdjusted,
		At:        time.Now().UTC(),
		ProductID: productID,
		Quantity:  quantity,
		Direction: string(dir),
	})
	return rec, nil
}

// Get returns one product's ledger.
func (s *Inventory) Get(ctx context.Context, productID int64) (core.InventoryRecord, error) {
	var rec core.InventoryRecord
	err := s.repo.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		rec, err = tx.GetInventory(ctx, productID)
		return err
	})
	return rec, err
}

// List returns every ledger.
func (s *Inventory) List(ctx context.Context) ([]core.InventoryRecord, error) {
	var out []core.InventoryRecord
	err := s.repo.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListInventory(ctx)
		return err
	})
	return out, err
}

// LowStock returns products whose stock is below threshold, lowest first.
// threshold <= 0 uses the configured default.
func (s *Inventory) LowStock(ctx context.Context, threshold int64) ([]core.Product, error) {
	if threshold <= 0 {
		threshold = s.lowStock
	}
	var out []core.Product
	err := s.repo.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListLowStock(ctx, threshold)
		return err
	})
	return out, err
}
