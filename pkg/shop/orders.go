package shop

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/events"
	"github.com/rexliu/motoshop/pkg/storage"
)

// Orders creates orders and moves them through their lifecycle.
type Orders struct {
	base
}

func NewOrders(repo storage.Repository, opts ...Option) *Orders {
	return &Orders{base: newBase(repo, "orders", opts)}
}

// demand is the total quantity a draft asks of one product, and the first
// line that asked for it.
type demand struct {
	productID int64
	quantity  int64
	line      int
}

// aggregate folds a draft's lines per product, ordered by product id so that
// concurrent orders lock inventory rows in the same order.
func aggregate(items []core.LineItem) []demand {
	idx := make(map[int64]int, len(items))
	var out []demand
	for i, it := range items {
		if j, ok := idx[it.ProductID]; ok {
			out[j].quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, demand{productID: it.ProductID, quantity: it.Quantity, line: i})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].productID < out[b].productID })
	return out
}

// Create validates a draft and, in one transaction, checks fresh stock,
// writes the header and its lines, and decrements inventory. Nothing is
// persisted unless every step succeeds.
func (o *Orders) Create(ctx context.Context, draft core.OrderDraft) (order core.Order, err error) {
	ctx, span := o.tracer.Start(ctx, "shop.Orders.Create")
	defer func() { endSpan(span, err) }()

	draft.Normalize()
	if err := core.ValidateDraft(draft); err != nil {
		return core.Order{}, err
	}
	needs := aggregate(draft.Items)

	err = o.repo.WithTx(ctx, func(tx storage.Tx) error {
		if draft.CustomerID != 0 {
			if _, err := tx.GetCustomer(ctx, draft.CustomerID); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return core.Invalid("customerId", "customer %d does not exist", draft.CustomerID)
				}
				return err
			}
		}
		if draft.UserID != 0 {
			if _, err := tx.GetUser(ctx, draft.UserID); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return core.Invalid("userId", "user %d does not exist", draft.UserID)
				}
				return err
			}
		}
		for _, d := range needs {
			rec, err := tx.LockInventory(ctx, d.productID)
			if errors.Is(err, core.ErrNotFound) {
				return core.InvalidLine(d.line, d.productID, "productId", "product does not exist")
			}
			if err != nil {
				return err
			}
			if rec.Current < d.quantity {
				return core.InsufficientStock(d.line, d.productID, d.quantity, rec.Current)
			}
		}

		subtotal := draft.Subtotal()
		header := core.Order{
			Code:          core.NewOrderCode(),
			CustomerID:    draft.CustomerID,
			WalkInName:    draft.WalkInName,
			WalkInPhone:   draft.WalkInPhone,
			UserID:        draft.UserID,
			TotalAmount:   subtotal,
			Discount:      draft.Discount,
			FinalAmount:   subtotal.Sub(draft.Discount),
			Status:        core.OrderPending,
			PaymentMethod: draft.PaymentMethod,
			Note:          draft.Note,
		}
		if err := tx.InsertOrder(ctx, &header); err != nil {
			return err
		}
		for i, it := range draft.Items {
			line := core.OrderItem{
				OrderID:    header.ID,
				ProductID:  it.ProductID,
				Quantity:   it.Quantity,
				UnitPrice:  it.UnitPrice,
				TotalPrice: it.LineTotal(),
			}
			if err := tx.InsertOrderItem(ctx, &line); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		for _, d := range needs {
			if err := tx.StockOut(ctx, d.productID, d.quantity); err != nil {
				var verr *core.ValidationError
				if errors.As(err, &verr) && verr.Line < 0 {
					verr.Line = d.line
				}
				return err
			}
		}

		var err error
		order, err = readOrder(ctx, tx, header.ID)
		return err
	})
	if err != nil {
		o.log.Infow("order rejected", "items", len(draft.Items), "error", err)
		return core.Order{}, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.String("order.code", order.Code))
	o.log.Infow("order created", "id", order.ID, "code", order.Code, "final", order.FinalAmount.StringFixed(2))
	o.publish(ctx, events.Event{
		Type:      events.OrderCreated,
		At:        order.CreatedAt,
		OrderID:   order.ID,
		OrderCode: order.Code,
		Status:    string(order.Status),
		Amount:    order.FinalAmount.StringFixed(2),
	})
	return order, nil
}

// UpdateStatus moves an order to status. Setting the current status is a
// no-op. Cancelling a pending order returns its items to stock in the same
// transaction.
func (o *Orders) UpdateStatus(ctx context.Context, id int64, status core.OrderStatus) (order core.Order, err error) {
	ctx, span := o.tracer.Start(ctx, "shop.Orders.UpdateStatus")
	span.SetAttributes(attribute.Int64("order.id", id), attribute.String("order.status", string(status)))
	defer func() { endSpan(span, err) }()

	var from core.OrderStatus
	err = o.repo.WithTx(ctx, func(tx storage.Tx) error {
		cur, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		from = cur.Status
		if err := core.Transition(cur.Status, status); err != nil {
			return err
		}
		if cur.Status != status {
			if core.Restocks(cur.Status, status) {
				if err := restock(ctx, tx, id); err != nil {
					return err
				}
			}
			if err := tx.SetOrderStatus(ctx, id, status); err != nil {
				return err
			}
		}
		order, err = readOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Order{}, err
	}
	if from != status {
		o.log.Infow("order status changed", "id", id, "from", from, "to", status)
		o.publish(ctx, events.Event{
			Type:      events.OrderStatusChanged,
			At:        time.Now().UTC(),
			OrderID:   order.ID,
			OrderCode: order.Code,
			Status:    string(status),
			Amount:    order.FinalAmount.StringFixed(2),
		})
	}
	return order, nil
}

func restock(ctx context.Context, tx storage.Tx, orderID int64) error {
	items, err := tx.ListOrderItems(ctx, orderID)
	if err != nil {
		return err
	}
	lines := make([]core.LineItem, len(items))
	for i, it := range items {
		lines[i] = core.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	for _, d := range aggregate(lines) {
		if err := tx.ReturnStock(ctx, d.productID, d.quantity); err != nil {
			return err
		}
	}
	return nil
}

func readOrder(ctx context.Context, tx storage.Tx, id int64) (core.Order, error) {
	order, err := tx.GetOrder(ctx, id)
	if err != nil {
		return core.Order{}, err
	}
	order.Items, err = tx.ListOrderItems(ctx, id)
	if err != nil {
		return core.Order{}, err
	}
	return order, nil
}

// Get returns an order with its line items.
func (o *Orders) Get(ctx context.Context, id int64) (core.Order, error) {
	var order core.Order
	err := o.repo.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		order, err = readOrder(ctx, tx, id)
		return err
	})
	return order, err
}

// List returns order headers, newest first.
func (o *Orders) List(ctx context.Context) ([]core.Order, error) {
	return o.list(ctx, storage.OrderFilter{})
}

// ByCustomer returns the order headers of one customer.
func (o *Orders) ByCustomer(ctx context.Context, customerID int64) ([]core.Order, error) {
	if customerID <= 0 {
		return nil, core.Invalid("customerId", "must be positive")
	}
	return o.list(ctx, storage.OrderFilter{CustomerID: customerID})
}

func (o *Orders) list(ctx context.Context, f storage.OrderFilter) ([]core.Order, error) {
	var out []core.Order
	err := o.repo.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, f)
		return err
	})
	return out, err
}

// Items returns the lines of an existing order.
func (o *Orders) Items(ctx context.Context, orderID int64) ([]core.OrderItem, error) {
	var out []core.OrderItem
	err := o.repo.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListOrderItems(ctx, orderID)
		return err
	})
	return out, err
}
