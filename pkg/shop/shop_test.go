package shop

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/events"
	"github.com/rexliu/motoshop/pkg/session"
	"github.com/rexliu/motoshop/pkg/storage"
	"github.com/rexliu/motoshop/pkg/storage/sqlstore"
)

type fixture struct {
	repo      storage.Repository
	orders    *Orders
	inventory *Inventory
	catalog   *Catalog
	events    *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "shop.db"),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}
	rec := &events.Recorder{}
	opts := []Option{WithLogger(logger), WithPublisher(rec)}
	return &fixture{
		repo:      store,
		orders:    NewOrders(store, opts...),
		inventory: NewInventory(store, opts...),
		catalog:   NewCatalog(store, opts...),
		events:    rec,
	}
}

func (f *fixture) product(t *testing.T, name string, stock int64) core.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), core.Product{
		Name:  name,
		Brand: "Yamaha",
		Price: decimal.RequireFromString("1200.00"),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func (f *fixture) stock(t *testing.T, productID int64) core.InventoryRecord {
	t.Helper()
	rec, err := f.inventory.Get(context.Background(), productID)
	if err != nil {
		t.Fatalf("get inventory: %v", err)
	}
	if !rec.Consistent() {
		t.Fatalf("inventory ledger inconsistent: %+v", rec)
	}
	return rec
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	orders, err := f.orders.List(context.Background())
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	return len(orders)
}

func walkIn(items ...core.LineItem) core.OrderDraft {
	return core.OrderDraft{WalkInName: "Tran Thi B", WalkInPhone: "0912000111", Items: items}
}

func line(productID, qty int64, price string) core.LineItem {
	return core.LineItem{ProductID: productID, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	exciter := f.product(t, "Exciter 155", 5)
	sirius := f.product(t, "Sirius", 2)

	draft := walkIn(line(exciter.ID, 2, "1200.00"), line(sirius.ID, 1, "850.50"))
	draft.Discount = decimal.RequireFromString("50")
	draft.PaymentMethod = "card"
	order, err := f.orders.Create(ctx, draft)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID == 0 || len(order.Code) <= len(core.OrderCodePrefix) {
		t.Fatalf("order not assigned id/code: %+v", order)
	}
	if order.Status != core.OrderPending || order.PaymentMethod != core.PayCard {
		t.Fatalf("unexpected status/payment %s/%s", order.Status, order.PaymentMethod)
	}
	if order.TotalAmount.StringFixed(2) != "3250.50" || order.FinalAmount.StringFixed(2) != "3200.50" {
		t.Fatalf("unexpected totals %s/%s", order.TotalAmount, order.FinalAmount)
	}
	if order.CustomerName != "Tran Thi B" {
		t.Fatalf("expected walk-in name as customer name, got %q", order.CustomerName)
	}
	if len(order.Items) != 2 || order.Items[1].ProductName != "Sirius" || order.Items[0].TotalPrice.StringFixed(2) != "2400.00" {
		t.Fatalf("unexpected items %+v", order.Items)
	}
	if got := f.stock(t, exciter.ID); got.Current != 3 || got.QuantityOut != 2 {
		t.Fatalf("unexpected exciter ledger %+v", got)
	}
	if got := f.stock(t, sirius.ID); got.Current != 1 {
		t.Fatalf("unexpected sirius ledger %+v", got)
	}

	evs := f.events.Events()
	if len(evs) != 1 || evs[0].Type != events.OrderCreated || evs[0].OrderCode != order.Code {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Jupiter", 3)

	tests := []struct {
		name  string
		draft core.OrderDraft
		want  error
		line  int
	}{
		{"no items", walkIn(), core.ErrValidation, -1},
		{"zero quantity", walkIn(line(p.ID, 0, "1")), core.ErrValidation, 0},
		{"unknown product", walkIn(line(p.ID, 1, "1"), line(999, 1, "1")), core.ErrValidation, 1},
		{"too many", walkIn(line(p.ID, 4, "1")), core.ErrInsufficientStock, 0},
		{"split lines exceed stock", walkIn(line(p.ID, 2, "1"), line(p.ID, 2, "1")), core.ErrInsufficientStock, 0},
		{"discount above total", func() core.OrderDraft {
			d := walkIn(line(p.ID, 1, "10.00"))
			d.Discount = decimal.RequireFromString("10.01")
			return d
		}(), core.ErrValidation, -1},
		{"unknown customer", core.OrderDraft{CustomerID: 42, Items: []core.LineItem{line(p.ID, 1, "1")}}, core.ErrValidation, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.Create(ctx, tc.draft)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *core.ValidationError, got %T", err)
			}
			if verr.Line != tc.line {
				t.Fatalf("expected line %d, got %d (%v)", tc.line, verr.Line, err)
			}
		})
	}
	if n := f.orderCount(t); n != 0 {
		t.Fatalf("rejected drafts persisted %d orders", n)
	}
	if got := f.stock(t, p.ID); got.Current != 3 {
		t.Fatalf("rejected drafts changed stock: %+v", got)
	}
}

func TestConcurrentOrdersForLastUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Winner X", 3)

	var ok, short atomic.Int32
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := f.orders.Create(ctx, walkIn(line(p.ID, 2, "1500.00")))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, core.ErrInsufficientStock):
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.Load() != 1 || short.Load() != 1 {
		t.Fatalf("expected one success and one stock failure, got %d/%d", ok.Load(), short.Load())
	}
	if got := f.stock(t, p.ID); got.Current != 1 || got.QuantityOut != 2 {
		t.Fatalf("unexpected ledger %+v", got)
	}
	if n := f.orderCount(t); n != 1 {
		t.Fatalf("expected 1 order, got %d", n)
	}
}

func TestStockNeverOversold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const start = 10
	p := f.product(t, "Grande", start)

	var sold atomic.Int64
	var g errgroup.Group
	for i := 0; i < 24; i++ {
		qty := int64(i%3 + 1)
		g.Go(func() error {
			_, err := f.orders.Create(ctx, walkIn(line(p.ID, qty, "900.00")))
			if err == nil {
				sold.Add(qty)
				return nil
			}
			if errors.Is(err, core.ErrInsufficientStock) {
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sold.Load() > start {
		t.Fatalf("sold %d units of %d", sold.Load(), start)
	}
	got := f.stock(t, p.ID)
	if got.Current != start-sold.Load() || got.Current < 0 {
		t.Fatalf("ledger %+v does not match %d sold", got, sold.Load())
	}
}

var errInjected = errors.New("injected line item failure")

// failingRepo fails every order line insert inside otherwise real transactions.
type failingRepo struct {
	storage.Repository
}

func (r failingRepo) WithTx(ctx context.Context, fn func(storage.Tx) error) error {
	return r.Repository.WithTx(ctx, func(tx storage.Tx) error { return fn(failingTx{tx}) })
}

type failingTx struct {
	storage.Tx
}

func (failingTx) InsertOrderItem(context.Context, *core.OrderItem) error { return errInjected }

func TestCreateOrderRollsBackOnLineFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Vario", 4)

	orders := NewOrders(failingRepo{f.repo}, WithLogger(zaptest.NewLogger(t)), WithPublisher(f.events))
	_, err := orders.Create(ctx, walkIn(line(p.ID, 2, "2000.00")))
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if n := f.orderCount(t); n != 0 {
		t.Fatalf("order header survived rollback: %d orders", n)
	}
	if got := f.stock(t, p.ID); got.Current != 4 || got.QuantityOut != 0 {
		t.Fatalf("stock changed despite rollback: %+v", got)
	}
	if evs := f.events.Events(); len(evs) != 0 {
		t.Fatalf("events published for a rolled back order: %+v", evs)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "SH 125", 20)

	var last core.Order
	for i := 0; i < 7; i++ {
		o, err := f.orders.Create(ctx, walkIn(line(p.ID, 1, "3000.00")))
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		last = o
	}
	if last.ID != 7 {
		t.Fatalf("expected seventh order to have id 7, got %d", last.ID)
	}

	updated, err := f.orders.UpdateStatus(ctx, 7, core.OrderCompleted)
	if err != nil || updated.Status != core.OrderCompleted {
		t.Fatalf("complete order: %+v %v", updated, err)
	}
	got, err := f.orders.Get(ctx, 7)
	if err != nil || got.Status != core.OrderCompleted || len(got.Items) != 1 {
		t.Fatalf("get order 7: %+v %v", got, err)
	}

	if _, err := f.orders.UpdateStatus(ctx, 7, core.OrderCompleted); err != nil {
		t.Fatalf("same-status update should be a no-op: %v", err)
	}
	_, err = f.orders.UpdateStatus(ctx, 7, core.OrderCancelled)
	if !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected completed order cancel to be rejected, got %v", err)
	}
	if _, err := f.orders.UpdateStatus(ctx, 99, core.OrderCompleted); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.orders.UpdateStatus(ctx, 6, "SHIPPED"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected unknown status to be rejected, got %v", err)
	}
	if got := f.stock(t, p.ID); got.Current != 13 {
		t.Fatalf("completing must not move stock: %+v", got)
	}
}

func TestCancelReturnsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "Lead", 5)
	b := f.product(t, "Blade", 5)

	o, err := f.orders.Create(ctx, walkIn(line(a.ID, 2, "10"), line(b.ID, 1, "10"), line(a.ID, 1, "10")))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.stock(t, a.ID); got.Current != 2 {
		t.Fatalf("unexpected stock after order: %+v", got)
	}
	cancelled, err := f.orders.UpdateStatus(ctx, o.ID, core.OrderCancelled)
	if err != nil || cancelled.Status != core.OrderCancelled {
		t.Fatalf("cancel: %+v %v", cancelled, err)
	}
	if got := f.stock(t, a.ID); got.Current != 5 || got.QuantityOut != 0 || got.QuantityIn != 5 {
		t.Fatalf("stock not returned for a: %+v", got)
	}
	if got := f.stock(t, b.ID); got.Current != 5 {
		t.Fatalf("stock not returned for b: %+v", got)
	}
	if _, err := f.orders.UpdateStatus(ctx, o.ID, core.OrderPending); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("cancelled orders must stay cancelled, got %v", err)
	}
	evs := f.events.Events()
	if last := evs[len(evs)-1]; last.Type != events.OrderStatusChanged || last.Status != string(core.OrderCancelled) {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestAdjustInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Future", 2)

	rec, err := f.inventory.Adjust(ctx, p.ID, 5, "in")
	if err != nil || rec.Current != 7 || rec.QuantityIn != 7 {
		t.Fatalf("stock in: %+v %v", rec, err)
	}
	rec, err = f.inventory.Adjust(ctx, p.ID, 7, core.StockOut)
	if err != nil || rec.Current != 0 || rec.QuantityOut != 7 {
		t.Fatalf("stock out: %+v %v", rec, err)
	}
	_, err = f.inventory.Adjust(ctx, p.ID, 1, core.StockOut)
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := f.stock(t, p.ID); got.Current != 0 {
		t.Fatalf("rejected adjustment changed stock: %+v", got)
	}

	tests := []struct {
		name string
		id   int64
		qty  int64
		dir  core.Direction
		want error
	}{
		{"zero quantity", p.ID, 0, core.StockIn, core.ErrValidation},
		{"bad direction", p.ID, 1, "SIDEWAYS", core.ErrValidation},
		{"unknown product", 404, 1, core.StockIn, core.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.inventory.Adjust(ctx, tc.id, tc.qty, tc.dir); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "Plenty", 50)
	f.product(t, "Few", 4)
	f.product(t, "Edge", 5)
	none := f.product(t, "None", 0)

	low, err := f.inventory.LowStock(ctx, 0)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 2 || low[0].ID != none.ID || low[1].Name != "Few" {
		t.Fatalf("unexpected low stock at default threshold: %+v", low)
	}
	low, err = f.inventory.LowStock(ctx, 6)
	if err != nil || len(low) != 3 {
		t.Fatalf("expected 3 below 6, got %d (%v)", len(low), err)
	}
}

func TestCatalogHidesPasswords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.catalog.CreateUser(ctx, core.User{Username: " manager ", Password: "pw", Role: core.RoleManager})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Username != "manager" || u.Password != "" || u.Status != core.UserActive {
		t.Fatalf("unexpected user %+v", u)
	}
	users, err := f.catalog.Users(ctx)
	if err != nil || len(users) != 1 || users[0].Password != "" {
		t.Fatalf("list users leaked password or failed: %+v %v", users, err)
	}
	updated, err := f.catalog.UpdateUser(ctx, core.User{ID: u.ID, FullName: "Pham Van D", Status: core.UserInactive})
	if err != nil || updated.FullName != "Pham Van D" || updated.Role != core.RoleManager || updated.Status != core.UserInactive {
		t.Fatalf("update user: %+v %v", updated, err)
	}
	if _, err := f.catalog.CreateUser(ctx, core.User{Username: "manager", Password: "x", Role: core.RoleStaff}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected duplicate username rejection, got %v", err)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessions := session.NewMemory(0)
	auth := NewAuth(f.repo, sessions, nil, WithLogger(zaptest.NewLogger(t)))

	if _, err := f.catalog.CreateUser(ctx, core.User{Username: "admin", Password: "admin123", Role: core.RoleAdmin}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := f.catalog.CreateUser(ctx, core.User{Username: "gone", Password: "pw", Role: core.RoleStaff, Status: core.UserInactive}); err != nil {
		t.Fatalf("create inactive: %v", err)
	}

	s, u, err := auth.Login(ctx, "admin", "admin123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Password != "" || s.Role != core.RoleAdmin {
		t.Fatalf("unexpected login result %+v %+v", s, u)
	}
	if got, err := auth.Validate(ctx, s.Token); err != nil || got.UserID != u.ID {
		t.Fatalf("validate: %+v %v", got, err)
	}
	if err := auth.Logout(ctx, s.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := auth.Validate(ctx, s.Token); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected logged out token rejected, got %v", err)
	}

	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"nobody", "admin123"},
		{"gone", "pw"},
	} {
		if _, _, err := auth.Login(ctx, tc.user, tc.pass); !errors.Is(err, core.ErrUnauthorized) {
			t.Fatalf("login %s/%s: expected unauthorized, got %v", tc.user, tc.pass, err)
		}
	}
}
