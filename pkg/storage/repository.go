// Package storage defines the persistence boundary used by the shop services.
package storage

import (
	"context"

	"github.com/rexliu/motoshop/pkg/core"
)

// Repository hands out scoped transactions. fn's writes commit only when it
// returns nil; any error or panic rolls them back.
type Repository interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	Query      string
	CategoryID int64
}

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	CustomerID int64
}

// Tx is the set of operations available inside one transaction.
// Missing rows are reported as core.ErrNotFound; store failures wrap
// core.ErrPersistence.
type Tx interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	InsertCategory(ctx context.Context, c *core.Category) error

	ListProducts(ctx context.Context, f ProductFilter) ([]core.Product, error)
	GetProduct(ctx context.Context, id int64) (core.Product, error)
	InsertProduct(ctx context.Context, p *core.Product) error
	UpdateProduct(ctx context.Context, p core.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context, query string) ([]core.Customer, error)
	GetCustomer(ctx context.Context, id int64) (core.Customer, error)
	InsertCustomer(ctx context.Context, c *core.Customer) error
	UpdateCustomer(ctx context.Context, c core.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	ListUsers(ctx context.Context) ([]core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	InsertUser(ctx context.Context, u *core.User) error
	UpdateUser(ctx context.Context, u core.User) error
	DeleteUser(ctx context.Context, id int64) error

	InsertOrder(ctx context.Context, o *core.Order) error
	InsertOrderItem(ctx context.Context, it *core.OrderItem) error
	GetOrder(ctx context.Context, id int64) (core.Order, error)
	// LockOrder reads an order and holds its row until the transaction ends.
	LockOrder(ctx context.Context, id int64) (core.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]core.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]core.OrderItem, error)
	SetOrderStatus(ctx context.Context, id int64, status core.OrderStatus) error

	InsertInventory(ctx context.Context, productID, initial int64) error
	// LockInventory reads a product's ledger and holds its row until the transaction ends.
	LockInventory(ctx context.Context, productID int64) (core.InventoryRecord, error)
	// StockIn adds received units: in += n, current += n.
	StockIn(ctx context.Context, productID, n int64) error
	// StockOut removes units: out += n, current -= n. It fails with
	// core.ErrInsufficientStock instead of driving current below zero.
	StockOut(ctx context.Context, productID, n int64) error
	// ReturnStock reverses a StockOut: out -= n, current += n.
	ReturnStock(ctx context.Context, productID, n int64) error
	GetInventory(ctx context.Context, productID int64) (core.InventoryRecord, error)
	ListInventory(ctx context.Context) ([]core.InventoryRecord, error)
	ListLowStock(ctx context.Context, threshold int64) ([]core.Product, error)
}
