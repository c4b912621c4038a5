package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role enumerates staff permission levels.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

// UserStatus gates login.
type UserStatus string

const (
	UserActive   UserStatus = "ACTIVE"
	UserInactive UserStatus = "INACTIVE"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PaymentMethod enumerates accepted tenders.
type PaymentMethod string

const (
	PayCash     PaymentMethod = "CASH"
	PayCard     PaymentMethod = "CARD"
	PayTransfer PaymentMethod = "TRANSFER"
)

// Direction is the sense of a manual stock movement.
type Direction string

const (
	StockIn  Direction = "IN"
	StockOut Direction = "OUT"
)

// ProductStatus marks whether a product is still sold.
type ProductStatus string

const (
	ProductAvailable    ProductStatus = "AVAILABLE"
	ProductDiscontinued ProductStatus = "DISCONTINUED"
)

// Category groups products.
type Category struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Product is a sellable item. Stock mirrors the inventory record's current quantity.
type Product struct {
	ID           int64
	CategoryID   int64
	CategoryName string
	Name         string
	Model        string
	Brand        string
	Color        string
	Price        decimal.Decimal
	Description  string
	ImagePath    string
	Status       ProductStatus
	Stock        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Customer is a registered buyer.
type Customer struct {
	ID        int64
	FullName  string
	Email     string
	Phone     string
	Address   string
	City      string
	District  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User is a staff account. Password is write-only.
type User struct {
	ID        int64
	Username  string
	Password  string
	FullName  string
	Email     string
	Phone     string
	Role      Role
	Status    UserStatus
	CreatedAt time.Time
}

// LineItem is one product line of an OrderDraft.
type LineItem struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// LineTotal is Quantity * UnitPrice.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// OrderDraft is an unvalidated, unpersisted order. Exactly one of CustomerID
// or WalkInName identifies the buyer.
type OrderDraft struct {
	CustomerID    int64
	WalkInName    string
	WalkInPhone   string
	UserID        int64
	Items         []LineItem
	Discount      decimal.Decimal
	PaymentMethod PaymentMethod
	Note          string
}

// Subtotal sums the line totals.
func (d OrderDraft) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range d.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Order is a persisted order header.
type Order struct {
	ID            int64
	Code          string
	CustomerID    int64
	CustomerName  string
	WalkInName    string
	WalkInPhone   string
	UserID        int64
	TotalAmount   decimal.Decimal
	Discount      decimal.Decimal
	FinalAmount   decimal.Decimal
	Status        OrderStatus
	PaymentMethod PaymentMethod
	Note          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []OrderItem
}

// OrderItem is a persisted order line.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int64
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// InventoryRecord is the per-product stock ledger. Current == In - Out.
type InventoryRecord struct {
	ID          int64
	ProductID   int64
	ProductName string
	Brand       string
	Model       string
	QuantityIn  int64
	QuantityOut int64
	Current     int64
	UpdatedAt   time.Time
}

// Consistent reports whether the ledger counters agree.
func (r InventoryRecord) Consistent() bool {
	return r.Current == r.QuantityIn-r.QuantityOut && r.Current >= 0
}
