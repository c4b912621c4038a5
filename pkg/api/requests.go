package api

import (
	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/ipc"
)

// Command is the typed form of one request kind. Encode turns it into the
// open wire request; handlers decode the wire request back into the same type.
type Command interface {
	Kind() string
	encode(p *ipc.Payload)
}

// Encode builds the wire request for c, attaching token when non-empty.
func Encode(c Command, token string) *ipc.Request {
	req := ipc.NewRequest(c.Kind())
	c.encode(req.Payload)
	req.AuthToken = token
	return req
}

func decodeID(p *ipc.Payload, key string) (int64, error) {
	return p.Int64(key)
}

func decodeEntity[T any](p *ipc.Payload, key string, dec func(*ipc.Payload) (T, error)) (T, error) {
	m, err := p.Map(key)
	if err != nil {
		var zero T
		return zero, err
	}
	return dec(m)
}

// noPayload is embedded by kinds that carry no fields.
type noPayload struct{}

func (noPayload) encode(*ipc.Payload) {}
func (noPayload) decode(*ipc.Payload) error { return nil }

type Ping struct{ noPayload }

func (Ping) Kind() string { return KindPing }

type Login struct {
	Username string
	Password string
}

func (Login) Kind() string { return KindLogin }

func (c Login) encode(p *ipc.Payload) {
	p.Set("username", ipc.StringValue(c.Username)).
		Set("password", ipc.StringValue(c.Password))
}

func (c *Login) decode(p *ipc.Payload) error {
	f := fields{p: p}
	c.Username = f.mustText("username")
	c.Password = f.mustText("password")
	return f.err
}

type Logout struct{ noPayload }

func (Logout) Kind() string { return KindLogout }

// Users.

type ListUsers struct{ noPayload }

func (ListUsers) Kind() string { return KindGetAllUsers }

type GetUser struct{ ID int64 }

func (GetUser) Kind() string { return KindGetUserByID }
func (c GetUser) encode(p *ipc.Payload) { p.Set("id", ipc.Int64Value(c.ID)) }
func (c *GetUser) decode(p *ipc.Payload) (err error) {
	c.ID, err = decodeID(p, "id")
	return err
}

type CreateUser struct{ User core.User }

func (CreateUser) Kind() string { return KindCreateUser }
func (c CreateUser) encode(p *ipc.Payload) { p.Set("user", userWithPassword(c.User)) }
func (c *CreateUser) decode(p *ipc.Payload) (err error) {
	c.User, err = decodeEntity(p, "user", decodeUser)
	return err
}

type UpdateUser struct{ User core.User }

func (UpdateUser) Kind() string { return KindUpdateUser }
func (c UpdateUser) encode(p *ipc.Payload) { p.Set("user", userWithPassword(c.User)) }
func (c *UpdateUser) decode(p *ipc.Payload) (err error) {
	c.User, err = decodeEntity(p, "user", decodeUser)
	return err
}

type DeleteUser struct{ ID int64 }

func (DeleteUser) Kind() string { return KindDeleteUser }
func (c DeleteUser) encode(p *ipc.Payload) { p.Set("id", ipc.Int64Value(c.ID)) }
func (c *DeleteUser) decode(p *ipc.Payload) (err error) {
	c.ID, err = decodeID(p, "id")
	return err
}

// Products and categories.

type ListProducts struct{ noPayload }

func (ListProducts) Kind() string { return KindGetAllProducts }

type GetProduct struct{ ID int64 }

func (GetProduct) Kind() string { return KindGetProductByID }
func (c GetProduct) encode(p *ipc.Payload) { p.Set("id", ipc.Int64Value(c.ID)) }
func (c *GetProduct) decode(p *ipc.Payload) (err error) {
	c.ID, err = decodeID(p, "id")
	return err
}

type CreateProduct struct{ Product core.Product }

func (CreateProduct) Kind() string { return KindCreateProduct }
func (c CreateProduct) encode(p *ipc.Payload) { p.Set("product", productValue(c.Product)) }
func (c *CreateProduct) decode(p *ipc.Payload) (err error) {
	c.Product, err = decodeEntity(p, "product", decodeProduct)
	return err
}

type UpdateProduct struct{ Product core.Product }

func (UpdateProduct) Kind() string { return KindUpdateProduct }
func (c UpdateProduct) encode(p *ipc.Payload) { p.Set("product", productValue(c.Product)) }
func (c *UpdateProduct) decode(p *ipc.Payload) (err error) {
	c.Product, err = decodeEntity(p, "product", decodeProduct)
	return err
}

type DeleteProduct struct{ ID int64 }

func (DeleteProduct) Kind() string { return KindDeleteProduct }
func (c DeleteProduct) encode(p *ipc.Payload) { p.Set("id", ipc.Int64Value(c.ID)) }
func (c *DeleteProduct) decode(p *ipc.Payload) (err error) {
	c.ID, err = decodeID(p, "id")
	return err
}

// SearchProducts matches keyword against name, brand and model.
type SearchProducts struct{ Keyword string }

func (SearchProducts) Kind() string { return KindSearchProducts }
func (c SearchProducts) encode(p *ipc.Payload) { p.Set("keyword", ipc.StringValue(c.Keyword)) }
func (c *SearchProducts) decode(p *ipc.Payload) (err error) {
	c.Keyword, err = p.OptText("keyword")
	return err
}

type ProductsByCategory struct{ CategoryID int64 }

func (ProductsByCategory) Kind() string { return KindGetProductsByCategory }
func (c ProductsByCategory) encode(p *ipc.Payload) {
	p.Set("categoryId", ipc.Int64Value(c.CategoryID))
}
func (c *ProductsByCategory) decode(p *ipc.Payload) (err error) {
	c.CategoryID, err = decodeID(p, "categoryId")
	return err
}

type ListCategories struct{ noPayload }

func (ListCategories) Kind() string { return KindGetAllCategories }

type CreateCategory struct{ Category core.Category }

func (CreateCategory) Kind() string { return KindCreateCategory }
func (c CreateCategory) encode(p *ipc.Payload) { p.Set("category", categoryValue(c.Category)) }
func (c *CreateCategory) decode(p *ipc.Payload) (err error) {
	c.Category, err = decodeEntity(p, "category", decodeCategory)
	return err
}

// Customers.

type ListCustomers struct{ noPayload }

func (ListCustomers) Kind() string { return KindGetAllCustomers }

type GetCustomer struct{ ID int64 }

func (GetCustomer) Kind() string { return KindGetCustomerByID }
func (c GetCustomer) encode(p *ipc.Payload) { p.Set("id", ipc.Int64Value(c.ID)) }
func (c *GetCustomer) decode(p *ipc.Payload) (err error) {
	c.ID, err = decodeID(p, "id")
	return err
}

type CreateCustomer struct{ Customer core.Customer }

func (CreateCustomer) Kind() string { return KindCreateCustomer }
func (c CreateCustomer) encode(p *ipc.Payload) { p.Set("customer", customerValue(c.Customer)) }
func (c *CreateCustomer) decode(p *ipc.Payload) (err error) {
	c.Customer, err = decodeEntity(p, "customer", decodeCustomer)
	return err
}

type UpdateCustomer struct{ Customer core.Customer }

func (UpdateCustomer) Kind() string { return KindUpdateCustomer }
func (c UpdateCustomer) encode(p *ipc.Payload) { p.Set("customer", customerValue(c.Customer)) }
func (c *UpdateCustomer) decode(p *ipc.Payload) (err error) {
	c.Customer, err = decodeEntity(p, "customer", decodeCustomer)
	return err
}

type DeleteCustomer struct{ ID int64 }

func (DeleteCustomer) Kind() string { return KindDeleteCustomer }
func (c DeleteCustomer) encode(p *ipc.Payload) { p.Set("id", ipc.Int64Value(c.ID)) }
func (c *DeleteCustomer) decode(p *ipc.Payload) (err error) {
	c.ID, err = decodeID(p, "id")
	return err
}

// SearchCustomers matches keyword against full name and phone.
type SearchCustomers struct{ Keyword string }

func (SearchCustomers) Kind() string { return KindSearchCustomers }
func (c SearchCustomers) encode(p *ipc.Payload) { p.Set("keyword", ipc.StringValue(c.Keyword)) }
func (c *SearchCustomers) decode(p *ipc.Payload) (err error) {
	c.Keyword, err = p.OptText("keyword")
	return err
}

// Orders.

type ListOrders struct{ noPayload }

func (ListOrders) Kind() string { return KindGetAllOrders }

type GetOrder struct{ ID int64 }

func (GetOrder) Kind() string { return KindGetOrderByID }
func (c GetOrder) encode(p *ipc.Payload) { p.Set("id", ipc.Int64Value(c.ID)) }
func (c *GetOrder) decode(p *ipc.Payload) (err error) {
	c.ID, err = decodeID(p, "id")
	return err
}

// CreateOrder carries the draft under "order". UserID is filled from the
// session when the draft leaves it zero.
type CreateOrder struct{ Draft core.OrderDraft }

func (CreateOrder) Kind() string { return KindCreateOrder }
func (c CreateOrder) encode(p *ipc.Payload) { p.Set("order", draftValue(c.Draft)) }
func (c *CreateOrder) decode(p *ipc.Payload) (err error) {
	c.Draft, err = decodeEntity(p, "order", decodeDraft)
	return err
}

type UpdateOrderStatus struct {
	ID     int64
	Status core.OrderStatus
}

func (UpdateOrderStatus) Kind() string { return KindUpdateOrderStatus }

func (c UpdateOrderStatus) encode(p *ipc.Payload) {
	p.Set("id", ipc.Int64Value(c.ID)).
		Set("status", ipc.StringValue(string(c.Status)))
}

func (c *UpdateOrderStatus) decode(p *ipc.Payload) error {
	f := fields{p: p}
	c.ID = f.mustInt64("id")
	status := f.mustText("status")
	if f.err != nil {
		return f.err
	}
	s, err := core.ParseOrderStatus(status)
	if err != nil {
		return err
	}
	c.Status = s
	return nil
}

type OrdersByCustomer struct{ CustomerID int64 }

func (OrdersByCustomer) Kind() string { return KindGetOrdersByCustomer }
func (c OrdersByCustomer) encode(p *ipc.Payload) {
	p.Set("customerId", ipc.Int64Value(c.CustomerID))
}
func (c *OrdersByCustomer) decode(p *ipc.Payload) (err error) {
	c.CustomerID, err = decodeID(p, "customerId")
	return err
}

type OrderItems struct{ OrderID int64 }

func (OrderItems) Kind() string { return KindGetOrderItems }
func (c OrderItems) encode(p *ipc.Payload) { p.Set("orderId", ipc.Int64Value(c.OrderID)) }
func (c *OrderItems) decode(p *ipc.Payload) (err error) {
	c.OrderID, err = decodeID(p, "orderId")
	return err
}

// Inventory.

type ListInventory struct{ noPayload }

func (ListInventory) Kind() string { return KindGetAllInventory }

// AdjustInventory is a manual stock movement. Direction travels as "type".
type AdjustInventory struct {
	ProductID int64
	Quantity  int64
	Direction core.Direction
}

func (AdjustInventory) Kind() string { return KindUpdateInventory }

func (c AdjustInventory) encode(p *ipc.Payload) {
	p.Set("productId", ipc.Int64Value(c.ProductID)).
		Set("quantityChange", ipc.Int64Value(c.Quantity)).
		Set("type", ipc.StringValue(string(c.Direction)))
}

func (c *AdjustInventory) decode(p *ipc.Payload) error {
	f := fields{p: p}
	c.ProductID = f.mustInt64("productId")
	c.Quantity = f.mustInt64("quantityChange")
	c.Direction = core.Direction(f.mustText("type"))
	return f.err
}

// LowStock lists products below Threshold; zero uses the server default.
type LowStock struct{ Threshold int64 }

func (LowStock) Kind() string { return KindGetLowStockProducts }

func (c LowStock) encode(p *ipc.Payload) {
	if c.Threshold > 0 {
		p.Set("threshold", ipc.Int64Value(c.Threshold))
	}
}

func (c *LowStock) decode(p *ipc.Payload) (err error) {
	c.Threshold, err = p.OptInt64("threshold")
	return err
}
