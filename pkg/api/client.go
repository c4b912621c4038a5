package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/ipc"
)

// ResponseError is a non-SUCCESS response surfaced as an error. It matches
// core.ErrUnauthorized and core.ErrNotFound with errors.Is.
type ResponseError struct {
	Status  ipc.Status
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *ResponseError) Is(target error) bool {
	switch e.Status {
	case ipc.StatusUnauthorized:
		return target == core.ErrUnauthorized
	case ipc.StatusNotFound:
		return target == core.ErrNotFound
	}
	return false
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      core.User
}

// Client is a typed facade over the connection manager. After Login it
// attaches the session token to every request.
type Client struct {
	conn *ipc.Client

	mu    sync.RWMutex
	token string
}

func NewClient(conn *ipc.Client) *Client {
	return &Client{conn: conn}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken resumes a session obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Do sends cmd and returns the response data, or a *ResponseError.
func (c *Client) Do(ctx context.Context, cmd Command) (ipc.Value, error) {
	resp := c.conn.SendRequest(ctx, Encode(cmd, c.Token()))
	if !resp.OK() {
		return ipc.Null(), &ResponseError{Status: resp.Status, Message: resp.Message}
	}
	return resp.Data, nil
}

func one[T any](ctx context.Context, c *Client, cmd Command, dec func(*ipc.Payload) (T, error)) (T, error) {
	data, err := c.Do(ctx, cmd)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeMap(data, dec)
}

func many[T any](ctx context.Context, c *Client, cmd Command, dec func(*ipc.Payload) (T, error)) ([]T, error) {
	data, err := c.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return decodeList(data, dec)
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, Ping{})
	return err
}

// Login authenticates and keeps the issued token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	res, err := one(ctx, c, Login{Username: username, Password: password}, decodeLogin)
	if err != nil {
		return LoginResult{}, err
	}
	c.SetToken(res.Token)
	return res, nil
}

func decodeLogin(p *ipc.Payload) (LoginResult, error) {
	f := fields{p: p}
	res := LoginResult{
		Token:     f.mustText("token"),
		ExpiresAt: f.time("expiresAt"),
	}
	user := f.mapOf("user")
	if f.err != nil {
		return LoginResult{}, f.err
	}
	u, err := decodeUser(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("user: %w", err)
	}
	res.User = u
	return res, nil
}

// Logout revokes the current token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, Logout{})
	c.SetToken("")
	return err
}

func (c *Client) Users(ctx context.Context) ([]core.User, error) {
	return many(ctx, c, ListUsers{}, decodeUser)
}

func (c *Client) User(ctx context.Context, id int64) (core.User, error) {
	return one(ctx, c, GetUser{ID: id}, decodeUser)
}

func (c *Client) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	return one(ctx, c, CreateUser{User: u}, decodeUser)
}

func (c *Client) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	return one(ctx, c, UpdateUser{User: u}, decodeUser)
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	_, err := c.Do(ctx, DeleteUser{ID: id})
	return err
}

func (c *Client) Products(ctx context.Context) ([]core.Product, error) {
	return many(ctx, c, ListProducts{}, decodeProduct)
}

func (c *Client) Product(ctx context.Context, id int64) (core.Product, error) {
	return one(ctx, c, GetProduct{ID: id}, decodeProduct)
}

func (c *Client) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	return one(ctx, c, CreateProduct{Product: p}, decodeProduct)
}

func (c *Client) UpdateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	return one(ctx, c, UpdateProduct{Product: p}, decodeProduct)
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	_, err := c.Do(ctx, DeleteProduct{ID: id})
	return err
}

func (c *Client) SearchProducts(ctx context.Context, keyword string) ([]core.Product, error) {
	return many(ctx, c, SearchProducts{Keyword: keyword}, decodeProduct)
}

func (c *Client) ProductsByCategory(ctx context.Context, categoryID int64) ([]core.Product, error) {
	return many(ctx, c, ProductsByCategory{CategoryID: categoryID}, decodeProduct)
}

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	return many(ctx, c, ListCategories{}, decodeCategory)
}

func (c *Client) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	return one(ctx, c, CreateCategory{Category: cat}, decodeCategory)
}

func (c *Client) Customers(ctx context.Context) ([]core.Customer, error) {
	return many(ctx, c, ListCustomers{}, decodeCustomer)
}

func (c *Client) Customer(ctx context.Context, id int64) (core.Customer, error) {
	return one(ctx, c, GetCustomer{ID: id}, decodeCustomer)
}

func (c *Client) CreateCustomer(ctx context.Context, cu core.Customer) (core.Customer, error) {
	return one(ctx, c, CreateCustomer{Customer: cu}, decodeCustomer)
}

func (c *Client) UpdateCustomer(ctx context.Context, cu core.Customer) (core.Customer, error) {
	return one(ctx, c, UpdateCustomer{Customer: cu}, decodeCustomer)
}

func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	_, err := c.Do(ctx, DeleteCustomer{ID: id})
	return err
}

func (c *Client) SearchCustomers(ctx context.Context, keyword string) ([]core.Customer, error) {
	return many(ctx, c, SearchCustomers{Keyword: keyword}, decodeCustomer)
}

func (c *Client) Orders(ctx context.Context) ([]core.Order, error) {
	return many(ctx, c, ListOrders{}, decodeOrder)
}

func (c *Client) Order(ctx context.Context, id int64) (core.Order, error) {
	return one(ctx, c, GetOrder{ID: id}, decodeOrder)
}

// CreateOrder submits a draft; the order comes back with its items.
func (c *Client) CreateOrder(ctx context.Context, d core.OrderDraft) (core.Order, error) {
	return one(ctx, c, CreateOrder{Draft: d}, decodeOrder)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status core.OrderStatus) (core.Order, error) {
	return one(ctx, c, UpdateOrderStatus{ID: id, Status: status}, decodeOrder)
}

func (c *Client) OrdersByCustomer(ctx context.Context, customerID int64) ([]core.Order, error) {
	return many(ctx, c, OrdersByCustomer{CustomerID: customerID}, decodeOrder)
}

func (c *Client) OrderItems(ctx context.Context, orderID int64) ([]core.OrderItem, error) {
	return many(ctx, c, OrderItems{OrderID: orderID}, decodeOrderItem)
}

func (c *Client) Inventory(ctx context.Context) ([]core.InventoryRecord, error) {
	return many(ctx, c, ListInventory{}, decodeInventory)
}

func (c *Client) AdjustInventory(ctx context.Context, productID, quantity int64, dir core.Direction) (core.InventoryRecord, error) {
	return one(ctx, c, AdjustInventory{ProductID: productID, Quantity: quantity, Direction: dir}, decodeInventory)
}

// LowStock lists products under threshold; zero uses the server's setting.
func (c *Client) LowStock(ctx context.Context, threshold int64) ([]core.Product, error) {
	return many(ctx, c, LowStock{Threshold: threshold}, decodeProduct)
}
