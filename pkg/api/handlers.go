package api

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/ipc"
	"github.com/rexliu/motoshop/pkg/session"
	"github.com/rexliu/motoshop/pkg/shop"
	"github.com/rexliu/motoshop/pkg/storage"
)

// Services are the shop components the handlers call into.
type Services struct {
	Orders    *shop.Orders
	Inventory *shop.Inventory
	Catalog   *shop.Catalog
	Auth      *shop.Auth
}

// Handlers serves every request kind against Services.
type Handlers struct {
	svc          Services
	requireToken bool
	log          *zap.SugaredLogger
}

// NewHandlers builds the handler set. With requireToken every kind except
// PING and LOGIN needs a valid session token.
func NewHandlers(svc Services, requireToken bool, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		svc:          svc,
		requireToken: requireToken,
		log:          logger.Named("api").Sugar(),
	}
}

type sessionKey struct{}

// SessionFrom returns the session attached by the token guard, if any.
func SessionFrom(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(session.Session)
	return s, ok
}

// Register installs a handler for every kind on r.
func (h *Handlers) Register(r *ipc.Router) {
	routes := map[string]ipc.HandlerFunc{
		KindPing:   handle(h, h.ping),
		KindLogin:  handle(h, h.login),
		KindLogout: h.logout,

		KindGetAllUsers: handle(h, h.listUsers),
		KindGetUserByID: handle(h, h.getUser),
		KindCreateUser:  handle(h, h.createUser),
		KindUpdateUser:  handle(h, h.updateUser),
		KindDeleteUser:  handle(h, h.deleteUser),

		KindGetAllProducts:        handle(h, h.listProducts),
		KindGetProductByID:        handle(h, h.getProduct),
		KindCreateProduct:         handle(h, h.createProduct),
		KindUpdateProduct:         handle(h, h.updateProduct),
		KindDeleteProduct:         handle(h, h.deleteProduct),
		KindSearchProducts:        handle(h, h.searchProducts),
		KindGetProductsByCategory: handle(h, h.productsByCategory),

		KindGetAllCategories: handle(h, h.listCategories),
		KindCreateCategory:   handle(h, h.createCategory),

		KindGetAllCustomers: handle(h, h.listCustomers),
		KindGetCustomerByID: handle(h, h.getCustomer),
		KindCreateCustomer:  handle(h, h.createCustomer),
		KindUpdateCustomer:  handle(h, h.updateCustomer),
		KindDeleteCustomer:  handle(h, h.deleteCustomer),
		KindSearchCustomers: handle(h, h.searchCustomers),

		KindGetAllOrders:        handle(h, h.listOrders),
		KindGetOrderByID:        handle(h, h.getOrder),
		KindCreateOrder:         handle(h, h.createOrder),
		KindUpdateOrderStatus:   handle(h, h.updateOrderStatus),
		KindGetOrdersByCustomer: handle(h, h.ordersByCustomer),
		KindGetOrderItems:       handle(h, h.orderItems),

		KindGetAllInventory:     handle(h, h.listInventory),
		KindUpdateInventory:     handle(h, h.adjustInventory),
		KindGetLowStockProducts: handle(h, h.lowStock),
	}
	for kind, fn := range routes {
		r.Register(kind, h.guard(kind, fn))
	}
}

// guard resolves the session token and attaches it to ctx.
func (h *Handlers) guard(kind string, next ipc.HandlerFunc) ipc.HandlerFunc {
	return func(ctx context.Context, req *ipc.Request) *ipc.Response {
		if req.Payload == nil {
			req.Payload = ipc.NewPayload()
		}
		if public[kind] {
			return next(ctx, req)
		}
		if req.AuthToken == "" {
			if h.requireToken {
				return ipc.Unauthorized("Login required")
			}
			return next(ctx, req)
		}
		s, err := h.svc.Auth.Validate(ctx, req.AuthToken)
		if err != nil {
			if errors.Is(err, core.ErrUnauthorized) {
				return ipc.Unauthorized("Invalid or expired session")
			}
			return h.fail(kind, err)
		}
		return next(context.WithValue(ctx, sessionKey{}, s), req)
	}
}

// decodable is a pointer to a Command that can read itself from a payload.
type decodable[T any] interface {
	*T
	decode(*ipc.Payload) error
}

// handle adapts a typed handler to the router.
func handle[T any, PT decodable[T]](h *Handlers, fn func(context.Context, T) (string, ipc.Value, error)) ipc.HandlerFunc {
	return func(ctx context.Context, req *ipc.Request) *ipc.Response {
		var cmd T
		if err := PT(&cmd).decode(req.Payload); err != nil {
			return h.fail(req.Kind, err)
		}
		msg, data, err := fn(ctx, cmd)
		if err != nil {
			return h.fail(req.Kind, err)
		}
		return ipc.Success(msg, data)
	}
}

// statusFor maps a service error onto a response status and message.
func statusFor(err error) (ipc.Status, string) {
	var verr *core.ValidationError
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return ipc.StatusUnauthorized, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return ipc.StatusNotFound, err.Error()
	case errors.Is(err, ipc.ErrMissingField), errors.Is(err, ipc.ErrFieldType):
		return ipc.StatusError, "Invalid request: " + err.Error()
	case errors.As(err, &verr):
		return ipc.StatusError, verr.Error()
	case errors.Is(err, core.ErrValidation):
		return ipc.StatusError, err.Error()
	default:
		return ipc.StatusError, "Server error"
	}
}

func (h *Handlers) fail(kind string, err error) *ipc.Response {
	status, msg := statusFor(err)
	if status == ipc.StatusError && msg == "Server error" {
		h.log.Errorw("request failed", "kind", kind, "error", err)
	} else {
		h.log.Debugw("request rejected", "kind", kind, "status", status, "error", err)
	}
	return &ipc.Response{Status: status, Message: msg}
}

func (h *Handlers) ping(context.Context, Ping) (string, ipc.Value, error) {
	return "pong", ipc.Null(), nil
}

func (h *Handlers) login(ctx context.Context, c Login) (string, ipc.Value, error) {
	s, u, err := h.svc.Auth.Login(ctx, c.Username, c.Password)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Login successful", sessionValue(s, u), nil
}

func (h *Handlers) logout(ctx context.Context, req *ipc.Request) *ipc.Response {
	if req.AuthToken == "" {
		return ipc.Success("Logged out", ipc.Null())
	}
	if err := h.svc.Auth.Logout(ctx, req.AuthToken); err != nil {
		return h.fail(req.Kind, err)
	}
	return ipc.Success("Logged out", ipc.Null())
}

func (h *Handlers) listUsers(ctx context.Context, _ ListUsers) (string, ipc.Value, error) {
	us, err := h.svc.Catalog.Users(ctx)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Users retrieved", listOf(us, userValue), nil
}

func (h *Handlers) getUser(ctx context.Context, c GetUser) (string, ipc.Value, error) {
	u, err := h.svc.Catalog.User(ctx, c.ID)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "User found", userValue(u), nil
}

func (h *Handlers) createUser(ctx context.Context, c CreateUser) (string, ipc.Value, error) {
	u, err := h.svc.Catalog.CreateUser(ctx, c.User)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "User created", userValue(u), nil
}

func (h *Handlers) updateUser(ctx context.Context, c UpdateUser) (string, ipc.Value, error) {
	u, err := h.svc.Catalog.UpdateUser(ctx, c.User)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "User updated", userValue(u), nil
}

func (h *Handlers) deleteUser(ctx context.Context, c DeleteUser) (string, ipc.Value, error) {
	if s, ok := SessionFrom(ctx); ok && s.UserID == c.ID {
		return "", ipc.Null(), core.Invalid("id", "cannot delete the signed-in user")
	}
	if err := h.svc.Catalog.DeleteUser(ctx, c.ID); err != nil {
		return "", ipc.Null(), err
	}
	return "User deleted", ipc.Null(), nil
}

func (h *Handlers) listProducts(ctx context.Context, _ ListProducts) (string, ipc.Value, error) {
	return h.products(ctx, storage.ProductFilter{})
}

func (h *Handlers) searchProducts(ctx context.Context, c SearchProducts) (string, ipc.Value, error) {
	return h.products(ctx, storage.ProductFilter{Query: c.Keyword})
}

func (h *Handlers) productsByCategory(ctx context.Context, c ProductsByCategory) (string, ipc.Value, error) {
	return h.products(ctx, storage.ProductFilter{CategoryID: c.CategoryID})
}

func (h *Handlers) products(ctx context.Context, f storage.ProductFilter) (string, ipc.Value, error) {
	ps, err := h.svc.Catalog.Products(ctx, f)
	if err != nil {
		return "", ipc.Null(), err
	}
	return fmt.Sprintf("%d products", len(ps)), listOf(ps, productValue), nil
}

func (h *Handlers) getProduct(ctx context.Context, c GetProduct) (string, ipc.Value, error) {
	p, err := h.svc.Catalog.Product(ctx, c.ID)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Product found", productValue(p), nil
}

func (h *Handlers) createProduct(ctx context.Context, c CreateProduct) (string, ipc.Value, error) {
	p, err := h.svc.Catalog.CreateProduct(ctx, c.Product)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Product created", productValue(p), nil
}

func (h *Handlers) updateProduct(ctx context.Context, c UpdateProduct) (string, ipc.Value, error) {
	p, err := h.svc.Catalog.UpdateProduct(ctx, c.Product)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Product updated", productValue(p), nil
}

func (h *Handlers) deleteProduct(ctx context.Context, c DeleteProduct) (string, ipc.Value, error) {
	if err := h.svc.Catalog.DeleteProduct(ctx, c.ID); err != nil {
		return "", ipc.Null(), err
	}
	return "Product deleted", ipc.Null(), nil
}

func (h *Handlers) listCategories(ctx context.Context, _ ListCategories) (string, ipc.Value, error) {
	cs, err := h.svc.Catalog.Categories(ctx)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Categories retrieved", listOf(cs, categoryValue), nil
}

func (h *Handlers) createCategory(ctx context.Context, c CreateCategory) (string, ipc.Value, error) {
	cat, err := h.svc.Catalog.CreateCategory(ctx, c.Category)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Category created", categoryValue(cat), nil
}

func (h *Handlers) listCustomers(ctx context.Context, _ ListCustomers) (string, ipc.Value, error) {
	return h.customers(ctx, "")
}

func (h *Handlers) searchCustomers(ctx context.Context, c SearchCustomers) (string, ipc.Value, error) {
	return h.customers(ctx, c.Keyword)
}

func (h *Handlers) customers(ctx context.Context, query string) (string, ipc.Value, error) {
	cs, err := h.svc.Catalog.Customers(ctx, query)
	if err != nil {
		return "", ipc.Null(), err
	}
	return fmt.Sprintf("%d customers", len(cs)), listOf(cs, customerValue), nil
}

func (h *Handlers) getCustomer(ctx context.Context, c GetCustomer) (string, ipc.Value, error) {
	cu, err := h.svc.Catalog.Customer(ctx, c.ID)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Customer found", customerValue(cu), nil
}

func (h *Handlers) createCustomer(ctx context.Context, c CreateCustomer) (string, ipc.Value, error) {
	cu, err := h.svc.Catalog.CreateCustomer(ctx, c.Customer)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Customer created", customerValue(cu), nil
}

func (h *Handlers) updateCustomer(ctx context.Context, c UpdateCustomer) (string, ipc.Value, error) {
	cu, err := h.svc.Catalog.UpdateCustomer(ctx, c.Customer)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Customer updated", customerValue(cu), nil
}

func (h *Handlers) deleteCustomer(ctx context.Context, c DeleteCustomer) (string, ipc.Value, error) {
	if err := h.svc.Catalog.DeleteCustomer(ctx, c.ID); err != nil {
		return "", ipc.Null(), err
	}
	return "Customer deleted", ipc.Null(), nil
}

func (h *Handlers) listOrders(ctx context.Context, _ ListOrders) (string, ipc.Value, error) {
	orders, err := h.svc.Orders.List(ctx)
	if err != nil {
		return "", ipc.Null(), err
	}
	return fmt.Sprintf("%d orders", len(orders)), listOf(orders, orderValue), nil
}

func (h *Handlers) ordersByCustomer(ctx context.Context, c OrdersByCustomer) (string, ipc.Value, error) {
	orders, err := h.svc.Orders.ByCustomer(ctx, c.CustomerID)
	if err != nil {
		return "", ipc.Null(), err
	}
	return fmt.Sprintf("%d orders", len(orders)), listOf(orders, orderValue), nil
}

func (h *Handlers) getOrder(ctx context.Context, c GetOrder) (string, ipc.Value, error) {
	o, err := h.svc.Orders.Get(ctx, c.ID)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Order found", orderValue(o), nil
}

func (h *Handlers) createOrder(ctx context.Context, c CreateOrder) (string, ipc.Value, error) {
	draft := c.Draft
	if s, ok := SessionFrom(ctx); ok && draft.UserID == 0 {
		draft.UserID = s.UserID
	}
	o, err := h.svc.Orders.Create(ctx, draft)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Order created: " + o.Code, orderValue(o), nil
}

func (h *Handlers) updateOrderStatus(ctx context.Context, c UpdateOrderStatus) (string, ipc.Value, error) {
	o, err := h.svc.Orders.UpdateStatus(ctx, c.ID, c.Status)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Order status updated", orderValue(o), nil
}

func (h *Handlers) orderItems(ctx context.Context, c OrderItems) (string, ipc.Value, error) {
	items, err := h.svc.Orders.Items(ctx, c.OrderID)
	if err != nil {
		return "", ipc.Null(), err
	}
	return fmt.Sprintf("%d items", len(items)), listOf(items, orderItemValue), nil
}

func (h *Handlers) listInventory(ctx context.Context, _ ListInventory) (string, ipc.Value, error) {
	rs, err := h.svc.Inventory.List(ctx)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Inventory retrieved", listOf(rs, inventoryValue), nil
}

func (h *Handlers) adjustInventory(ctx context.Context, c AdjustInventory) (string, ipc.Value, error) {
	rec, err := h.svc.Inventory.Adjust(ctx, c.ProductID, c.Quantity, c.Direction)
	if err != nil {
		return "", ipc.Null(), err
	}
	return "Inventory updated", inventoryValue(rec), nil
}

func (h *Handlers) lowStock(ctx context.Context, c LowStock) (string, ipc.Value, error) {
	ps, err := h.svc.Inventory.LowStock(ctx, c.Threshold)
	if err != nil {
		return "", ipc.Null(), err
	}
	return fmt.Sprintf("%d products low on stock", len(ps)), listOf(ps, productValue), nil
}
