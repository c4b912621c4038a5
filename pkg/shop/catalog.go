package shop

import (
	"context"
	"strings"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/storage"
)

// Catalog maintains categories, products, customers and staff accounts.
type Catalog struct {
	base
}

func NewCatalog(repo storage.Repository, opts ...Option) *Catalog {
	return &Catalog{base: newBase(repo, "catalog", opts)}
}

// read runs fn in a transaction and returns what it produced.
func read[T any](ctx context.Context, repo storage.Repository, fn func(storage.Tx) (T, error)) (T, error) {
	var out T
	err := repo.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func (c *Catalog) Categories(ctx context.Context) ([]core.Category, error) {
	return read(ctx, c.repo, func(tx storage.Tx) ([]core.Category, error) { return tx.ListCategories(ctx) })
}

func (c *Catalog) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	cat.Name = strings.TrimSpace(cat.Name)
	if err := core.ValidateCategory(cat); err != nil {
		return core.Category{}, err
	}
	err := c.repo.WithTx(ctx, func(tx storage.Tx) error { return tx.InsertCategory(ctx, &cat) })
	if err != nil {
		return core.Category{}, err
	}
	c.log.Infow("category created", "id", cat.ID, "name", cat.Name)
	return cat, nil
}

// Products lists products, optionally narrowed by a text query or category.
func (c *Catalog) Products(ctx context.Context, f storage.ProductFilter) ([]core.Product, error) {
	return read(ctx, c.repo, func(tx storage.Tx) ([]core.Product, error) { return tx.ListProducts(ctx, f) })
}

func (c *Catalog) Product(ctx context.Context, id int64) (core.Product, error) {
	return read(ctx, c.repo, func(tx storage.Tx) (core.Product, error) { return tx.GetProduct(ctx, id) })
}

// CreateProduct stores a product and opens its inventory ledger with
// p.Stock units received.
func (c *Catalog) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := core.ValidateProduct(p); err != nil {
		return core.Product{}, err
	}
	out, err := read(ctx, c.repo, func(tx storage.Tx) (core.Product, error) {
		if err := tx.InsertProduct(ctx, &p); err != nil {
			return core.Product{}, err
		}
		if err := tx.InsertInventory(ctx, p.ID, p.Stock); err != nil {
			return core.Product{}, err
		}
		return tx.GetProduct(ctx, p.ID)
	})
	if err != nil {
		return core.Product{}, err
	}
	c.log.Infow("product created", "id", out.ID, "name", out.Name, "stock", out.Stock)
	return out, nil
}

// UpdateProduct rewrites product fields. Stock only moves through inventory
// adjustments and orders.
func (c *Catalog) UpdateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Stock = 0
	if err := core.ValidateProduct(p); err != nil {
		return core.Product{}, err
	}
	return read(ctx, c.repo, func(tx storage.Tx) (core.Product, error) {
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return core.Product{}, err
		}
		return tx.GetProduct(ctx, p.ID)
	})
}

func (c *Catalog) DeleteProduct(ctx context.Context, id int64) error {
	return c.repo.WithTx(ctx, func(tx storage.Tx) error { return tx.DeleteProduct(ctx, id) })
}

// Customers lists customers whose name or phone contains query; an empty
// query lists all.
func (c *Catalog) Customers(ctx context.Context, query string) ([]core.Customer, error) {
	return read(ctx, c.repo, func(tx storage.Tx) ([]core.Customer, error) { return tx.ListCustomers(ctx, query) })
}

func (c *Catalog) Customer(ctx context.Context, id int64) (core.Customer, error) {
	return read(ctx, c.repo, func(tx storage.Tx) (core.Customer, error) { return tx.GetCustomer(ctx, id) })
}

func (c *Catalog) CreateCustomer(ctx context.Context, cu core.Customer) (core.Customer, error) {
	cu.FullName = strings.TrimSpace(cu.FullName)
	if err := core.ValidateCustomer(cu); err != nil {
		return core.Customer{}, err
	}
	err := c.repo.WithTx(ctx, func(tx storage.Tx) error { return tx.InsertCustomer(ctx, &cu) })
	if err != nil {
		return core.Customer{}, err
	}
	return cu, nil
}

func (c *Catalog) UpdateCustomer(ctx context.Context, cu core.Customer) (core.Customer, error) {
	cu.FullName = strings.TrimSpace(cu.FullName)
	if err := core.ValidateCustomer(cu); err != nil {
		return core.Customer{}, err
	}
	return read(ctx, c.repo, func(tx storage.Tx) (core.Customer, error) {
		if err := tx.UpdateCustomer(ctx, cu); err != nil {
			return core.Customer{}, err
		}
		return tx.GetCustomer(ctx, cu.ID)
	})
}

func (c *Catalog) DeleteCustomer(ctx context.Context, id int64) error {
	return c.repo.WithTx(ctx, func(tx storage.Tx) error { return tx.DeleteCustomer(ctx, id) })
}

// Users never carry passwords on the way out.
func (c *Catalog) Users(ctx context.Context) ([]core.User, error) {
	users, err := read(ctx, c.repo, func(tx storage.Tx) ([]core.User, error) { return tx.ListUsers(ctx) })
	for i := range users {
		users[i].Password = ""
	}
	return users, err
}

func (c *Catalog) User(ctx context.Context, id int64) (core.User, error) {
	u, err := read(ctx, c.repo, func(tx storage.Tx) (core.User, error) { return tx.GetUser(ctx, id) })
	u.Password = ""
	return u, err
}

func (c *Catalog) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	if u.Status == "" {
		u.Status = core.UserActive
	}
	if err := core.ValidateUser(u, true); err != nil {
		return core.User{}, err
	}
	if err := c.repo.WithTx(ctx, func(tx storage.Tx) error { return tx.InsertUser(ctx, &u) }); err != nil {
		return core.User{}, err
	}
	c.log.Infow("user created", "id", u.ID, "username", u.Username, "role", u.Role)
	u.Password = ""
	return u, nil
}

// UpdateUser changes profile, role and status; the password only when set.
// Usernames are immutable.
func (c *Catalog) UpdateUser(ctx context.Context, u core.User) (core.User, error) {
	return read(ctx, c.repo, func(tx storage.Tx) (core.User, error) {
		cur, err := tx.GetUser(ctx, u.ID)
		if err != nil {
			return core.User{}, err
		}
		u.Username = cur.Username
		if u.Status == "" {
			u.Status = cur.Status
		}
		if u.Role == "" {
			u.Role = cur.Role
		}
		if err := core.ValidateUser(u, false); err != nil {
			return core.User{}, err
		}
		if err := tx.UpdateUser(ctx, u); err != nil {
			return core.User{}, err
		}
		got, err := tx.GetUser(ctx, u.ID)
		got.Password = ""
		return got, err
	})
}

func (c *Catalog) DeleteUser(ctx context.Context, id int64) error {
	return c.repo.WithTx(ctx, func(tx storage.Tx) error { return tx.DeleteUser(ctx, id) })
}
