package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rexliu/motoshop/pkg/core"
	"github.com/rexliu/motoshop/pkg/storage"
)

// Tx implements storage.Tx over one database/sql transaction.
type Tx struct {
	tx *sql.Tx
	d  *dialect
}

var _ storage.Tx = (*Tx)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func (t *Tx) exec(ctx context.Context, what, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return nil, t.d.classify(err, what)
	}
	return res, nil
}

// insert runs an INSERT ... RETURNING id.
func (t *Tx) insert(ctx context.Context, what, query string, args ...any) (int64, error) {
	var id int64
	if err := t.tx.QueryRowContext(ctx, t.d.rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, t.d.classify(err, what)
	}
	return id, nil
}

// mustAffect reports core.ErrNotFound when the statement touched no rows.
func (t *Tx) mustAffect(ctx context.Context, what, query string, args ...any) error {
	res, err := t.exec(ctx, what, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return t.d.classify(err, what)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

func (t *Tx) queryRows(ctx context.Context, what, query string, args []any, each func(scanner) error) error {
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(query), args...)
	if err != nil {
		return t.d.classify(err, what)
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return t.d.classify(err, what)
	}
	return nil
}

func now() int64 { return time.Now().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// moneyText keeps at least two fractional digits.
func moneyText(d decimal.Decimal) string {
	if d.Exponent() < -2 {
		return d.String()
	}
	return d.StringFixed(2)
}

func parseMoney(s, what string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: bad amount %q", core.ErrPersistence, what, s)
	}
	return d, nil
}

func likePattern(q string) string {
	return "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
}

// Categories.

func (t *Tx) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	err := t.queryRows(ctx, "category", `SELECT id, name, description, created_at FROM categories ORDER BY name`, nil,
		func(r scanner) error {
			var c core.Category
			var created int64
			if err := r.Scan(&c.ID, &c.Name, &c.Description, &created); err != nil {
				return t.d.classify(err, "category")
			}
			c.CreatedAt = fromMillis(created)
			out = append(out, c)
			return nil
		})
	return out, err
}

func (t *Tx) InsertCategory(ctx context.Context, c *core.Category) error {
	ts := now()
	id, err := t.insert(ctx, "category", `INSERT INTO categories(name, description, created_at) VALUES(?,?,?)`,
		strings.TrimSpace(c.Name), c.Description, ts)
	if err != nil {
		return err
	}
	c.ID, c.CreatedAt = id, fromMillis(ts)
	return nil
}

// Products.

const productColumns = `SELECT p.id, COALESCE(p.category_id, 0), COALESCE(c.name, ''), p.name, p.model, p.brand,
	p.color, p.price, p.description, p.image_path, p.status, COALESCE(i.quantity_current, 0),
	p.created_at, p.updated_at
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
	LEFT JOIN inventory i ON i.product_id = p.id`

func (t *Tx) scanProduct(r scanner) (core.Product, error) {
	var (
		p                core.Product
		price, status    string
		created, updated int64
	)
	if err := r.Scan(&p.ID, &p.CategoryID, &p.CategoryName, &p.Name, &p.Model, &p.Brand,
		&p.Color, &price, &p.Description, &p.ImagePath, &status, &p.Stock, &created, &updated); err != nil {
		return core.Product{}, t.d.classify(err, "product")
	}
	var err error
	if p.Price, err = parseMoney(price, "product"); err != nil {
		return core.Product{}, err
	}
	p.Status = core.ProductStatus(status)
	p.CreatedAt, p.UpdatedAt = fromMillis(created), fromMillis(updated)
	return p, nil
}

func (t *Tx) ListProducts(ctx context.Context, f storage.ProductFilter) ([]core.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != 0 {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if strings.TrimSpace(f.Query) != "" {
		where = append(where, "(LOWER(p.name) LIKE ? OR LOWER(p.brand) LIKE ? OR LOWER(p.model) LIKE ?)")
		pat := likePattern(f.Query)
		args = append(args, pat, pat, pat)
	}
	query := productColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.id DESC"

	var out []core.Product
	err := t.queryRows(ctx, "product", query, args, func(r scanner) error {
		p, err := t.scanProduct(r)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (t *Tx) GetProduct(ctx context.Context, id int64) (core.Product, error) {
	row := t.tx.QueryRowContext(ctx, t.d.rebind(productColumns+" WHERE p.id = ?"), id)
	return t.scanProduct(row)
}

func (t *Tx) InsertProduct(ctx context.Context, p *core.Product) error {
	ts := now()
	if p.Status == "" {
		p.Status = core.ProductAvailable
	}
	id, err := t.insert(ctx, "product", `INSERT INTO products(category_id, name, model, brand, color, price,
		description, image_path, status, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		nullID(p.CategoryID), p.Name, p.Model, p.Brand, p.Color, moneyText(p.Price),
		p.Description, p.ImagePath, string(p.Status), ts, ts)
	if err != nil {
		return err
	}
	p.ID = id
	p.CreatedAt, p.UpdatedAt = fromMillis(ts), fromMillis(ts)
	return nil
}

func (t *Tx) UpdateProduct(ctx context.Context, p core.Product) error {
	if p.Status == "" {
		p.Status = core.ProductAvailable
	}
	return t.mustAffect(ctx, "product", `UPDATE products SET category_id = ?, name = ?, model = ?, brand = ?,
		color = ?, price = ?, description = ?, image_path = ?, status = ?, updated_at = ? WHERE id = ?`,
		nullID(p.CategoryID), p.Name, p.Model, p.Brand, p.Color, moneyText(p.Price),
		p.Description, p.ImagePath, string(p.Status), now(), p.ID)
}

func (t *Tx) DeleteProduct(ctx context.Context, id int64) error {
	return t.mustAffect(ctx, "product", `DELETE FROM products WHERE id = ?`, id)
}

// Customers.

const customerColumns = `SELECT id, full_name, email, phone, address, city, district, created_at, updated_at FROM customers`

func (t *Tx) scanCustomer(r scanner) (core.Customer, error) {
	var (
		c                core.Customer
		created, updated int64
	)
	if err := r.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.Address, &c.City, &c.District,
		&created, &updated); err != nil {
		return core.Customer{}, t.d.classify(err, "customer")
	}
	c.CreatedAt, c.UpdatedAt = fromMillis(created), fromMillis(updated)
	return c, nil
}

// ListCustomers returns all customers, or those whose name or phone contains query.
func (t *Tx) ListCustomers(ctx context.Context, query string) ([]core.Customer, error) {
	q := customerColumns
	var args []any
	if strings.TrimSpace(query) != "" {
		q += " WHERE LOWER(full_name) LIKE ? OR phone LIKE ?"
		pat := likePattern(query)
		args = append(args, pat, pat)
	}
	q += " ORDER BY id DESC"
	var out []core.Customer
	err := t.queryRows(ctx, "customer", q, args, func(r scanner) error {
		c, err := t.scanCustomer(r)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func (t *Tx) GetCustomer(ctx context.Context, id int64) (core.Customer, error) {
	return t.scanCustomer(t.tx.QueryRowContext(ctx, t.d.rebind(customerColumns+" WHERE id = ?"), id))
}

func (t *Tx) InsertCustomer(ctx context.Context, c *core.Customer) error {
	ts := now()
	id, err := t.insert(ctx, "customer", `INSERT INTO customers(full_name, email, phone, address, city, district,
		created_at, updated_at) VALUES(?,?,?,?,?,?,?,?)`,
		c.FullName, c.Email, c.Phone, c.Address, c.City, c.District, ts, ts)
	if err != nil {
		return err
	}
	c.ID = id
	c.CreatedAt, c.UpdatedAt = fromMillis(ts), fromMillis(ts)
	return nil
}

func (t *Tx) UpdateCustomer(ctx context.Context, c core.Customer) error {
	return t.mustAffect(ctx, "customer", `UPDATE customers SET full_name = ?, email = ?, phone = ?, address = ?,
		city = ?, district = ?, updated_at = ? WHERE id = ?`,
		c.FullName, c.Email, c.Phone, c.Address, c.City, c.District, now(), c.ID)
}

func (t *Tx) DeleteCustomer(ctx context.Context, id int64) error {
	return t.mustAffect(ctx, "customer", `DELETE FROM customers WHERE id = ?`, id)
}

// Users.

const userColumns = `SELECT id, username, password, full_name, email, phone, role, status, created_at FROM users`

func (t *Tx) scanUser(r scanner) (core.User, error) {
	var (
		u            core.User
		role, status string
		created      int64
	)
	if err := r.Scan(&u.ID, &u.Username, &u.Password, &u.FullName, &u.Email, &u.Phone,
		&role, &status, &created); err != nil {
		return core.User{}, t.d.classify(err, "user")
	}
	u.Role, u.Status = core.Role(role), core.UserStatus(status)
	u.CreatedAt = fromMillis(created)
	return u, nil
}

func (t *Tx) ListUsers(ctx context.Context) ([]core.User, error) {
	var out []core.User
	err := t.queryRows(ctx, "user", userColumns+" ORDER BY id DESC", nil, func(r scanner) error {
		u, err := t.scanUser(r)
		if err != nil {
			return err
		}
		out = append(out, u)
		return nil
	})
	return out, err
}

func (t *Tx) GetUser(ctx context.Context, id int64) (core.User, error) {
	return t.scanUser(t.tx.QueryRowContext(ctx, t.d.rebind(userColumns+" WHERE id = ?"), id))
}

func (t *Tx) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return t.scanUser(t.tx.QueryRowContext(ctx, t.d.rebind(userColumns+" WHERE username = ?"), username))
}

func (t *Tx) InsertUser(ctx context.Context, u *core.User) error {
	ts := now()
	id, err := t.insert(ctx, "user", `INSERT INTO users(username, password, full_name, email, phone, role, status,
		created_at) VALUES(?,?,?,?,?,?,?,?)`,
		u.Username, u.Password, u.FullName, u.Email, u.Phone, string(u.Role), string(u.Status), ts)
	if err != nil {
		return err
	}
	u.ID, u.CreatedAt = id, fromMillis(ts)
	return nil
}

// UpdateUser rewrites profile fields. The password changes only when u.Password is set.
func (t *Tx) UpdateUser(ctx context.Context, u core.User) error {
	if u.Password != "" {
		return t.mustAffect(ctx, "user", `UPDATE users SET full_name = ?, email = ?, phone = ?, role = ?, status = ?,
			password = ? WHERE id = ?`,
			u.FullName, u.Email, u.Phone, string(u.Role), string(u.Status), u.Password, u.ID)
	}
	return t.mustAffect(ctx, "user", `UPDATE users SET full_name = ?, email = ?, phone = ?, role = ?, status = ?
		WHERE id = ?`,
		u.FullName, u.Email, u.Phone, string(u.Role), string(u.Status), u.ID)
}

func (t *Tx) DeleteUser(ctx context.Context, id int64) error {
	return t.mustAffect(ctx, "user", `DELETE FROM users WHERE id = ?`, id)
}
