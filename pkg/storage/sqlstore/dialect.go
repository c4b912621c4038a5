package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rexliu/motoshop/pkg/core"
)

// dialect carries the few places SQLite and PostgreSQL differ. Queries are
// written with ? placeholders and rebound per dialect.
type dialect struct {
	primaryKey string
	pragmas    []string
	rebind     func(string) string
	// forUpdate locks rows of the given table alias until commit.
	forUpdate func(alias string) string
	unique    func(error) bool
	foreign   func(error) bool
}

var sqliteDialect = &dialect{
	primaryKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
	pragmas: []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = FULL;",
	},
	rebind:    func(q string) string { return q },
	forUpdate: func(string) string { return "" },
	unique: func(err error) bool {
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
	foreign: func(err error) bool {
		return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
	},
}

var postgresDialect = &dialect{
	primaryKey: "BIGSERIAL PRIMARY KEY",
	rebind:     rebindDollar,
	forUpdate:  func(alias string) string { return " FOR UPDATE OF " + alias },
	unique:     func(err error) bool { return pgCode(err) == "23505" },
	foreign:    func(err error) bool { return pgCode(err) == "23503" },
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// rebindDollar rewrites ? placeholders to $1, $2, ...
func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

// classify maps a driver error onto the core error taxonomy. what names the
// entity for messages.
func (d *dialect) classify(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	case d.unique(err):
		return core.Invalid(what, "already exists")
	case d.foreign(err):
		return core.Invalid(what, "is referenced by other records or references a missing one")
	default:
		return fmt.Errorf("%w: %s: %v", core.ErrPersistence, what, err)
	}
}

func schema(d *dialect) []string {
	pk := d.primaryKey
	return []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id ` + pk + `,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id ` + pk + `,
			category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
			name TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			brand TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			image_path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'AVAILABLE',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			id ` + pk + `,
			product_id BIGINT NOT NULL UNIQUE REFERENCES products(id) ON DELETE CASCADE,
			quantity_in BIGINT NOT NULL DEFAULT 0 CHECK (quantity_in >= 0),
			quantity_out BIGINT NOT NULL DEFAULT 0 CHECK (quantity_out >= 0),
			quantity_current BIGINT NOT NULL DEFAULT 0 CHECK (quantity_current >= 0),
			updated_at BIGINT NOT NULL,
			CHECK (quantity_current = quantity_in - quantity_out)
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id ` + pk + `,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			district TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id ` + pk + `,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL CHECK (role IN ('ADMIN','MANAGER','STAFF')),
			status TEXT NOT NULL CHECK (status IN ('ACTIVE','INACTIVE')),
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id ` + pk + `,
			order_code TEXT NOT NULL UNIQUE,
			customer_id BIGINT REFERENCES customers(id) ON DELETE SET NULL,
			walk_in_name TEXT NOT NULL DEFAULT '',
			walk_in_phone TEXT NOT NULL DEFAULT '',
			user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
			total_amount TEXT NOT NULL,
			discount_amount TEXT NOT NULL,
			final_amount TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('PENDING','COMPLETED','CANCELLED')),
			payment_method TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id ` + pk + `,
			order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL REFERENCES products(id),
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			unit_price TEXT NOT NULL,
			total_price TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
	}
}
