// Package seed creates the demo enterprise database (users, products,
// orders, order_items) on any supported dialect.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlrag/sqlrag/internal/dialect"
	"github.com/sqlrag/sqlrag/internal/validation"
)

const DefaultOrders = 20

// Tables in dependency order; dropping runs in reverse.
var Tables = []string{"users", "products", "orders", "order_items"}

type Options struct {
	Seed   int64
	Orders int
	Now    time.Time
}

type Summary struct {
	Users      int `json:"users"`
	Products   int `json:"products"`
	Orders     int `json:"orders"`
	OrderItems int `json:"order_items"`
}

// Apply drops and recreates the demo tables in one transaction and fills
// them with the generated dataset.
func Apply(ctx context.Context, db *sql.DB, d dialect.Dialect, opts Options, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Orders <= 0 {
		opts.Orders = DefaultOrders
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	ds := Generate(opts.Seed, opts.Orders, opts.Now)

	ddl, err := schemaFor(d.Kind())
	if err != nil {
		return Summary{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := validation.TableName(Tables[i]); err != nil {
			return Summary{}, err
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+d.QuoteIdent(Tables[i])); err != nil {
			return Summary{}, fmt.Errorf("drop table %s: %w", Tables[i], err)
		}
	}
	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return Summary{}, fmt.Errorf("create demo schema: %w", err)
		}
	}

	w := writer{ctx: ctx, tx: tx, d: d}
	for _, u := range ds.Users {
		w.insert("users", []string{"id", "name", "email", "signup_date"}, u.ID, u.Name, u.Email, w.date(u.SignupDate))
	}
	for _, p := range ds.Products {
		w.insert("products", []string{"id", "name", "category", "price", "stock_level"}, p.ID, p.Name, p.Category, p.Price, p.StockLevel)
	}
	for _, o := range ds.Orders {
		w.insert("orders", []string{"id", "user_id", "order_date", "status", "total_amount"}, o.ID, o.UserID, w.date(o.OrderDate), o.Status, o.TotalAmount)
	}
	for _, it := range ds.OrderItems {
		w.insert("order_items", []string{"id", "order_id", "product_id", "quantity", "unit_price"}, it.ID, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice)
	}
	if w.err != nil {
		return Summary{}, w.err
	}
	if err := tx.Commit(); err != nil {
		return Summary{}, fmt.Errorf("commit seed tx: %w", err)
	}

	summary := Summary{
		Users:      len(ds.Users),
		Products:   len(ds.Products),
		Orders:     len(ds.Orders),
		OrderItems: len(ds.OrderItems),
	}
	logger.InfoContext(ctx, "demo database seeded",
		slog.String("dialect", d.Name()),
		slog.Int("users", summary.Users),
		slog.Int("orders", summary.Orders),
		slog.Int("order_items", summary.OrderItems),
	)
	return summary, nil
}

// writer keeps the first insert error and skips the rest.
type writer struct {
	ctx context.Context
	tx  *sql.Tx
	d   dialect.Dialect
	err error
}

func (w *writer) insert(table string, columns []string, args ...any) {
	if w.err != nil {
		return
	}
	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = w.d.QuoteIdent(column)
		marks[i] = w.d.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", w.d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	if _, err := w.tx.ExecContext(w.ctx, stmt, args...); err != nil {
		w.err = fmt.Errorf("insert into %s: %w", table, err)
	}
}

// date binds as ISO text on SQLite, which has no date type.
func (w *writer) date(t time.Time) any {
	if w.d.Kind() == dialect.SQLite {
		return t.Format("2006-01-02")
	}
	return t
}

func schemaFor(kind dialect.Kind) ([]string, error) {
	switch kind {
	case dialect.SQLite:
		return []string{
			`CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    signup_date DATE
)`,
			`CREATE TABLE products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    price REAL NOT NULL,
    stock_level INTEGER
)`,
			`CREATE TABLE orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER,
    order_date DATE,
    status TEXT DEFAULT 'pending',
    total_amount REAL,
    FOREIGN KEY (user_id) REFERENCES users(id)
)`,
			`CREATE TABLE order_items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER,
    product_id INTEGER,
    quantity INTEGER,
    unit_price REAL,
    FOREIGN KEY (order_id) REFERENCES orders(id),
    FOREIGN KEY (product_id) REFERENCES products(id)
)`,
		}, nil
	case dialect.PostgreSQL:
		return []string{
			`CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL,
    signup_date DATE
)`,
			`CREATE TABLE products (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    price NUMERIC(10,2) NOT NULL,
    stock_level INTEGER
)`,
			`CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    user_id INTEGER REFERENCES users(id),
    order_date DATE,
    status TEXT DEFAULT 'pending',
    total_amount NUMERIC(10,2)
)`,
			`CREATE TABLE order_items (
    id INTEGER PRIMARY KEY,
    order_id INTEGER REFERENCES orders(id),
    product_id INTEGER REFERENCES products(id),
    quantity INTEGER,
    unit_price NUMERIC(10,2)
)`,
		}, nil
	case dialect.MySQL:
		return []string{
			`CREATE TABLE users (
    id INT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) UNIQUE NOT NULL,
    signup_date DATE
) ENGINE=InnoDB`,
			`CREATE TABLE products (
    id INT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    category VARCHAR(100) NOT NULL,
    price DECIMAL(10,2) NOT NULL,
    stock_level INT
) ENGINE=InnoDB`,
			`CREATE TABLE orders (
    id INT PRIMARY KEY,
    user_id INT,
    order_date DATE,
    status VARCHAR(20) DEFAULT 'pending',
    total_amount DECIMAL(10,2),
    FOREIGN KEY (user_id) REFERENCES users(id)
) ENGINE=InnoDB`,
			`CREATE TABLE order_items (
    id INT PRIMARY KEY,
    order_id INT,
    product_id INT,
    quantity INT,
    unit_price DECIMAL(10,2),
    FOREIGN KEY (order_id) REFERENCES orders(id),
    FOREIGN KEY (product_id) REFERENCES products(id)
) ENGINE=InnoDB`,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", kind)
	}
}
