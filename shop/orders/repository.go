package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/storebot/core/logger"
	"github.com/m3rciful/storebot/shop/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (
	id, chat_id, customer_name, customer_surname, customer_patronymic,
	customer_phone, payment_method, delivery_address, total, created_at
) VALUES (
	:id, :chat_id, :customer_name, :customer_surname, :customer_patronymic,
	:customer_phone, :payment_method, :delivery_address, :total, :created_at
)`

	insertItemSQL = `INSERT INTO order_items (
	order_id, position, product_name, quantity, unit_price, line_total
) VALUES (
	:order_id, :position, :product_name, :quantity, :unit_price, :line_total
)`

	listOrdersSQL = `SELECT id, chat_id, customer_name, customer_surname, customer_patronymic,
	customer_phone, payment_method, delivery_address, total, created_at
FROM orders
ORDER BY created_at DESC
LIMIT $1`

	listItemsSQL = `SELECT order_id, position, product_name, quantity, unit_price, line_total
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, position`
)

type itemRow struct {
	OrderID  uuid.UUID `db:"order_id"`
	Position int       `db:"position"`
	order.Line
}

// Repository stores orders in Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open connection pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// RecordOrder saves o.
func (r *Repository) RecordOrder(ctx context.Context, o order.Order) error {
	return r.Save(ctx, o)
}

// Save inserts the order and its lines in one transaction.
func (r *Repository) Save(ctx context.Context, o order.Order) (err error) {
	start := time.Now()
	defer func() {
		logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "orders.save",
			slog.String("order_id", o.ID.String()),
			slog.Int("lines", len(o.Lines)),
			slog.String("status", logger.Status(err)),
			slog.Duration("took", logger.Took(start)),
		)
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("orders: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, insertOrderSQL, o); err != nil {
		return fmt.Errorf("orders: insert order %s: %w", o.ID, err)
	}
	for i, l := range o.Lines {
		row := itemRow{OrderID: o.ID, Position: i, Line: l}
		if _, err = tx.NamedExecContext(ctx, insertItemSQL, row); err != nil {
			return fmt.Errorf("orders: insert line %d of %s: %w", i, o.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("orders: commit %s: %w", o.ID, err)
	}
	return nil
}

// List returns up to limit most recent orders with their lines.
func (r *Repository) List(ctx context.Context, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 1000
	}
	var out []order.Order
	if err := r.db.SelectContext(ctx, &out, listOrdersSQL, limit); err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, len(out))
	index := make(map[uuid.UUID]int, len(out))
	for i, o := range out {
		ids[i] = o.ID.String()
		index[o.ID] = i
	}
	var items []itemRow
	if err := r.db.SelectContext(ctx, &items, listItemsSQL, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("orders: list lines: %w", err)
	}
	for _, it := range items {
		if i, ok := index[it.OrderID]; ok {
			out[i].Lines = append(out[i].Lines, it.Line)
		}
	}
	return out, nil
}
