package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rdistribuidora/storefront/internal/domain/order"
	"github.com/rdistribuidora/storefront/internal/domain/product"
)

const (
	// The guarded UPDATE is the reservation primitive: it decrements stock
	// only when enough remains, and the row lock it takes serializes
	// concurrent reservations of the same product until commit/rollback.
	reserveStockSQL = `UPDATE products SET stock = stock - $1
		WHERE id = $2 AND stock >= $1
		RETURNING name, price`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	createOrderSQL = `INSERT INTO orders
		(delivery_kind, delivery_value, unit_qualifier, payment_method, change_due, note, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	createLineSQL = `INSERT INTO order_lines (order_id, product_name, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	getOrderSQL = `SELECT id, created_at, delivery_kind, delivery_value, unit_qualifier,
			payment_method, change_due, note, total, status
		FROM orders WHERE id = $1`

	listOrdersByStatusSQL = `SELECT id, created_at, delivery_kind, delivery_value, unit_qualifier,
			payment_method, change_due, note, total, status
		FROM orders WHERE status = $1 ORDER BY id DESC`

	listLinesSQL = `SELECT id, order_id, product_name, quantity, unit_price
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id`

	setStatusSQL = `UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`

	getStatusSQL = `SELECT status FROM orders WHERE id = $1`

	deleteAllOrdersSQL    = `DELETE FROM orders`
	deleteOrdersBeforeSQL = `DELETE FROM orders WHERE created_at < $1`
	deleteOrdersSinceSQL  = `DELETE FROM orders WHERE created_at >= $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// InTx runs fn inside one database transaction. Reservations and order
// inserts issued through the order.Tx all commit or roll back together.
func (r *OrderRepository) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&orderTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order transaction: %w", err)
	}
	return nil
}

// orderTx adapts a pgx transaction to the order.Tx contract.
type orderTx struct {
	tx pgx.Tx
}

// Reserve decrements stock with an underflow guard and returns the
// product's current name and price as the line snapshot. Zero rows
// affected means either an unknown product or not enough stock; a
// follow-up existence check inside the same transaction tells them apart.
func (t *orderTx) Reserve(ctx context.Context, productID int64, qty int) (product.Snapshot, error) {
	var snap product.Snapshot
	err := t.tx.QueryRow(ctx, reserveStockSQL, qty, productID).Scan(&snap.Name, &snap.Price)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return product.Snapshot{}, fmt.Errorf("reserving %d units of product %d: %w", qty, productID, err)
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, productExistsSQL, productID).Scan(&exists); err != nil {
		return product.Snapshot{}, fmt.Errorf("checking product %d: %w", productID, err)
	}
	if !exists {
		return product.Snapshot{}, product.ErrNotFound
	}
	return product.Snapshot{}, &product.OutOfStockError{ProductID: productID, Requested: qty}
}

// CreateOrder inserts the order header and all its lines, assigning o.ID
// and o.CreatedAt from the database.
func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, createOrderSQL,
		o.Delivery.Kind, o.Delivery.Value, o.Unit,
		o.Payment.Method, o.Payment.ChangeDue,
		o.Note, o.Total, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(createLineSQL, o.ID, l.ProductName, l.Quantity, l.UnitPrice)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating lines for order %d: %w", o.ID, err)
	}
	return nil
}

// Get returns one order with its lines attached.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	if err := r.attachLines(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByStatus returns orders in the given status, newest first, with
// lines attached.
func (r *OrderRepository) ListByStatus(ctx context.Context, status order.Status) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByStatusSQL, status)
	if err != nil {
		return nil, fmt.Errorf("listing orders by status %s: %w", status, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders by status %s: %w", status, err)
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.attachLines(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines loads lines for all given orders in one query.
func (r *OrderRepository) attachLines(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, listLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l       order.Line
			orderID int64
			price   decimal.Decimal
		)
		if err := rows.Scan(&l.ID, &orderID, &l.ProductName, &l.Quantity, &price); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		l.UnitPrice = price
		byID[orderID].Lines = append(byID[orderID].Lines, l)
	}
	return rows.Err()
}

// SetStatus transitions the order's status with a compare-and-set so
// concurrent transitions on the same order cannot be lost. On a miss it
// distinguishes a missing order from a status conflict.
func (r *OrderRepository) SetStatus(ctx context.Context, id int64, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, setStatusSQL, to, id, from)
	if err != nil {
		return fmt.Errorf("setting status of order %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var actual order.Status
	err = r.pool.QueryRow(ctx, getStatusSQL, id).Scan(&actual)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking status of order %d: %w", id, err)
	}
	return &order.StatusConflictError{OrderID: id, Actual: actual}
}

// DeleteAll removes every order; lines go with them via ON DELETE CASCADE.
func (r *OrderRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteAllOrdersSQL)
	if err != nil {
		return 0, fmt.Errorf("deleting all orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteBefore removes orders created before t.
func (r *OrderRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteOrdersBeforeSQL, t)
	if err != nil {
		return 0, fmt.Errorf("deleting orders before %s: %w", t, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteSince removes orders created at or after t.
func (r *OrderRepository) DeleteSince(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteOrdersSinceSQL, t)
	if err != nil {
		return 0, fmt.Errorf("deleting orders since %s: %w", t, err)
	}
	return tag.RowsAffected(), nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		changeDue *decimal.Decimal
		total     decimal.Decimal
	)
	err := row.Scan(
		&o.ID, &o.CreatedAt,
		&o.Delivery.Kind, &o.Delivery.Value, &o.Unit,
		&o.Payment.Method, &changeDue,
		&o.Note, &total, &o.Status,
	)
	o.Payment.ChangeDue = changeDue
	o.Total = total
	return o, err
}
