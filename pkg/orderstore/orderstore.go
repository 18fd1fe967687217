// Package orderstore is the system-of-record for persisted orders: a
// Postgres table with a JSONB document column standing in for the
// document-database collection, since no document-database driver appears
// anywhere in the available dependency set. The unique index on order_id
// is the same collection-level guarantee a document store's unique index
// would give, and is the ultimate idempotency backstop for the pipeline.
package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/orderenrich/pkg/order"
)

// uniqueViolation is Postgres' SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

// ErrConflict is returned by Save when order_id already exists.
var ErrConflict = errors.New("orderstore: order_id already exists")

// Store persists Order documents to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing connection pool. Run migrations
// separately before using it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Save inserts an order document. Returns ErrConflict, not an error the
// caller should treat as a failure, when order_id already exists — the
// pipeline maps a conflict to a successful no-op.
func (s *Store) Save(ctx context.Context, o order.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("orderstore: marshaling order %s: %w", o.OrderID, err)
	}

	const q = `
INSERT INTO orders (order_id, customer_id, status, document, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err = s.pool.Exec(ctx, q, o.OrderID, o.CustomerID, string(o.Status), doc, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("orderstore: saving order %s: %w", o.OrderID, err)
	}
	return nil
}

// ExistsByOrderID reports whether an order with the given id is already
// persisted, used as the final idempotency check before enrichment work
// begins.
func (s *Store) ExistsByOrderID(ctx context.Context, orderID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("orderstore: checking existence of %s: %w", orderID, err)
	}
	return exists, nil
}

// FindByOrderID returns the persisted order document, or an error wrapping
// pgx.ErrNoRows if it does not exist.
func (s *Store) FindByOrderID(ctx context.Context, orderID string) (order.Order, error) {
	const q = `SELECT document FROM orders WHERE order_id = $1`
	var raw []byte
	if err := s.pool.QueryRow(ctx, q, orderID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, fmt.Errorf("orderstore: order %s: %w", orderID, err)
		}
		return order.Order{}, fmt.Errorf("orderstore: finding order %s: %w", orderID, err)
	}

	var o order.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return order.Order{}, fmt.Errorf("orderstore: decoding order %s: %w", orderID, err)
	}
	return o, nil
}
