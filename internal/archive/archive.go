// Package archive is the relational read model of placed orders. It is fed
// asynchronously from the order event stream and serves reporting queries
// that the document store is poorly shaped for.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"storefront-service/internal/models"
)

// Store is a Postgres-backed order archive.
type Store struct {
	db *sqlx.DB
}

// NewStore connects to Postgres and verifies the connection.
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ArchivedOrder is one row of the archive.
type ArchivedOrder struct {
	OrderID   string    `db:"order_id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Total     float64   `db:"total"`
	Status    string    `db:"status"`
	PlacedAt  time.Time `db:"placed_at"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ArchivedItem is one line item of an archived order.
type ArchivedItem struct {
	ID        int64   `db:"id"`
	OrderID   string  `db:"order_id"`
	ProductID string  `db:"product_id"`
	Name      string  `db:"name"`
	Quantity  int     `db:"quantity"`
	UnitPrice float64 `db:"unit_price"`
}

// InsertOrder archives an order with its items in one transaction. Replays
// of the same order are silently ignored.
func (s *Store) InsertOrder(ctx context.Context, event *models.OrderPlacedEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO archived_orders (order_id, email, name, total, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO NOTHING`,
		event.OrderID, event.Email, event.Name, event.Total,
		models.OrderStatusPending, event.PlacedAt)
	if err != nil {
		return fmt.Errorf("failed to archive order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tx.Commit() // already archived
	}

	for _, item := range event.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO archived_order_items (order_id, product_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			event.OrderID, item.ProductID, item.Name, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to archive order item: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateStatus records a status transition for an archived order. Updating
// an order that has not been archived yet is not an error; the placement
// event may still be in flight.
func (s *Store) UpdateStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE archived_orders SET status = $1, updated_at = NOW() WHERE order_id = $2",
		status, orderID)
	return err
}

// GetOrder retrieves one archived order.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*ArchivedOrder, error) {
	var order ArchivedOrder
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM archived_orders WHERE order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not archived: %s", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves archived orders, newest first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]ArchivedOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []ArchivedOrder
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM archived_orders ORDER BY placed_at DESC LIMIT $1", limit)
	return orders, err
}

// ListOrdersByEmail retrieves a customer's archived orders, newest first.
func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]ArchivedOrder, error) {
	var orders []ArchivedOrder
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM archived_orders WHERE email = $1 ORDER BY placed_at DESC", email)
	return orders, err
}

// GetItems retrieves all items of an archived order.
func (s *Store) GetItems(ctx context.Context, orderID string) ([]ArchivedItem, error) {
	var items []ArchivedItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM archived_order_items WHERE order_id = $1", orderID)
	return items, err
}

// IsEventProcessed checks if an event has already been applied.
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records an event so replays are skipped.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
