/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Keeps the shopper's active cart across restarts and keeps a log of
  placed-order acknowledgments.

INTERFACES IMPLEMENTED:
  cart.Store:             Active item set (load on start, replace on mutation)
  checkout.OrderRecorder: Order acknowledgments

KEY TABLES:
  cart_items:  Active line items, ordered by position. Rewritten whole on
               every save; the undo buffer is never stored.
  orders:      One row per placed order. Insert-only.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, and a single connection so that
  ":memory:" databases are shared by every query.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/storefront.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger, err := cart.NewLedger(ctx, store, cart.Options{})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - cart/store.go: Store interface
  - cart/store/memory.go: In-memory implementation for testing
  - checkout/session.go: OrderRecorder interface
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/microgreen/storefront/cart"
	"github.com/microgreen/storefront/checkout"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Active cart (one row per line item)
	CREATE TABLE IF NOT EXISTS cart_items (
		position INTEGER NOT NULL,
		product_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		unit_price INTEGER NOT NULL,
		weight_label TEXT NOT NULL DEFAULT '',
		image_ref TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity > 0)
	);

	CREATE INDEX IF NOT EXISTS idx_cart_items_position
		ON cart_items(position);

	-- Placed orders (insert-only)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		placed_at TEXT NOT NULL,
		zone_json TEXT NOT NULL,
		payment_method_json TEXT NOT NULL,
		contact_json TEXT NOT NULL,
		items_json TEXT NOT NULL,
		promo_code TEXT,
		subtotal INTEGER NOT NULL,
		discount INTEGER NOT NULL,
		delivery_fee INTEGER NOT NULL,
		total INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_placed_at
		ON orders(placed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CART STORE (cart.Store interface)
// =============================================================================

// LoadItems returns the persisted active set in cart order.
func (s *Store) LoadItems(ctx context.Context) ([]cart.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, unit_price, weight_label, image_ref, quantity
		FROM cart_items
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []cart.LineItem
	for rows.Next() {
		var it cart.LineItem
		if err := rows.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.WeightLabel, &it.ImageRef, &it.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SaveItems atomically replaces the persisted active set.
func (s *Store) SaveItems(ctx context.Context, items []cart.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM cart_items"); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	stmt, err := sqlTx.PrepareContext(ctx, `
		INSERT INTO cart_items (position, product_id, name, unit_price, weight_label, image_ref, quantity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		if _, err := stmt.ExecContext(ctx, i, it.ID, it.Name, it.UnitPrice, it.WeightLabel, it.ImageRef, it.Quantity); err != nil {
			return fmt.Errorf("failed to insert cart item %d: %w", it.ID, err)
		}
	}

	return sqlTx.Commit()
}

// =============================================================================
// ORDERS (checkout.OrderRecorder interface)
// =============================================================================

// RecordOrder stores an order acknowledgment. Order ids are unique.
func (s *Store) RecordOrder(ctx context.Context, o checkout.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	zoneJSON, _ := json.Marshal(o.Zone)
	methodJSON, _ := json.Marshal(o.PaymentMethod)
	contactJSON, _ := json.Marshal(o.Contact)
	itemsJSON, _ := json.Marshal(o.Items)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
		(id, placed_at, zone_json, payment_method_json, contact_json, items_json,
		 promo_code, subtotal, discount, delivery_fee, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID,
		o.PlacedAt.UTC().Format(time.RFC3339Nano),
		string(zoneJSON),
		string(methodJSON),
		string(contactJSON),
		string(itemsJSON),
		nullString(o.PromoCode),
		o.Totals.Subtotal,
		o.Totals.Discount,
		o.Totals.DeliveryFee,
		o.Totals.Total,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", checkout.ErrDuplicateOrder, o.ID)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetOrder returns a recorded order.
func (s *Store) GetOrder(ctx context.Context, id string) (checkout.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		o                     checkout.Order
		placedAt, zoneJSON    string
		methodJSON, itemsJSON string
		contactJSON           string
		promo                 sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, placed_at, zone_json, payment_method_json, contact_json, items_json,
		       promo_code, subtotal, discount, delivery_fee, total
		FROM orders WHERE id = ?
	`, id).Scan(&o.ID, &placedAt, &zoneJSON, &methodJSON, &contactJSON, &itemsJSON,
		&promo, &o.Totals.Subtotal, &o.Totals.Discount, &o.Totals.DeliveryFee, &o.Totals.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return checkout.Order{}, fmt.Errorf("%w: %s", checkout.ErrOrderNotFound, id)
	}
	if err != nil {
		return checkout.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	o.PlacedAt, err = time.Parse(time.RFC3339Nano, placedAt)
	if err != nil {
		return checkout.Order{}, fmt.Errorf("failed to parse placed_at: %w", err)
	}
	o.PromoCode = promo.String

	for _, field := range []struct {
		raw string
		dst any
	}{
		{zoneJSON, &o.Zone},
		{methodJSON, &o.PaymentMethod},
		{contactJSON, &o.Contact},
		{itemsJSON, &o.Items},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return checkout.Order{}, fmt.Errorf("failed to decode order %s: %w", id, err)
		}
	}
	return o, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
