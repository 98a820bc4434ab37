package checkout

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"Storefront/internal/cart"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 5 * time.Second
)

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	item_count INTEGER NOT NULL,
	subtotal   BIGINT NOT NULL,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items (
	order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	item_id  TEXT NOT NULL,
	name     TEXT NOT NULL,
	type     TEXT NOT NULL,
	weight   TEXT NOT NULL,
	price    BIGINT NOT NULL,
	quantity INTEGER NOT NULL,
	PRIMARY KEY (order_id, position)
)`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, o Order) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, item_count, subtotal, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.SessionID, o.ItemCount, o.Subtotal, o.Status, o.CreatedAt)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, position, item_id, name, type, weight, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range o.Items {
		if _, err := stmt.ExecContext(ctx, o.ID, i, it.ID, it.Name, string(it.Type), it.Weight, it.Price, it.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Order, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var o Order
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, item_count, subtotal, status, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.SessionID, &o.ItemCount, &o.Subtotal, &o.Status, &o.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, type, weight, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return Order{}, false, err
	}
	defer rows.Close()

	items := make([]cart.LineItem, 0, 8)
	for rows.Next() {
		var (
			it  cart.LineItem
			typ string
		)
		if err := rows.Scan(&it.ID, &it.Name, &typ, &it.Weight, &it.Price, &it.Quantity); err != nil {
			return Order{}, false, err
		}
		it.Type = cart.ProductType(typ)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return Order{}, false, err
	}
	o.Items = items

	return o, true, nil
}
