package catalog

import (
	"context"
	"database/sql"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS product_variants (
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	weight     TEXT NOT NULL,
	price      BIGINT NOT NULL CHECK (price >= 0),
	position   INT NOT NULL,
	PRIMARY KEY (product_id, weight)
)`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, Schema)
		return err
	})
}

// SeedIfEmpty loads products only into an empty catalog.
func (s *PostgresStore) SeedIfEmpty(ctx context.Context, products []Product) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var n int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		for _, p := range products {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO products (id, name, type) VALUES ($1, $2, $3)
			`, p.ID, p.Name, string(p.Type)); err != nil {
				return err
			}
			for i, v := range p.Variants {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO product_variants (product_id, weight, price, position)
					VALUES ($1, $2, $3, $4)
				`, p.ID, v.Weight, v.Price, i); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.id, p.name, p.type, v.weight, v.price
			FROM products p
			JOIN product_variants v ON v.product_id = p.id
			ORDER BY p.id ASC, v.position ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 16)
		for rows.Next() {
			var (
				p Product
				v Variant
			)
			if err := rows.Scan(&p.ID, &p.Name, &p.Type, &v.Weight, &v.Price); err != nil {
				return err
			}
			if n := len(out); n > 0 && out[n-1].ID == p.ID {
				out[n-1].Variants = append(out[n-1].Variants, v)
				continue
			}
			p.Type = ParseProductType(string(p.Type))
			p.Variants = []Variant{v}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Product, bool, error) {
	var p Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT p.id, p.name, p.type, v.weight, v.price
			FROM products p
			JOIN product_variants v ON v.product_id = p.id
			WHERE p.id = $1
			ORDER BY v.position ASC
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v Variant
			if err := rows.Scan(&p.ID, &p.Name, &p.Type, &v.Weight, &v.Price); err != nil {
				return err
			}
			p.Variants = append(p.Variants, v)
		}
		return rows.Err()
	})

	if err != nil {
		return Product{}, false, err
	}
	if p.ID == "" {
		return Product{}, false, nil
	}
	p.Type = ParseProductType(string(p.Type))
	return p, true, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
