package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Schema is applied by Migrate; deployments that manage their own schema
// can skip it.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const schemaExpiry = `ALTER TABLE kv_entries ADD COLUMN IF NOT EXISTS expires_at TIMESTAMPTZ`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, Schema); err != nil {
			return err
		}
		_, err := s.db.ExecContext(ctx, schemaExpiry)
		return err
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT value
			FROM kv_entries
			WHERE key = $1
			  AND (expires_at IS NULL OR expires_at > now())
		`, key).Scan(&v)
	})
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return v, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO kv_entries (key, value, updated_at, expires_at)
			VALUES ($1, $2, now(), NULL)
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, expires_at = NULL
		`, key, value)
		if err != nil {
			return fmt.Errorf("kv set %q: %w", key, err)
		}
		return nil
	})
}

// SetTTL also sweeps rows that have already expired.
func (s *PostgresStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at <= now()`); err != nil {
			return fmt.Errorf("kv sweep: %w", err)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO kv_entries (key, value, updated_at, expires_at)
			VALUES ($1, $2, now(), now() + $3 * interval '1 millisecond')
			ON CONFLICT (key) DO UPDATE
			SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
		`, key, value, ttl.Milliseconds())
		if err != nil {
			return fmt.Errorf("kv set %q: %w", key, err)
		}
		return nil
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
		if err != nil {
			return fmt.Errorf("kv delete %q: %w", key, err)
		}
		return nil
	})
}
