package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	pgUniqueCode = "23505"
)

const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	phone         TEXT NOT NULL,
	date_of_birth TEXT NOT NULL DEFAULT '',
	newsletter    BOOLEAN NOT NULL DEFAULT false,
	pass_hash     BYTEA NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) Create(ctx context.Context, a Account) error {
	a.Email = normalizeEmail(a.Email)

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO accounts (id, first_name, last_name, email, phone, date_of_birth, newsletter, pass_hash, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, a.ID, a.FirstName, a.LastName, a.Email, a.Phone, a.DateOfBirth, a.Newsletter, a.Hash, a.CreatedAt)

		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	})
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Account, bool, error) {
	return s.queryOne(ctx, `WHERE email = $1`, normalizeEmail(email))
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Account, bool, error) {
	return s.queryOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) queryOne(ctx context.Context, where string, arg any) (Account, bool, error) {
	var a Account
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT id, first_name, last_name, email, phone, date_of_birth, newsletter, pass_hash, created_at
			FROM accounts
		`+where, arg).Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.DateOfBirth, &a.Newsletter, &a.Hash, &a.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return a, true, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}
