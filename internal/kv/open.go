package kv

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"Storefront/internal/config"
)

// Backend is the opened storage for one process. DB is non-nil only for the
// postgres backend, where catalog, account and order tables live as well.
type Backend struct {
	Name  string
	Store Store
	DB    *sql.DB

	closers []func(context.Context) error
}

func (b *Backend) Close(ctx context.Context) error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func Open(ctx context.Context, c config.Config) (*Backend, error) {
	b := &Backend{Name: c.Storage}

	switch c.Storage {
	case config.StorageMemory, "":
		b.Name = config.StorageMemory
		b.Store = NewMemStore()

	case config.StorageRedis:
		rs := NewRedisStore(c.RedisAddr)
		b.closers = append(b.closers, rs.Close)
		b.Store = rs

	case config.StoragePostgres:
		db, err := sql.Open("pgx", c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })
		ps := NewPostgresStore(db)
		if err := ps.Migrate(ctx); err != nil {
			_ = b.Close(ctx)
			return nil, fmt.Errorf("migrate kv: %w", err)
		}
		b.DB = db
		b.Store = ps

	case config.StorageMongo:
		ms, err := NewMongoStore(ctx, c.MongoURI, c.MongoDB)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, ms.Close)
		b.Store = ms

	default:
		return nil, fmt.Errorf("unknown storage %q", c.Storage)
	}

	if c.OTELEndpoint != "" {
		b.Store = Traced(b.Store, b.Name)
	}
	return b, nil
}
