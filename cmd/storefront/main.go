package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"Storefront/internal/account"
	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/checkout"
	"Storefront/internal/config"
	"Storefront/internal/kv"
	"Storefront/internal/storefront"
	"Storefront/pkg/kit"
)

const service = "storefront"

func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if err != nil {
		// logger level is part of the config, so report on a default one
		kit.NewLogger(service, "info").Fatal("invalid config", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()

	var cleanup []func(context.Context) error

	if cfg.OTELEndpoint != "" {
		tp, err := initTracerProvider(ctx, cfg.OTELEndpoint)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, tp.Shutdown)
		log.Info("tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
	}

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		return err
	}
	// the http server drains before storage closes
	defer func() { _ = backend.Close(context.Background()) }()

	products, accounts, orders, err := domainStores(ctx, backend)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions, err := cart.NewSessions(backend.Store, cfg.CartCacheSize, log,
		cart.NewMetrics(reg).Observe,
		cart.LogObserver(log),
	)
	if err != nil {
		return err
	}

	h, err := storefront.NewHandler(
		storefront.Deps{
			Catalog:  products,
			Sessions: sessions,
			Accounts: account.NewService(accounts, account.NewTokenMaker(cfg.JWTSecret), backend.Store, log),
			Checkout: checkout.NewService(orders, sessions, log),
			Ready: map[string]storefront.Pinger{
				"kv":       backend.Store,
				"catalog":  products,
				"accounts": accounts,
				"orders":   orders,
			},
		},
		storefront.HTTPDeps{
			Log:            log,
			Service:        service,
			Registry:       reg,
			MetricsEnabled: cfg.MetricsToken != "",
			MetricsToken:   cfg.MetricsToken,
		},
	)
	if err != nil {
		return err
	}

	log.Info("storage ready", zap.String("backend", backend.Name))
	return kit.RunHTTPServer(cfg.Addr, h, log, cleanup...)
}

// domainStores puts catalog, accounts and orders in postgres tables when
// that is the backend, and in the key-value store otherwise.
func domainStores(ctx context.Context, b *kv.Backend) (catalog.Store, account.Store, checkout.Store, error) {
	if b.DB == nil {
		return catalog.NewSeededStore(), account.NewKVStore(b.Store), checkout.NewKVStore(b.Store), nil
	}

	products := catalog.NewPostgresStore(b.DB)
	accounts := account.NewPostgresStore(b.DB)
	orders := checkout.NewPostgresStore(b.DB)

	err := errors.Join(
		products.Migrate(ctx),
		accounts.Migrate(ctx),
		orders.Migrate(ctx),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := products.SeedIfEmpty(ctx, catalog.Seed()); err != nil {
		return nil, nil, nil, err
	}
	return products, accounts, orders, nil
}
