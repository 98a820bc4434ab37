package storefront

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"Storefront/internal/account"
	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/checkout"
	"Storefront/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

// Deps are the domain services the storefront mounts. Ready lists the
// backends /readyz probes, by name.
type Deps struct {
	Catalog  catalog.Store
	Sessions *cart.Sessions
	Accounts *account.Service
	Checkout *checkout.Service

	Ready map[string]Pinger
	// AuthLimiter overrides the register/login rate limit.
	AuthLimiter *kit.IPRateLimiter
}

type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
)

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	if deps.Catalog == nil || deps.Sessions == nil || deps.Accounts == nil || deps.Checkout == nil {
		return nil, errors.New("storefront: catalog, sessions, accounts and checkout are required")
	}
	log := httpDeps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	setupMiddleware(r, httpDeps)
	setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps.Ready, log))

	session := account.SessionFunc(cart.HeaderSession)

	(&catalog.Server{Store: deps.Catalog, Log: log}).Routes(r)

	r.Group(func(pr chi.Router) {
		pr.Use(account.Identify(deps.Accounts))

		(&account.Server{Service: deps.Accounts, Log: log, Limiter: deps.AuthLimiter}).Routes(pr)
		(&cart.Server{Sessions: deps.Sessions, Catalog: deps.Catalog, Session: session, Log: log}).Routes(pr)
		(&checkout.Server{Service: deps.Checkout, Session: session, Log: log}).Routes(pr)
	})

	return r, nil
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.RoutePattern))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(probes map[string]Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for name, p := range probes {
			if err := checkReady(ctx, p); err != nil {
				log.Warn("readyz failed", zap.String("backend", name), zap.Error(err))
				kit.WriteError(w, r, http.StatusServiceUnavailable, name+" not ready", nil)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, p Pinger) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()
	return p.Ping(cctx)
}
