// Package config reads storefront settings from flags, falling back to the
// environment for every value.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	minJWTSecret = 32
)

type Config struct {
	Addr     string
	LogLevel string

	Storage     string
	RedisAddr   string
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	JWTSecret    string
	MetricsToken string
	OTELEndpoint string

	CartCacheSize int
}

// Load parses args (without the program name) on a fresh flag set so tests
// can call it repeatedly.
func Load(name string, args []string) (Config, error) {
	var c Config
	fs := Register(name, &c)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// Register binds every setting to a new flag set. Callers that add their own
// flags parse it themselves and call Validate.
func Register(name string, c *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.StringVar(&c.Addr, "addr", ":"+getenv("PORT", "8080"), "listen address")
	fs.StringVar(&c.LogLevel, "log-level", getenv("LOG_LEVEL", "info"), "debug, info, warn or error")

	fs.StringVar(&c.Storage, "storage", getenv("STORAGE", StorageMemory), "key-value backend: memory, redis, postgres or mongo")
	fs.StringVar(&c.RedisAddr, "redis-addr", getenv("REDIS_ADDR", "localhost:6379"), "redis address or redis:// url")
	fs.StringVar(&c.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	fs.StringVar(&c.MongoURI, "mongo-uri", getenv("MONGO_URI", "mongodb://localhost:27017"), "mongodb connection uri")
	fs.StringVar(&c.MongoDB, "mongo-db", getenv("MONGO_DB", "storefront"), "mongodb database name")

	fs.StringVar(&c.JWTSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	fs.StringVar(&c.MetricsToken, "metrics-token", os.Getenv("METRICS_TOKEN"), "bearer token for /metrics")
	fs.StringVar(&c.OTELEndpoint, "otel-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP gRPC collector endpoint; empty disables tracing")

	fs.IntVar(&c.CartCacheSize, "cart-cache", getenvInt("CART_CACHE_SIZE", 1024), "number of session carts kept in memory")

	return fs
}

func (c Config) Validate() error {
	errs := []error{c.ValidateStorage()}

	if len(c.JWTSecret) < minJWTSecret {
		errs = append(errs, fmt.Errorf("jwt-secret must be at least %d chars", minJWTSecret))
	}
	if c.CartCacheSize <= 0 {
		errs = append(errs, errors.New("cart-cache must be positive"))
	}
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}

	return errors.Join(errs...)
}

// ValidateStorage checks only the backend settings, for tools that never
// serve HTTP.
func (c Config) ValidateStorage() error {
	switch c.Storage {
	case StorageMemory, StorageRedis, StorageMongo:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database-url is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
