package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore accepts either a redis:// URL or a bare host:port.
func NewRedisStore(addr string) *RedisStore {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			PoolTimeout:  4 * time.Second,
			IdleTimeout:  180 * time.Second,
		}
	}

	client := redis.NewClient(opts)
	client.AddHook(redisotel.NewTracingHook())
	return &RedisStore{client: client}
}

func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		val   string
		found bool
	)
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		v, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("redis get %q: %w", key, err)
		}
		val, found = v, true
		return nil
	})
	return val, found, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
			return fmt.Errorf("redis set %q: %w", key, err)
		}
		return nil
	})
}

func (s *RedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
			return fmt.Errorf("redis set %q: %w", key, err)
		}
		return nil
	})
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis del %q: %w", key, err)
		}
		return nil
	})
}

func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}
