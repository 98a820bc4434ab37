package kv

import (
	"context"
	"time"
)

// Expirer is implemented by stores that can drop a key on their own once
// ttl has passed. An expired key reads as missing.
type Expirer interface {
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// SetTTL writes value under key for ttl. Stores without expiry keep the key
// until it is deleted.
func SetTTL(ctx context.Context, s Store, key, value string, ttl time.Duration) error {
	if e, ok := s.(Expirer); ok && ttl > 0 {
		return e.SetTTL(ctx, key, value, ttl)
	}
	return s.Set(ctx, key, value)
}
