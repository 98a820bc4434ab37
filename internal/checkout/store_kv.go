package checkout

import (
	"context"
	"encoding/json"
	"fmt"

	"Storefront/internal/kv"
)

const orderPrefix = "brahmins_order:"

// KVStore keeps one JSON document per order in the key-value backend.
type KVStore struct {
	backend kv.Store
}

func NewKVStore(backend kv.Store) *KVStore {
	return &KVStore{backend: backend}
}

func OrderKey(id string) string {
	return orderPrefix + id
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *KVStore) Create(ctx context.Context, o Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, OrderKey(o.ID), string(raw))
}

func (s *KVStore) Get(ctx context.Context, id string) (Order, bool, error) {
	raw, ok, err := s.backend.Get(ctx, OrderKey(id))
	if err != nil || !ok {
		return Order{}, false, err
	}

	var o Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return Order{}, false, fmt.Errorf("decode order %s: %w", id, err)
	}
	return o, true, nil
}
