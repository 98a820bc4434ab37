// Package cart holds a shopper's line items, keeps them persisted in a
// key-value backend and tells observers whenever they change.
//
// A Store is the only way to mutate a cart. Every mutation is applied to a
// copy, written to the backend and only then made visible, so callers never
// observe a state that was not persisted.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"Storefront/internal/catalog"
	"Storefront/internal/kv"
)

// ErrNotCleared reports a checkout whose order was placed but whose emptied
// cart could not be persisted.
var ErrNotCleared = errors.New("cart not cleared")

// DefaultKey is the backend key of the cart when no session is involved.
const DefaultKey = "brahmin_cart"

// KeyFor returns the backend key of a session's cart.
func KeyFor(session string) string {
	if session == "" {
		return DefaultKey
	}
	return DefaultKey + ":" + session
}

type Store struct {
	backend kv.Store
	key     string
	log     *zap.Logger

	mu        sync.Mutex
	items     []LineItem
	observers []observerEntry
	nextObs   int
}

type observerEntry struct {
	id int
	fn Observer
}

type Option func(*Store)

func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.subscribeLocked(o) }
}

// Open hydrates a store from key. A missing or malformed value yields an
// empty cart; only a backend failure is an error.
func Open(ctx context.Context, backend kv.Store, key string, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		key:     key,
		log:     zap.NewNop(),
		items:   []LineItem{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Key() string { return s.key }

// Load re-reads the persisted cart, replaces the in-memory one with it and
// returns a copy.
func (s *Store) Load(ctx context.Context) ([]LineItem, error) {
	raw, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load cart %q: %w", s.key, err)
	}

	items := []LineItem{}
	if ok {
		items = Decode([]byte(raw))
		if len(items) == 0 && raw != "[]" {
			s.log.Debug("persisted cart unusable, starting empty", zap.String("key", s.key))
		}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	return clone(items), nil
}

// Add merges item into the cart. An existing line with the same id keeps its
// name, weight, type and price and only gains quantity. Items with
// Quantity < 1 or a negative Price are ignored. A missing ID is derived from
// name and weight.
func (s *Store) Add(ctx context.Context, item LineItem) error {
	if item.ID == "" && item.Name != "" {
		item.ID = ItemID(item.Name, item.Weight)
	}
	if !item.valid() {
		return nil
	}
	item.Type = catalog.ParseProductType(string(item.Type))

	return s.mutate(ctx, OpAdd, func(items []LineItem) ([]LineItem, bool) {
		if i := indexOf(items, item.ID); i >= 0 {
			items[i].Quantity += item.Quantity
			return items, true
		}
		return append(items, item), true
	})
}

// Remove deletes the line with id. Removing an absent id does nothing.
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, OpRemove, func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, id)
		if i < 0 {
			return items, false
		}
		return append(items[:i], items[i+1:]...), true
	})
}

// SetQuantity sets an absolute quantity. quantity <= 0 removes the line;
// an unknown id does nothing.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, id)
	}
	return s.mutate(ctx, OpSetQuantity, func(items []LineItem) ([]LineItem, bool) {
		i := indexOf(items, id)
		if i < 0 || items[i].Quantity == quantity {
			return items, false
		}
		items[i].Quantity = quantity
		return items, true
	})
}

// Clear empties the cart. It always persists and notifies, even when the
// cart was already empty.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, OpClear, func([]LineItem) ([]LineItem, bool) {
		return []LineItem{}, true
	})
}

// Checkout hands the current lines to place and, when place succeeds,
// empties the cart. The store stays locked throughout, so no mutation can
// land between the snapshot and the clear and a second Checkout sees the
// emptied cart. place must not call back into the store.
//
// An error from place is returned as is and leaves the cart untouched. A
// failure to persist the emptied cart is wrapped in ErrNotCleared.
func (s *Store) Checkout(ctx context.Context, place func([]LineItem) error) error {
	s.mu.Lock()

	if err := place(clone(s.items)); err != nil {
		s.mu.Unlock()
		return err
	}

	next := []LineItem{}
	raw, err := Encode(next)
	if err == nil {
		err = s.backend.Set(ctx, s.key, string(raw))
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("cart not persisted", zap.String("key", s.key), zap.String("op", string(OpClear)), zap.Error(err))
		return fmt.Errorf("%w: %q: %w", ErrNotCleared, s.key, err)
	}

	change, observers := s.commitLocked(OpClear, next)
	s.mu.Unlock()

	for _, o := range observers {
		o(change)
	}
	return nil
}

func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalsOf(s.items)
}

func (s *Store) Find(id string) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	return LineItem{}, false
}

// Items returns the cart in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.items)
}

// Subscribe registers o for every later mutation. The returned func removes
// it again and is safe to call more than once.
func (s *Store) Subscribe(o Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.subscribeLocked(o)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, e := range s.observers {
				if e.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) subscribeLocked(o Observer) int {
	s.nextObs++
	s.observers = append(s.observers, observerEntry{id: s.nextObs, fn: o})
	return s.nextObs
}

func (s *Store) mutate(ctx context.Context, op Op, fn func([]LineItem) ([]LineItem, bool)) error {
	s.mu.Lock()

	next, changed := fn(clone(s.items))
	if !changed {
		s.mu.Unlock()
		return nil
	}

	raw, err := Encode(next)
	if err == nil {
		err = s.backend.Set(ctx, s.key, string(raw))
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("cart not persisted", zap.String("key", s.key), zap.String("op", string(op)), zap.Error(err))
		return fmt.Errorf("persist cart %q: %w", s.key, err)
	}

	change, observers := s.commitLocked(op, next)
	s.mu.Unlock()

	// outside the lock so observers may read the store
	for _, o := range observers {
		o(change)
	}
	return nil
}

func (s *Store) commitLocked(op Op, next []LineItem) (Change, []Observer) {
	s.items = next
	change := Change{Key: s.key, Op: op, Totals: totalsOf(next), Items: clone(next)}
	observers := make([]Observer, len(s.observers))
	for i, e := range s.observers {
		observers[i] = e.fn
	}
	return change, observers
}
