package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"Storefront/internal/kv"
)

// UsersKey holds every account record as one JSON array.
const UsersKey = "brahmins_users"

// ErrUnreadableAccounts means the stored list could not be decoded. Lookups
// treat it as empty; Create refuses to replace it.
var ErrUnreadableAccounts = errors.New("stored account list is unreadable")

// KVStore keeps account records as a JSON list in the key-value backend and
// looks them up by field equality. It suits a single storefront process;
// the mutex does not span processes.
type KVStore struct {
	backend kv.Store

	mu sync.Mutex
}

func NewKVStore(backend kv.Store) *KVStore {
	return &KVStore{backend: backend}
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *KVStore) load(ctx context.Context) ([]Account, error) {
	raw, ok, err := s.backend.Get(ctx, UsersKey)
	if err != nil || !ok {
		return nil, err
	}
	var out []Account
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableAccounts, err)
	}
	return out, nil
}

func (s *KVStore) Create(ctx context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return err
	}

	a.Email = normalizeEmail(a.Email)
	for _, u := range all {
		if normalizeEmail(u.Email) == a.Email {
			return ErrEmailExists
		}
	}

	raw, err := json.Marshal(append(all, a))
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, UsersKey, string(raw))
}

func (s *KVStore) FindByEmail(ctx context.Context, email string) (Account, bool, error) {
	email = normalizeEmail(email)
	return s.find(ctx, func(a Account) bool { return normalizeEmail(a.Email) == email })
}

func (s *KVStore) Get(ctx context.Context, id string) (Account, bool, error) {
	return s.find(ctx, func(a Account) bool { return a.ID == id })
}

func (s *KVStore) find(ctx context.Context, match func(Account) bool) (Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx)
	if errors.Is(err, ErrUnreadableAccounts) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	for _, a := range all {
		if match(a) {
			return a, true, nil
		}
	}
	return Account{}, false, nil
}
