package cart

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"Storefront/internal/kv"
)

var ErrNoSession = errors.New("cart: session id required")

// Sessions hands out one Store per shopper session. Stores are cached in a
// bounded LRU. A store evicted from the LRU while a request still holds it
// is handed out again until it is collected, so a key never has two live
// Stores. Only a collected store is re-hydrated from the backend.
type Sessions struct {
	backend   kv.Store
	log       *zap.Logger
	observers []Observer

	mu    sync.Mutex
	cache *lru.Cache
	live  map[string]weak.Pointer[Store]
}

type liveRef struct {
	session string
	ptr     weak.Pointer[Store]
}

func NewSessions(backend kv.Store, size int, log *zap.Logger, observers ...Observer) (*Sessions, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		backend:   backend,
		log:       log,
		observers: observers,
		cache:     cache,
		live:      map[string]weak.Pointer[Store]{},
	}, nil
}

func (s *Sessions) Cart(ctx context.Context, session string) (*Store, error) {
	if session == "" {
		return nil, ErrNoSession
	}

	// held across Open so two requests for a cold session share one Store
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache.Get(session); ok {
		return v.(*Store), nil
	}
	if st := s.live[session].Value(); st != nil {
		s.cache.Add(session, st)
		return st, nil
	}

	opts := []Option{WithLogger(s.log)}
	for _, o := range s.observers {
		opts = append(opts, WithObserver(o))
	}

	st, err := Open(ctx, s.backend, KeyFor(session), opts...)
	if err != nil {
		return nil, err
	}
	s.cache.Add(session, st)

	ptr := weak.Make(st)
	s.live[session] = ptr
	runtime.AddCleanup(st, s.dropLive, liveRef{session: session, ptr: ptr})
	return st, nil
}

func (s *Sessions) dropLive(ref liveRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live[ref.session] == ref.ptr {
		delete(s.live, ref.session)
	}
}

// Forget drops the cached store without touching persisted data. A caller
// still holding the store keeps getting it back from Cart.
func (s *Sessions) Forget(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(session)
}

func (s *Sessions) Cached() int {
	return s.cache.Len()
}
