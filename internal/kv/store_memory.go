package kv

import (
	"context"
	"sync"
	"time"
)

type MemStore struct {
	mu      sync.RWMutex
	m       map[string]string
	expires map[string]time.Time

	now func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[string]string{}, expires: map[string]time.Time{}, now: time.Now}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if at, ok := s.expires[key]; ok && !s.now().Before(at) {
		return "", false, nil
	}
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	delete(s.expires, key)
	return nil
}

func (s *MemStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, at := range s.expires {
		if !now.Before(at) {
			delete(s.m, k)
			delete(s.expires, k)
		}
	}
	s.m[key] = value
	s.expires[key] = now.Add(ttl)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	delete(s.expires, key)
	return nil
}
