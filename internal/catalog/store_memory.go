package catalog

import (
	"context"
	"sort"
	"sync"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]Product
}

func NewMemStore(products ...Product) *MemStore {
	s := &MemStore{m: make(map[string]Product, len(products))}
	for _, p := range products {
		s.m[p.ID] = p
	}
	return s
}

// NewSeededStore returns the storefront's standing range.
func NewSeededStore() *MemStore {
	return NewMemStore(Seed()...)
}

func Seed() []Product {
	pickle := func(id, name string, p250, p500, p1k int64) Product {
		return Product{ID: id, Name: name, Type: TypePickle, Variants: []Variant{
			{Weight: "250gm", Price: p250},
			{Weight: "500gm", Price: p500},
			{Weight: "1kg", Price: p1k},
		}}
	}
	single := func(id, name string, t ProductType, weight string, price int64) Product {
		return Product{ID: id, Name: name, Type: t, Variants: []Variant{{Weight: weight, Price: price}}}
	}

	return []Product{
		pickle("mango-pickle", "Avakaya Mango Pickle", 150, 280, 520),
		pickle("gongura-pickle", "Gongura Pickle", 160, 300, 560),
		pickle("lemon-pickle", "Lemon Pickle", 120, 220, 420),
		pickle("tomato-pickle", "Tomato Pickle", 130, 240, 450),
		single("kandi-podi", "Kandi Podi", TypePowder, "1kg", 450),
		single("curry-leaf-powder", "Curry Leaf Powder", TypePowder, "1kg", 400),
		single("sambar-powder", "Sambar Powder", TypePowder, "1kg", 380),
		single("wheat-chapathi", "Wheat Chapathi", TypeChapathi, "1pc", 15),
		single("ragi-chapathi", "Ragi Chapathi", TypeChapathi, "1pc", 18),
	}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}
