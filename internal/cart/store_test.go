package cart

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"Storefront/internal/catalog"
	"Storefront/internal/kv"
)

func openMem(t *testing.T, backend kv.Store, opts ...Option) *Store {
	t.Helper()
	if backend == nil {
		backend = kv.NewMemStore()
	}
	s, err := Open(context.Background(), backend, DefaultKey, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func mustAdd(t *testing.T, s *Store, it LineItem) {
	t.Helper()
	if err := s.Add(context.Background(), it); err != nil {
		t.Fatalf("Add(%s): %v", it.ID, err)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openMem(t, nil)
	mustAdd(t, s, LineItem{ID: "A", Name: "Lemon Pickle", Price: 120, Quantity: 1})
	mustAdd(t, s, LineItem{ID: "B", Name: "Kandi Podi", Price: 450, Quantity: 2})

	if err := s.Remove(ctx, "A"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	after := s.Items()

	if err := s.Remove(ctx, "A"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if !reflect.DeepEqual(after, s.Items()) {
		t.Fatalf("second remove changed cart: %+v -> %+v", after, s.Items())
	}
	if len(after) != 1 || after[0].ID != "B" {
		t.Fatalf("unexpected cart: %+v", after)
	}
}

func TestAdd_MergeKeepsFirstPrice(t *testing.T) {
	s := openMem(t, nil)
	mustAdd(t, s, LineItem{ID: "A", Name: "Mango", Weight: "250gm", Price: 100, Quantity: 2})
	mustAdd(t, s, LineItem{ID: "A", Name: "Renamed", Weight: "1kg", Price: 999, Quantity: 3})

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("want one line, got %+v", items)
	}
	got := items[0]
	if got.Quantity != 5 || got.Price != 100 || got.Name != "Mango" || got.Weight != "250gm" {
		t.Fatalf("merged line = %+v", got)
	}
}

func TestAdd_IgnoresInvalidItems(t *testing.T) {
	s := openMem(t, nil)

	for _, it := range []LineItem{
		{ID: "A", Price: 10, Quantity: 0},
		{ID: "A", Price: 10, Quantity: -1},
		{ID: "A", Price: -1, Quantity: 1},
		{Price: 10, Quantity: 1},
	} {
		mustAdd(t, s, it)
	}
	if n := len(s.Items()); n != 0 {
		t.Fatalf("invalid items stored: %+v", s.Items())
	}
}

func TestAdd_DerivesIDAndNormalizesType(t *testing.T) {
	s := openMem(t, nil)
	mustAdd(t, s, LineItem{Name: "Gongura Pickle", Weight: "500gm", Type: "PICKLE", Price: 300, Quantity: 1})
	mustAdd(t, s, LineItem{Name: "Gongura Pickle", Weight: "500gm", Price: 300, Quantity: 1})

	it, ok := s.Find("Gongura Pickle_500gm")
	if !ok {
		t.Fatalf("derived id not found: %+v", s.Items())
	}
	if it.Quantity != 2 || it.Type != catalog.TypePickle {
		t.Fatalf("line = %+v", it)
	}
}

func TestSetQuantity(t *testing.T) {
	ctx := context.Background()

	for _, q := range []int{0, -5} {
		s := openMem(t, nil)
		mustAdd(t, s, LineItem{ID: "A", Price: 10, Quantity: 3})

		if err := s.SetQuantity(ctx, "A", q); err != nil {
			t.Fatalf("SetQuantity(%d): %v", q, err)
		}
		if _, ok := s.Find("A"); ok {
			t.Fatalf("SetQuantity(%d) kept the line", q)
		}
	}

	s := openMem(t, nil)
	mustAdd(t, s, LineItem{ID: "A", Price: 10, Quantity: 3})
	if err := s.SetQuantity(ctx, "A", 7); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if it, _ := s.Find("A"); it.Quantity != 7 {
		t.Fatalf("quantity=%d want=7 (absolute)", it.Quantity)
	}
	if err := s.SetQuantity(ctx, "missing", 4); err != nil {
		t.Fatalf("SetQuantity unknown: %v", err)
	}
	if len(s.Items()) != 1 {
		t.Fatalf("unknown id changed cart: %+v", s.Items())
	}
}

func TestTotals(t *testing.T) {
	s := openMem(t, nil)
	mustAdd(t, s, LineItem{ID: "A", Price: 150, Quantity: 2})
	mustAdd(t, s, LineItem{ID: "B", Price: 80, Quantity: 3})

	if got, want := s.Totals(), (Totals{ItemCount: 5, Subtotal: 540}); got != want {
		t.Fatalf("Totals=%+v want=%+v", got, want)
	}
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := kv.NewMemStore()

	s := openMem(t, backend)
	mustAdd(t, s, LineItem{ID: "Tomato Pickle_1kg", Name: "Tomato Pickle", Type: catalog.TypePickle, Weight: "1kg", Price: 450, Quantity: 1})
	mustAdd(t, s, LineItem{ID: "Ragi Chapathi_single", Name: "Ragi Chapathi", Type: catalog.TypeChapathi, Weight: "1pc", Price: 18, Quantity: 10})
	mustAdd(t, s, LineItem{ID: "Kandi Podi_single", Name: "Kandi Podi", Type: catalog.TypePowder, Weight: "1kg", Price: 450, Quantity: 2})

	fresh, err := Open(ctx, backend, DefaultKey)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reflect.DeepEqual(s.Items(), fresh.Items()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", fresh.Items(), s.Items())
	}
}

func TestLoad_MalformedStorage(t *testing.T) {
	ctx := context.Background()

	for name, raw := range map[string]string{
		"not json":  `{{{`,
		"object":    `{"id":"A","quantity":1}`,
		"string":    `"cart"`,
		"null":      `null`,
		"empty":     ``,
		"number":    `42`,
		"bad items": `[{"id":"","quantity":1},{"id":"A","quantity":0},{"id":"B","price":-3,"quantity":1},"x"]`,
	} {
		t.Run(name, func(t *testing.T) {
			backend := kv.NewMemStore()
			_ = backend.Set(ctx, DefaultKey, raw)

			s, err := Open(ctx, backend, DefaultKey)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if items := s.Items(); len(items) != 0 {
				t.Fatalf("want empty cart, got %+v", items)
			}
		})
	}
}

func TestDecode_MergesDuplicatesAndKeepsGoodEntries(t *testing.T) {
	raw := `[
		{"id":"A","name":"Mango","type":"pickle","weight":"250gm","price":150,"quantity":1},
		{"id":"B","name":"Junk","quantity":"two"},
		{"id":"A","name":"Mango","type":"pickle","weight":"250gm","price":999,"quantity":2},
		{"id":"C","name":"Sweet","type":"laddu","weight":"1pc","price":30,"quantity":1}
	]`

	items := Decode([]byte(raw))
	if len(items) != 2 {
		t.Fatalf("items=%+v", items)
	}
	if items[0].ID != "A" || items[0].Quantity != 3 || items[0].Price != 150 {
		t.Fatalf("merged=%+v", items[0])
	}
	if items[1].Type != catalog.TypeOther {
		t.Fatalf("unknown type not normalized: %+v", items[1])
	}
}

func TestKeyFor(t *testing.T) {
	if KeyFor("") != DefaultKey {
		t.Fatalf("empty session must use default key")
	}
	if got := KeyFor("anon-1234"); got != "brahmin_cart:anon-1234" {
		t.Fatalf("KeyFor=%q", got)
	}
}

func TestObservers(t *testing.T) {
	ctx := context.Background()

	var fromOpt []Change
	s := openMem(t, nil, WithObserver(func(c Change) { fromOpt = append(fromOpt, c) }))

	var got []Change
	unsubscribe := s.Subscribe(func(c Change) { got = append(got, c) })

	mustAdd(t, s, LineItem{ID: "A", Price: 100, Quantity: 2})
	_ = s.SetQuantity(ctx, "A", 4)
	_ = s.Remove(ctx, "missing")
	_ = s.Clear(ctx)

	if len(got) != 3 {
		t.Fatalf("notifications=%d want=3: %+v", len(got), got)
	}
	wantOps := []Op{OpAdd, OpSetQuantity, OpClear}
	for i, op := range wantOps {
		if got[i].Op != op || got[i].Key != DefaultKey {
			t.Fatalf("change %d = %+v", i, got[i])
		}
	}
	if got[1].Totals != (Totals{ItemCount: 4, Subtotal: 400}) {
		t.Fatalf("totals after set = %+v", got[1].Totals)
	}
	if len(fromOpt) != 3 {
		t.Fatalf("option observer calls=%d", len(fromOpt))
	}

	unsubscribe()
	unsubscribe()
	mustAdd(t, s, LineItem{ID: "B", Price: 1, Quantity: 1})
	if len(got) != 3 {
		t.Fatalf("observer called after unsubscribe")
	}
	if len(fromOpt) != 4 {
		t.Fatalf("remaining observer not called")
	}
}

func TestObserver_MayReadStore(t *testing.T) {
	s := openMem(t, nil)

	var seen Totals
	s.Subscribe(func(Change) { seen = s.Totals() })
	mustAdd(t, s, LineItem{ID: "A", Price: 5, Quantity: 2})

	if seen != (Totals{ItemCount: 2, Subtotal: 10}) {
		t.Fatalf("observer saw %+v", seen)
	}
}

type failingKV struct {
	kv.Store
	failSet bool
	failGet bool
}

var errBackend = errors.New("backend down")

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errBackend
	}
	return f.Store.Set(ctx, key, value)
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errBackend
	}
	return f.Store.Get(ctx, key)
}

func TestMutation_NotAppliedWhenPersistFails(t *testing.T) {
	backend := &failingKV{Store: kv.NewMemStore()}
	s := openMem(t, backend)
	mustAdd(t, s, LineItem{ID: "A", Price: 10, Quantity: 1})

	notified := 0
	s.Subscribe(func(Change) { notified++ })

	backend.failSet = true
	err := s.Add(context.Background(), LineItem{ID: "A", Price: 10, Quantity: 5})
	if !errors.Is(err, errBackend) {
		t.Fatalf("err=%v want backend error", err)
	}
	if it, _ := s.Find("A"); it.Quantity != 1 {
		t.Fatalf("unpersisted change visible: %+v", it)
	}
	if notified != 0 {
		t.Fatalf("observers notified for failed mutation")
	}
}

func TestOpen_BackendReadError(t *testing.T) {
	backend := &failingKV{Store: kv.NewMemStore(), failGet: true}
	if _, err := Open(context.Background(), backend, DefaultKey); !errors.Is(err, errBackend) {
		t.Fatalf("err=%v want backend error", err)
	}
}

func TestConcurrentAdds(t *testing.T) {
	s := openMem(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(context.Background(), LineItem{ID: "A", Price: 2, Quantity: 1})
		}()
	}
	wg.Wait()

	if got := s.Totals(); got.ItemCount != 50 || got.Subtotal != 100 {
		t.Fatalf("Totals=%+v", got)
	}
}

func TestCheckout_PlacesThenClears(t *testing.T) {
	s := openMem(t, nil)
	mustAdd(t, s, LineItem{ID: "A", Price: 150, Quantity: 2})

	var ops []Op
	s.Subscribe(func(c Change) { ops = append(ops, c.Op) })

	var placed []LineItem
	err := s.Checkout(context.Background(), func(items []LineItem) error {
		placed = items
		return nil
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(placed) != 1 || placed[0].Quantity != 2 {
		t.Fatalf("placed=%+v", placed)
	}
	if len(s.Items()) != 0 || !reflect.DeepEqual(ops, []Op{OpClear}) {
		t.Fatalf("items=%+v ops=%v", s.Items(), ops)
	}
}

func TestCheckout_PlaceErrorKeepsCart(t *testing.T) {
	s := openMem(t, nil)
	mustAdd(t, s, LineItem{ID: "A", Price: 150, Quantity: 2})

	refused := errors.New("refused")
	if err := s.Checkout(context.Background(), func([]LineItem) error { return refused }); !errors.Is(err, refused) {
		t.Fatalf("err=%v", err)
	}
	if it, ok := s.Find("A"); !ok || it.Quantity != 2 {
		t.Fatalf("cart changed: %+v", s.Items())
	}
}

func TestCheckout_ClearNotPersisted(t *testing.T) {
	backend := &failingKV{Store: kv.NewMemStore()}
	s := openMem(t, backend)
	mustAdd(t, s, LineItem{ID: "A", Price: 1, Quantity: 1})

	backend.failSet = true
	err := s.Checkout(context.Background(), func([]LineItem) error { return nil })
	if !errors.Is(err, ErrNotCleared) || !errors.Is(err, errBackend) {
		t.Fatalf("err=%v", err)
	}
	if len(s.Items()) != 1 {
		t.Fatalf("unpersisted clear visible: %+v", s.Items())
	}
}

func TestCheckout_BlocksConcurrentMutations(t *testing.T) {
	s := openMem(t, nil)
	mustAdd(t, s, LineItem{ID: "A", Price: 1, Quantity: 1})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []LineItem)
	go func() {
		_ = s.Checkout(context.Background(), func(items []LineItem) error {
			close(entered)
			<-release
			done <- items
			return nil
		})
	}()

	<-entered
	added := make(chan error)
	go func() { added <- s.Add(context.Background(), LineItem{ID: "late", Price: 5, Quantity: 1}) }()
	close(release)

	placed := <-done
	if err := <-added; err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(placed) != 1 || placed[0].ID != "A" {
		t.Fatalf("placed=%+v", placed)
	}
	if items := s.Items(); len(items) != 1 || items[0].ID != "late" {
		t.Fatalf("late add lost or merged into the order: %+v", items)
	}
}
