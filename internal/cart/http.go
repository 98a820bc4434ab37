package cart

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Storefront/internal/catalog"
	"Storefront/pkg/kit"
)

const SessionHeader = "X-Session-Id"

var sessionRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// SessionFunc resolves the shopper session a request belongs to.
type SessionFunc func(*http.Request) (string, bool)

// HeaderSession reads an anonymous session id from X-Session-Id.
func HeaderSession(r *http.Request) (string, bool) {
	sid := r.Header.Get(SessionHeader)
	if !sessionRe.MatchString(sid) {
		return "", false
	}
	return "anon-" + sid, true
}

type ProductLookup interface {
	Get(ctx context.Context, id string) (catalog.Product, bool, error)
	ListSortedByID(ctx context.Context) ([]catalog.Product, error)
}

type Server struct {
	Sessions *Sessions
	Catalog  ProductLookup
	Session  SessionFunc
	Log      *zap.Logger
}

type cartResp struct {
	Items  []LineItem `json:"items"`
	Totals Totals     `json:"totals"`
}

// addReq still accepts type and price from older clients; both are replaced
// by catalog values.
type addReq struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Weight   string `json:"weight"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type quickAddReq struct {
	ProductID string `json:"product_id"`
}

type selectionReq struct {
	ProductID string `json:"product_id"`
	Variants  []struct {
		Weight   string `json:"weight"`
		Quantity int    `json:"quantity"`
	} `json:"variants"`
}

type quantityReq struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) Routes(r chi.Router) {
	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", s.get)
		cr.Delete("/", s.clear)
		cr.Get("/totals", s.totals)
		cr.Post("/items", s.add)
		cr.Put("/items/{id}", s.setQuantity)
		cr.Delete("/items/{id}", s.remove)
		cr.Post("/quick-add", s.quickAdd)
		cr.Post("/selections", s.addSelection)
	})
}

func (s *Server) store(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	resolve := s.Session
	if resolve == nil {
		resolve = HeaderSession
	}
	sid, ok := resolve(r)
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "session required", map[string]any{"header": SessionHeader})
		return nil, false
	}

	st, err := s.Sessions.Cart(r.Context(), sid)
	if err != nil {
		s.logError("open cart failed", err, sid)
		kit.WriteError(w, r, http.StatusServiceUnavailable, "cart unavailable", nil)
		return nil, false
	}
	return st, true
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	writeCart(w, st)
}

func (s *Server) totals(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, st.Totals())
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}

	var req addReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.ID == "" && req.Name == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "id or name required", nil)
		return
	}

	item, found, err := s.catalogLine(r.Context(), req)
	if err != nil {
		s.logError("catalog lookup failed", err, req.ID+req.Name)
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"id": req.ID, "name": req.Name, "weight": req.Weight})
		return
	}
	if !s.persist(w, r, st, st.Add(r.Context(), item)) {
		return
	}
	writeCart(w, st)
}

// catalogLine resolves a raw add against the catalog, by line id or by name
// and weight. Name, type, weight and price always come from the catalog.
func (s *Server) catalogLine(ctx context.Context, req addReq) (LineItem, bool, error) {
	products, err := s.Catalog.ListSortedByID(ctx)
	if err != nil {
		return LineItem{}, false, err
	}

	id := strings.TrimSpace(req.ID)
	name := strings.TrimSpace(req.Name)
	weight := strings.TrimSpace(req.Weight)

	for _, p := range products {
		line := LineItem{Name: p.Name, Type: p.Type, Quantity: req.Quantity}

		if v, ok := p.QuickAddVariant(); ok && id == QuickAddID(p.Name) {
			line.ID, line.Weight, line.Price = id, v.Weight, v.Price
			return line, true, nil
		}
		for _, v := range p.Variants {
			byID := id != "" && id == ItemID(p.Name, v.Weight)
			byName := id == "" && strings.EqualFold(name, p.Name) && strings.EqualFold(weight, v.Weight)
			if byID || byName {
				line.ID, line.Weight, line.Price = ItemID(p.Name, v.Weight), v.Weight, v.Price
				return line, true, nil
			}
		}
	}
	return LineItem{}, false, nil
}

func (s *Server) quickAdd(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}

	var req quickAddReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, ok := s.product(w, r, req.ProductID)
	if !ok {
		return
	}
	v, ok := p.QuickAddVariant()
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "variant selection required", map[string]any{"product_id": p.ID})
		return
	}

	item := LineItem{
		ID:       QuickAddID(p.Name),
		Name:     p.Name,
		Type:     p.Type,
		Weight:   v.Weight,
		Price:    v.Price,
		Quantity: 1,
	}
	if !s.persist(w, r, st, st.Add(r.Context(), item)) {
		return
	}
	writeCart(w, st)
}

func (s *Server) addSelection(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}

	var req selectionReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, ok := s.product(w, r, req.ProductID)
	if !ok {
		return
	}

	// resolve every variant before touching the cart
	items := make([]LineItem, 0, len(req.Variants))
	for _, sel := range req.Variants {
		if sel.Quantity <= 0 {
			continue
		}
		v, found := p.Variant(sel.Weight)
		if !found {
			kit.WriteError(w, r, http.StatusBadRequest, catalog.ErrNoVariant.Error(), map[string]any{"weight": sel.Weight})
			return
		}
		items = append(items, LineItem{
			ID:       ItemID(p.Name, v.Weight),
			Name:     p.Name,
			Type:     p.Type,
			Weight:   v.Weight,
			Price:    v.Price,
			Quantity: sel.Quantity,
		})
	}
	if len(items) == 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "select a quantity", nil)
		return
	}

	for _, it := range items {
		if !s.persist(w, r, st, st.Add(r.Context(), it)) {
			return
		}
	}
	writeCart(w, st)
}

func (s *Server) setQuantity(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}

	var req quantityReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.Quantity == nil {
		kit.WriteError(w, r, http.StatusBadRequest, "quantity required", nil)
		return
	}

	if !s.persist(w, r, st, st.SetQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity)) {
		return
	}
	writeCart(w, st)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	if !s.persist(w, r, st, st.Remove(r.Context(), chi.URLParam(r, "id"))) {
		return
	}
	writeCart(w, st)
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	if !s.persist(w, r, st, st.Clear(r.Context())) {
		return
	}
	writeCart(w, st)
}

func (s *Server) product(w http.ResponseWriter, r *http.Request, id string) (catalog.Product, bool) {
	if id == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return catalog.Product{}, false
	}
	p, found, err := s.Catalog.Get(r.Context(), id)
	if err != nil {
		s.logError("catalog lookup failed", err, id)
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
		return catalog.Product{}, false
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"product_id": id})
		return catalog.Product{}, false
	}
	return p, true
}

func (s *Server) persist(w http.ResponseWriter, r *http.Request, st *Store, err error) bool {
	if err == nil {
		return true
	}
	s.logError("cart mutation failed", err, st.Key())
	status := http.StatusServiceUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		status = http.StatusGatewayTimeout
	}
	kit.WriteError(w, r, status, "cart not saved", nil)
	return false
}

func (s *Server) logError(msg string, err error, ref string) {
	if s.Log != nil {
		s.Log.Error(msg, zap.Error(err), zap.String("ref", ref))
	}
}

func writeCart(w http.ResponseWriter, st *Store) {
	items := st.Items()
	kit.WriteJSON(w, http.StatusOK, cartResp{Items: items, Totals: totalsOf(items)})
}
