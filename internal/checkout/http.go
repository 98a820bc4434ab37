package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/pkg/kit"
)

type Server struct {
	Service *Service
	Session cart.SessionFunc
	Log     *zap.Logger
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/checkout", s.checkout)
	r.Get("/orders/{id}", s.get)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	resolve := s.Session
	if resolve == nil {
		resolve = cart.HeaderSession
	}
	sid, ok := resolve(r)
	if !ok {
		kit.WriteError(w, r, http.StatusBadRequest, "session required", map[string]any{"header": cart.SessionHeader})
		return "", false
	}
	return sid, true
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.session(w, r)
	if !ok {
		return
	}

	o, err := s.Service.Checkout(r.Context(), sid)
	switch {
	case errors.Is(err, ErrEmptyCart):
		kit.WriteError(w, r, http.StatusBadRequest, "cart is empty", nil)
		return
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
		return
	case err != nil:
		if s.Log != nil {
			s.Log.Error("checkout failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "order not placed", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, o)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	sid, ok := s.session(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	o, found, err := s.Service.Get(r.Context(), id)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("store get order failed", zap.Error(err), zap.String("order_id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if o.SessionID != sid {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
