package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

type Server struct {
	Service *Service
	Log     *zap.Logger
	// Limiter throttles register and login per client IP. Nil uses a
	// default of 10 requests a minute.
	Limiter *kit.IPRateLimiter
}

// Routes expects Identify to run earlier in the chain.
func (s *Server) Routes(r chi.Router) {
	lim := s.Limiter
	if lim == nil {
		lim = kit.NewIPRateLimiter(authRateLimit, authRateWindow)
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(lim.Middleware).Post("/register", s.register)
		r.With(lim.Middleware).Post("/login", s.login)
		r.Post("/password-strength", s.strength)
		r.With(RequireAuth).Get("/whoami", s.whoami)
		r.With(RequireAuth).Post("/logout", s.logout)
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req Signup
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	a, err := s.Service.Register(r.Context(), req)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid signup", map[string]any{"problems": verr.Problems})
		return
	case errors.Is(err, ErrEmailExists):
		kit.WriteError(w, r, http.StatusConflict, "Email already registered", nil)
		return
	case err != nil:
		s.logger().Error("register", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "account store unavailable", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, a.Profile())
}

type loginReq struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.Email == "" || req.Password == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "email/password required", nil)
		return
	}

	out, err := s.Service.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		kit.WriteError(w, r, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	case err != nil:
		s.logger().Error("login", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "account store unavailable", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	c, _ := ClaimsFromContext(r.Context())

	p, err := s.Service.Profile(r.Context(), c.AccountID)
	switch {
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusUnauthorized, "account no longer exists", nil)
		return
	case err != nil:
		s.logger().Error("whoami", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "account store unavailable", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	c, _ := ClaimsFromContext(r.Context())

	if err := s.Service.Logout(r.Context(), c); err != nil {
		s.logger().Error("logout", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "session store unavailable", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type strengthReq struct {
	Password string `json:"password"`
}

func (s *Server) strength(w http.ResponseWriter, r *http.Request) {
	var req strengthReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	kit.WriteJSON(w, http.StatusOK, PasswordStrength(req.Password))
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
