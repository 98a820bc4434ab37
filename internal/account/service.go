package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"Storefront/internal/kv"
)

const (
	currentUserPrefix = "brahmins_current_user:"

	SessionTTL  = 15 * time.Minute
	RememberTTL = 7 * 24 * time.Hour
)

var ErrLoggedOut = errors.New("session ended")

// CurrentUserKey is where a login's account reference lives until logout or
// until the login's token expires, whichever comes first.
func CurrentUserKey(jti string) string {
	return currentUserPrefix + jti
}

type Service struct {
	Store  Store
	Tokens *TokenMaker
	// Refs holds one current-user reference per login.
	Refs kv.Store
	Log  *zap.Logger

	now func() time.Time
}

func NewService(store Store, tokens *TokenMaker, refs kv.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Tokens: tokens, Refs: refs, Log: log, now: time.Now}
}

func (s *Service) Register(ctx context.Context, in Signup) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	a := Account{
		ID:          "u_" + uuid.NewString(),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       normalizeEmail(in.Email),
		Phone:       in.Phone,
		DateOfBirth: in.DateOfBirth,
		Newsletter:  in.Newsletter,
		Hash:        hash,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.Store.Create(ctx, a); err != nil {
		return Account{}, err
	}

	s.Log.Info("account registered", zap.String("account_id", a.ID))
	return a, nil
}

type Login struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	Profile   Profile   `json:"profile"`
}

func (s *Service) Login(ctx context.Context, email, password string, remember bool) (Login, error) {
	if !ValidEmail(email) || password == "" {
		return Login{}, ErrInvalidCredentials
	}

	a, ok, err := s.Store.FindByEmail(ctx, email)
	if err != nil {
		return Login{}, err
	}
	if !ok || bcrypt.CompareHashAndPassword(a.Hash, []byte(password)) != nil {
		return Login{}, ErrInvalidCredentials
	}

	ttl := SessionTTL
	if remember {
		ttl = RememberTTL
	}
	tok, claims, err := s.Tokens.New(a, ttl)
	if err != nil {
		return Login{}, fmt.Errorf("issue token: %w", err)
	}
	// the ref lives exactly as long as the token it backs
	if err := kv.SetTTL(ctx, s.Refs, CurrentUserKey(claims.ID), a.ID, ttl); err != nil {
		return Login{}, fmt.Errorf("store current user: %w", err)
	}

	return Login{Token: tok, ExpiresAt: claims.ExpiresAt.Time, Profile: a.Profile()}, nil
}

// Authenticate parses a bearer token and checks its login has not ended.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
	c, err := s.Tokens.Parse(token)
	if err != nil {
		return Claims{}, err
	}

	id, ok, err := s.Refs.Get(ctx, CurrentUserKey(c.ID))
	if err != nil {
		return Claims{}, err
	}
	if !ok || id != c.AccountID {
		return Claims{}, ErrLoggedOut
	}
	return c, nil
}

func (s *Service) Logout(ctx context.Context, c Claims) error {
	return s.Refs.Delete(ctx, CurrentUserKey(c.ID))
}

func (s *Service) Profile(ctx context.Context, id string) (Profile, error) {
	a, ok, err := s.Store.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrNotFound
	}
	return a.Profile(), nil
}
