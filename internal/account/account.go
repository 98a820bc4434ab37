package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotFound           = errors.New("account not found")
)

// Account is a signup record. Hash is never serialized to clients; see
// Profile for the public view.
type Account struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	Newsletter  bool      `json:"newsletter"`
	Hash        []byte    `json:"pass_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

type Profile struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Newsletter bool      `json:"newsletter"`
	CreatedAt  time.Time `json:"created_at"`
}

func (a Account) Profile() Profile {
	return Profile{
		ID:         a.ID,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Phone:      a.Phone,
		Newsletter: a.Newsletter,
		CreatedAt:  a.CreatedAt,
	}
}

type Store interface {
	// Create fails with ErrEmailExists when the email is taken.
	Create(ctx context.Context, a Account) error
	FindByEmail(ctx context.Context, email string) (Account, bool, error)
	Get(ctx context.Context, id string) (Account, bool, error)
	Ping(ctx context.Context) error
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
