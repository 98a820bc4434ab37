package checkout

import (
	"context"
	"errors"
	"time"

	"Storefront/internal/cart"
)

const StatusConfirmed = "CONFIRMED"

var ErrEmptyCart = errors.New("cart is empty")

// Order is a confirmed snapshot of a session cart.
type Order struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Items     []cart.LineItem `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  int64           `json:"subtotal"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, bool, error)
	Ping(ctx context.Context) error
}
