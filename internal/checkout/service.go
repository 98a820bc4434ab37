package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Storefront/internal/cart"
)

// Service confirms carts into orders. There is no payment step; an order is
// CONFIRMED as soon as it is stored.
type Service struct {
	Orders   Store
	Sessions *cart.Sessions
	Log      *zap.Logger

	now func() time.Time
}

func NewService(orders Store, sessions *cart.Sessions, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Orders: orders, Sessions: sessions, Log: log, now: time.Now}
}

// Checkout stores the session's cart as an order and then clears the cart,
// holding the cart for the whole step. A failed clear leaves the order
// confirmed; it is logged, not returned.
func (s *Service) Checkout(ctx context.Context, session string) (Order, error) {
	st, err := s.Sessions.Cart(ctx, session)
	if err != nil {
		return Order{}, fmt.Errorf("open cart: %w", err)
	}

	var o Order
	err = st.Checkout(ctx, func(items []cart.LineItem) error {
		if len(items) == 0 {
			return ErrEmptyCart
		}

		var (
			count    int
			subtotal int64
		)
		for _, it := range items {
			count += it.Quantity
			subtotal += it.Total()
		}

		placed := Order{
			ID:        "o_" + uuid.NewString(),
			SessionID: session,
			Items:     items,
			ItemCount: count,
			Subtotal:  subtotal,
			Status:    StatusConfirmed,
			CreatedAt: s.now().UTC(),
		}
		if err := s.Orders.Create(ctx, placed); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
		o = placed
		return nil
	})
	switch {
	case errors.Is(err, cart.ErrNotCleared):
		s.Log.Warn("cart not cleared after checkout",
			zap.Error(err), zap.String("order_id", o.ID), zap.String("session", session))
	case err != nil:
		return Order{}, err
	}

	s.Log.Info("order confirmed",
		zap.String("order_id", o.ID), zap.Int("item_count", o.ItemCount), zap.Int64("subtotal", o.Subtotal))
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, bool, error) {
	return s.Orders.Get(ctx, id)
}
