package appstate

import (
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

// Checkout is what the cart screen submits.
type Checkout struct {
	Method    domain.PaymentMethod
	Payment   *domain.PaymentDetails // required unless Method is COD
	AddressID string                 // empty picks the default address, if any
}

// PlaceOrder turns the cart into a PENDING order at the head of the order
// list and empties the cart. The total is the cart subtotal plus the
// delivery charge; the display discount does not apply to it.
func (s *State) PlaceOrder(req Checkout) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.IsStoreOpen {
		return domain.Order{}, ErrStoreClosed
	}
	if len(s.cart) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	if !req.Method.Valid() {
		return domain.Order{}, fmt.Errorf("%w: unknown method %q", ErrInvalidPayment, req.Method)
	}
	sub := subtotal(s.cart)
	if sub < s.settings.MinOrderAmount {
		return domain.Order{}, fmt.Errorf("%w: %.0f < %.0f", ErrBelowMinimum, sub, s.settings.MinOrderAmount)
	}

	var details *domain.PaymentDetails
	if req.Method != domain.PaymentCOD {
		if !req.Payment.Complete() {
			return domain.Order{}, ErrInvalidPayment
		}
		d := *req.Payment
		details = &d
	}

	var addr *domain.Address
	if req.AddressID != "" {
		idx := indexOf(s.addresses, func(a domain.Address) bool { return a.ID == req.AddressID })
		if idx < 0 {
			return domain.Order{}, fmt.Errorf("address %s: %w", req.AddressID, ErrNotFound)
		}
		a := s.addresses[idx]
		addr = &a
	} else if a, ok := domain.DefaultAddress(s.addresses); ok {
		addr = &a
	}

	now := s.opts.Now()
	order := domain.Order{
		ID:              s.uniqueOrderIDLocked(now),
		Date:            now.Format("02 Jan 2006, 03:04 PM"),
		Total:           sub + s.settings.DeliveryCharge,
		Status:          domain.StatusPending,
		ItemsCount:      len(s.cart),
		Items:           make([]domain.OrderItem, 0, len(s.cart)),
		PaymentMethod:   req.Method,
		PaymentDetails:  details,
		DeliveryAddress: addr,
	}
	for _, it := range s.cart {
		order.Items = append(order.Items, domain.OrderItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}

	orders := append(append(make([]domain.Order, 0, len(s.orders)+1), order), s.orders...)
	s.orders = orders
	s.cart = []domain.CartItem{}
	s.screen = domain.ScreenOrders

	if err := s.cols.SaveOrders(orders); err != nil {
		return order, err
	}
	if err := s.cols.SaveCart(s.cart); err != nil {
		return order, err
	}
	if err := s.cols.SaveCurrentScreen(s.screen); err != nil {
		return order, err
	}
	logging.Get(logging.CategoryState).Infow("order placed", "id", order.ID, "total", order.Total, "method", order.PaymentMethod)
	return order, nil
}

// uniqueOrderIDLocked bumps the millisecond until the id is unused.
func (s *State) uniqueOrderIDLocked(now time.Time) string {
	for {
		id := domain.NewOrderID(now)
		if indexOf(s.orders, func(o domain.Order) bool { return o.ID == id }) < 0 {
			return id
		}
		now = now.Add(time.Millisecond)
	}
}

// SetOrderStatus applies an admin transition. Canceling requires a reason.
func (s *State) SetOrderStatus(id string, to domain.OrderStatus, reason string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.orders, func(o domain.Order) bool { return o.ID == id })
	if idx < 0 {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	next := append([]domain.Order(nil), s.orders...)
	if err := next[idx].Transition(to, reason); err != nil {
		return domain.Order{}, err
	}
	s.orders = next
	if s.selectedOrder != nil && s.selectedOrder.ID == id {
		o := next[idx]
		s.selectedOrder = &o
	}
	return next[idx], s.cols.SaveOrders(next)
}

// AdvanceOrder moves the order one step along the fulfilment chain.
func (s *State) AdvanceOrder(id string) (domain.Order, error) {
	s.mu.RLock()
	idx := indexOf(s.orders, func(o domain.Order) bool { return o.ID == id })
	var status domain.OrderStatus
	if idx >= 0 {
		status = s.orders[idx].Status
	}
	s.mu.RUnlock()
	if idx < 0 {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	next, ok := status.Next()
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s is final", domain.ErrInvalidTransition, status)
	}
	return s.SetOrderStatus(id, next, "")
}

// CancelOrder cancels an order that has not been delivered yet.
func (s *State) CancelOrder(id, reason string) (domain.Order, error) {
	return s.SetOrderStatus(id, domain.StatusCanceled, reason)
}

// TrackOrder opens the tracking screen for an order.
func (s *State) TrackOrder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.orders, func(o domain.Order) bool { return o.ID == id })
	if idx < 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	o := s.orders[idx]
	s.selectedOrder = &o
	s.screen = domain.ScreenTracking
	if err := s.cols.SaveSelectedOrderForTracking(&o); err != nil {
		return err
	}
	return s.cols.SaveCurrentScreen(s.screen)
}
