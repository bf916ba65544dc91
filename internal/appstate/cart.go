package appstate

import (
	"fmt"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

const recentlyViewedLimit = 10

// AddToCart puts one unit of p in the cart, or bumps the quantity when it is already there.
func (s *State) AddToCart(p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]domain.CartItem(nil), s.cart...)
	if idx := indexOf(next, func(it domain.CartItem) bool { return it.ID == p.ID }); idx >= 0 {
		next[idx].Quantity++
	} else {
		next = append(next, domain.CartItem{Product: p, Quantity: 1})
	}
	s.cart = next
	return s.cols.SaveCart(next)
}

// UpdateCartQuantity adds delta to the item's quantity, never going below one.
func (s *State) UpdateCartQuantity(productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.cart, func(it domain.CartItem) bool { return it.ID == productID })
	if idx < 0 {
		return fmt.Errorf("cart item %s: %w", productID, ErrNotFound)
	}
	next := append([]domain.CartItem(nil), s.cart...)
	next[idx].Quantity = max(1, next[idx].Quantity+delta)
	s.cart = next
	return s.cols.SaveCart(next)
}

func (s *State) RemoveFromCart(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.cart, func(it domain.CartItem) bool { return it.ID == productID })
	if idx < 0 {
		return nil
	}
	next := removeAt(s.cart, idx)
	s.cart = next
	return s.cols.SaveCart(next)
}

func (s *State) ClearCart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = []domain.CartItem{}
	return s.cols.SaveCart(s.cart)
}

// ToggleFavorite flips the favorite flag of a product and returns the new value.
func (s *State) ToggleFavorite(productID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next []string
	on := true
	if idx := indexOf(s.favorites, func(id string) bool { return id == productID }); idx >= 0 {
		next = removeAt(s.favorites, idx)
		on = false
	} else {
		next = append(append([]string(nil), s.favorites...), productID)
	}
	s.favorites = next
	return on, s.cols.SaveFavorites(next)
}

// ViewProduct opens the detail screen and moves p to the front of the recently viewed list.
func (s *State) ViewProduct(p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := make([]string, 0, recentlyViewedLimit)
	recent = append(recent, p.ID)
	for _, id := range s.recentlyViewed {
		if id != p.ID && len(recent) < recentlyViewedLimit {
			recent = append(recent, id)
		}
	}
	s.recentlyViewed = recent
	cp := p
	s.selectedProduct = &cp
	s.screen = domain.ScreenProductDetail

	if err := s.cols.SaveRecentlyViewed(recent); err != nil {
		return err
	}
	if err := s.cols.SaveSelectedProduct(&cp); err != nil {
		return err
	}
	return s.cols.SaveCurrentScreen(s.screen)
}

// AddAddress stores a new address. The first address, or one flagged
// default, becomes the only default.
func (s *State) AddAddress(a domain.Address) (domain.Address, error) {
	if a.ID == "" {
		a.ID = "a-" + uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.addresses, func(x domain.Address) bool { return x.ID == a.ID }) >= 0 {
		return domain.Address{}, fmt.Errorf("address %s: %w", a.ID, ErrDuplicate)
	}
	next := append(append([]domain.Address(nil), s.addresses...), a)
	if a.IsDefault || len(next) == 1 {
		next, _ = domain.SetDefaultAddress(next, a.ID)
		a.IsDefault = true
	}
	s.addresses = next
	return a, s.cols.SaveAddresses(next)
}

// UpdateAddress replaces an address; flagging it default clears the others.
func (s *State) UpdateAddress(a domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.addresses, func(x domain.Address) bool { return x.ID == a.ID })
	if idx < 0 {
		return fmt.Errorf("address %s: %w", a.ID, ErrNotFound)
	}
	next := append([]domain.Address(nil), s.addresses...)
	next[idx] = a
	if a.IsDefault {
		next, _ = domain.SetDefaultAddress(next, a.ID)
	}
	s.addresses = next
	return s.cols.SaveAddresses(next)
}

// DeleteAddress removes an address. Removing the default promotes the first remaining one.
func (s *State) DeleteAddress(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.addresses, func(x domain.Address) bool { return x.ID == id })
	if idx < 0 {
		return fmt.Errorf("address %s: %w", id, ErrNotFound)
	}
	wasDefault := s.addresses[idx].IsDefault
	next := removeAt(s.addresses, idx)
	if wasDefault && len(next) > 0 {
		next, _ = domain.SetDefaultAddress(next, next[0].ID)
	}
	s.addresses = next
	return s.cols.SaveAddresses(next)
}

// SetDefaultAddress makes id the only default address.
func (s *State) SetDefaultAddress(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := domain.SetDefaultAddress(s.addresses, id)
	if !ok {
		return fmt.Errorf("address %s: %w", id, ErrNotFound)
	}
	s.addresses = next
	return s.cols.SaveAddresses(next)
}
