package appstate

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// AddProduct appends a validated product. An empty id is assigned.
func (s *State) AddProduct(p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		p.ID = "p-" + uuid.NewString()
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.ID == p.ID {
			return domain.Product{}, fmt.Errorf("product %s: %w", p.ID, ErrDuplicate)
		}
	}
	next := append(append(make([]domain.Product, 0, len(s.products)+1), s.products...), p)
	s.products = next
	return p, s.cols.SaveProducts(next)
}

// UpdateProduct replaces the product with the same id.
func (s *State) UpdateProduct(p domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.products, func(x domain.Product) bool { return x.ID == p.ID })
	if idx < 0 {
		return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}
	next := append([]domain.Product(nil), s.products...)
	next[idx] = p
	s.products = next
	if s.selectedProduct != nil && s.selectedProduct.ID == p.ID {
		cp := p
		s.selectedProduct = &cp
	}
	return s.cols.SaveProducts(next)
}

// DeleteProduct removes the product for good. A detail view of it falls back to HOME.
func (s *State) DeleteProduct(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.products, func(x domain.Product) bool { return x.ID == id })
	if idx < 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	next := removeAt(s.products, idx)
	s.products = next
	if err := s.cols.SaveProducts(next); err != nil {
		return err
	}
	if s.screen == domain.ScreenProductDetail {
		s.screen = domain.ScreenHome
		return s.cols.SaveCurrentScreen(s.screen)
	}
	return nil
}

// AddCategory appends a named category. An empty id is assigned.
func (s *State) AddCategory(c domain.Category) (domain.Category, error) {
	if strings.TrimSpace(c.Name) == "" {
		return domain.Category{}, fmt.Errorf("category name required")
	}
	if c.ID == "" {
		c.ID = "c-" + uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.categories, func(x domain.Category) bool { return x.ID == c.ID }) >= 0 {
		return domain.Category{}, fmt.Errorf("category %s: %w", c.ID, ErrDuplicate)
	}
	next := append(append(make([]domain.Category, 0, len(s.categories)+1), s.categories...), c)
	s.categories = next
	return c, s.cols.SaveCategories(next)
}

func (s *State) UpdateCategory(c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.categories, func(x domain.Category) bool { return x.ID == c.ID })
	if idx < 0 {
		return fmt.Errorf("category %s: %w", c.ID, ErrNotFound)
	}
	next := append([]domain.Category(nil), s.categories...)
	next[idx] = c
	s.categories = next
	return s.cols.SaveCategories(next)
}

// DeleteCategory removes the category. Its products keep the dangling reference.
func (s *State) DeleteCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.categories, func(x domain.Category) bool { return x.ID == id })
	if idx < 0 {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	next := removeAt(s.categories, idx)
	s.categories = next
	return s.cols.SaveCategories(next)
}

// UpdateSettings replaces the settings record after validation.
func (s *State) UpdateSettings(v domain.SystemSettings) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = v
	return s.cols.SaveSettings(v)
}

// MarkSynced stamps the settings with the current time, the manual "sync now".
func (s *State) MarkSynced() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	next.LastSyncTimestamp = s.opts.Now().UTC().Format(time.RFC3339Nano)
	s.settings = next
	return s.cols.SaveSettings(next)
}

func indexOf[T any](list []T, match func(T) bool) int {
	for i, v := range list {
		if match(v) {
			return i
		}
	}
	return -1
}

func removeAt[T any](list []T, idx int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:idx]...)
	return append(out, list[idx+1:]...)
}
