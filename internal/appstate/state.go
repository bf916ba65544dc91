// Package appstate owns the in-memory view of one running context.
//
// Mutators update memory first and then persist through the collection
// accessors; a failed write leaves memory ahead of storage rather than
// rolling back. Changes made elsewhere arrive through HandleChange (the
// notifier listener) and Reconcile (the periodic backstop). Concurrent
// writers to the same collection resolve last-write-wins at the storage
// layer; nothing here merges edits.
package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	jsoniter "github.com/json-iterator/go"

	"storefront/internal/collections"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("already exists")
	ErrStoreClosed    = errors.New("store is closed")
	ErrEmptyCart      = errors.New("cart is empty")
	ErrBelowMinimum   = errors.New("order below minimum amount")
	ErrInvalidPayment = errors.New("invalid payment details")
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// equalOpts treats nil and empty collections alike.
var equalOpts = cmp.Options{cmpopts.EquateEmpty()}

// Options tunes the sync signal.
type Options struct {
	NotifyFlash    time.Duration // "just synced" after a notification
	ReconcileFlash time.Duration // "just synced" after a reconcile hit
	Now            func() time.Time
}

// State is the application-state owner for one context.
type State struct {
	cols *collections.Collections
	opts Options

	mu              sync.RWMutex
	products        []domain.Product
	categories      []domain.Category
	orders          []domain.Order
	addresses       []domain.Address
	settings        domain.SystemSettings
	cart            []domain.CartItem
	favorites       []string
	recentlyViewed  []string
	currentUser     *domain.User
	screen          domain.Screen
	selectedProduct *domain.Product
	selectedOrder   *domain.Order
	theme           domain.Theme
	lang            domain.Language
	notifications   bool
	sounds          bool
	messages        []domain.ChatMessage
	syncedUntil     time.Time
	lastUpdate      time.Time

	hookMu   sync.RWMutex
	onUpdate func(keys []string)

	warnMu      sync.Mutex
	storageFull bool
}

// New hydrates a state from storage.
func New(cols *collections.Collections, opts Options) *State {
	if opts.NotifyFlash <= 0 {
		opts.NotifyFlash = 800 * time.Millisecond
	}
	if opts.ReconcileFlash <= 0 {
		opts.ReconcileFlash = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &State{cols: cols, opts: opts}
	s.Reload()
	return s
}

// Reload re-reads every collection from storage, replacing memory wholesale.
// Use it after a restore.
func (s *State) Reload() {
	c := s.cols
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = c.Products()
	s.categories = c.Categories()
	s.orders = c.Orders()
	s.addresses = c.Addresses()
	s.settings = c.Settings()
	s.cart = c.Cart()
	s.favorites = c.Favorites()
	s.recentlyViewed = c.RecentlyViewed()
	s.currentUser = c.CurrentUser()
	s.screen = c.CurrentScreen()
	s.selectedProduct = c.SelectedProduct()
	s.selectedOrder = c.SelectedOrderForTracking()
	s.theme = c.Theme()
	s.lang = c.Language()
	s.notifications = c.NotificationsEnabled()
	s.sounds = c.SoundsEnabled()
	s.lastUpdate = s.opts.Now()
	logging.Get(logging.CategoryState).Debugw("state hydrated",
		"products", len(s.products), "orders", len(s.orders), "screen", s.screen)
}

// SetOnUpdate installs a hook called with the changed keys whenever a
// notification or reconciliation replaces in-memory data.
func (s *State) SetOnUpdate(fn func(keys []string)) {
	s.hookMu.Lock()
	s.onUpdate = fn
	s.hookMu.Unlock()
}

func (s *State) fireUpdate(keys []string) {
	s.hookMu.RLock()
	fn := s.onUpdate
	s.hookMu.RUnlock()
	if fn != nil && len(keys) > 0 {
		fn(keys)
	}
}

// QuotaExceeded records the storage-full warning. It satisfies kvstore.Warner.
// It runs inside mutators that hold mu, so it only touches warnMu.
func (s *State) QuotaExceeded(key string, _ error) {
	s.warnMu.Lock()
	s.storageFull = true
	s.warnMu.Unlock()
	logging.Get(logging.CategoryState).Warnw("storage full, change kept in memory only", "key", key)
}

// Warning returns and clears the pending user-visible warning, in the UI language.
func (s *State) Warning() string {
	s.warnMu.Lock()
	full := s.storageFull
	s.storageFull = false
	s.warnMu.Unlock()
	if !full {
		return ""
	}
	if s.Language() == domain.LangEnglish {
		return "Device storage is full. Clear some app data or take a backup."
	}
	return "মোবাইলের মেমোরি ফুল! অ্যাপের কিছু ডাটা ক্লিয়ার করুন অথবা ব্যাকআপ নিন।"
}

// JustSynced reports whether the sync indicator should be lit.
func (s *State) JustSynced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Now().Before(s.syncedUntil)
}

// LastUpdate is when memory last took in data from storage.
func (s *State) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

func (s *State) flashLocked(d time.Duration) {
	now := s.opts.Now()
	if until := now.Add(d); until.After(s.syncedUntil) {
		s.syncedUntil = until
	}
	s.lastUpdate = now
}

// HandleChange applies a change announced by the notifier. Only the
// collections every context mirrors are taken in. A notification that lost
// a race with a later write is superseded by what storage holds now, unless
// storage is behind memory for that key.
func (s *State) HandleChange(key string, value json.RawMessage) {
	if value == nil {
		return
	}
	raw := []byte(value)
	if !s.aheadOfStorage(key) {
		if current, ok := s.cols.Store().LoadRaw(key); ok && string(current) != string(raw) {
			raw = current
		}
	}

	s.mu.Lock()
	var applied bool
	switch key {
	case collections.KeyProducts:
		applied = decodeInto(raw, &s.products)
	case collections.KeyCategories:
		applied = decodeInto(raw, &s.categories)
	case collections.KeyOrders:
		applied = decodeInto(raw, &s.orders)
	case collections.KeySettings:
		applied = decodeInto(raw, &s.settings)
	default:
		s.mu.Unlock()
		return
	}
	if applied {
		s.flashLocked(s.opts.NotifyFlash)
	}
	s.mu.Unlock()

	if applied {
		logging.Get(logging.CategorySync).Debugw("update received", "key", key)
		s.fireUpdate([]string{key})
	}
}

func decodeInto[T any](raw []byte, dst *T) bool {
	var v T
	if err := codec.Unmarshal(raw, &v); err != nil {
		logging.Get(logging.CategorySync).Debugw("undecodable update skipped", "error", err)
		return false
	}
	*dst = v
	return true
}

// aheadOfStorage reports whether the latest local write of key was refused
// for lack of space. Storage then holds an older value than memory, so it
// must not be read back over memory until a write of key succeeds.
func (s *State) aheadOfStorage(key string) bool {
	for _, k := range s.cols.Store().QuotaFailures() {
		if k == key {
			return true
		}
	}
	return false
}

// Reconcile re-reads the shared collections and replaces any that differ
// from memory. It never writes to storage. Keys whose last write hit the
// quota are left alone. The returned keys name what changed.
func (s *State) Reconcile(ctx context.Context) ([]string, error) {
	c := s.cols
	lost := make(map[string]bool)
	for _, k := range c.Store().QuotaFailures() {
		lost[k] = true
	}
	products := c.Products()
	settings := c.Settings()
	categories := c.Categories()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orders := c.Orders()

	var changed []string
	s.mu.Lock()
	if !lost[collections.KeyProducts] && !cmp.Equal(products, s.products, equalOpts) {
		s.products = products
		changed = append(changed, collections.KeyProducts)
	}
	if !lost[collections.KeySettings] && !cmp.Equal(settings, s.settings, equalOpts) {
		s.settings = settings
		changed = append(changed, collections.KeySettings)
	}
	if !lost[collections.KeyCategories] && !cmp.Equal(categories, s.categories, equalOpts) {
		s.categories = categories
		changed = append(changed, collections.KeyCategories)
	}
	if !lost[collections.KeyOrders] && !cmp.Equal(orders, s.orders, equalOpts) {
		s.orders = orders
		changed = append(changed, collections.KeyOrders)
	}
	if len(changed) > 0 {
		s.flashLocked(s.opts.ReconcileFlash)
	}
	s.mu.Unlock()

	if len(changed) > 0 {
		logging.Get(logging.CategorySync).Infow("reconciled from storage", "keys", changed)
		s.fireUpdate(changed)
	}
	return changed, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (s *State) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...)
}

// VisibleProducts returns the active products, optionally limited to a category.
func (s *State) VisibleProducts(categoryID string) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.IsActive && (categoryID == "" || p.Category == categoryID) {
			out = append(out, p)
		}
	}
	return out
}

func (s *State) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category(nil), s.categories...)
}

func (s *State) Orders() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Order(nil), s.orders...)
}

func (s *State) Addresses() []domain.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Address(nil), s.addresses...)
}

func (s *State) Settings() domain.SystemSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *State) Cart() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartItem(nil), s.cart...)
}

// CartSubtotal sums price times quantity over the cart.
func (s *State) CartSubtotal() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtotal(s.cart)
}

func (s *State) Favorites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.favorites...)
}

func (s *State) RecentlyViewed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.recentlyViewed...)
}

func (s *State) CurrentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return nil
	}
	u := *s.currentUser
	return &u
}

func (s *State) Screen() domain.Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screen
}

func (s *State) SelectedProduct() *domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedProduct == nil {
		return nil
	}
	p := *s.selectedProduct
	return &p
}

func (s *State) SelectedOrder() *domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selectedOrder == nil {
		return nil
	}
	o := *s.selectedOrder
	return &o
}

func (s *State) Theme() domain.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

func (s *State) Language() domain.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

func (s *State) NotificationsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifications
}

func (s *State) SoundsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sounds
}

// AdminStats summarizes the in-memory orders and products.
func (s *State) AdminStats() domain.AdminStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeAdminStats(s.orders, s.products)
}

func subtotal(cart []domain.CartItem) float64 {
	var sum float64
	for _, it := range cart {
		sum += it.LineTotal()
	}
	return sum
}
