// Package collections binds each domain collection to its storage key.
//
// Keys carry a schema version suffix; an incompatible change ships under a
// new key and leaves the old data orphaned instead of migrating it. Getters
// fall back to the seed data so a fresh install is immediately browsable.
package collections

import (
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

// Storage keys.
const (
	KeyProducts                 = "products_v1"
	KeyCategories               = "categories_v1"
	KeyOrders                   = "orders_v1"
	KeyUsers                    = "users"
	KeyAddresses                = "addresses_v1"
	KeySettings                 = "systemSettings_v3"
	KeyCart                     = "cart"
	KeyFavorites                = "favorites"
	KeyRecentlyViewed           = "recentlyViewedIds"
	KeyCurrentUser              = "currentUser"
	KeyCurrentScreen            = "currentScreen"
	KeySelectedProduct          = "selectedProduct"
	KeySelectedOrderForTracking = "selectedOrderForTracking"
	KeyTheme                    = "theme"
	KeyLang                     = "lang"
	KeyNotifications            = "notificationsEnabled"
	KeySounds                   = "soundsEnabled"
)

// BackupEntry pairs a backup envelope field with its storage key.
type BackupEntry struct {
	Field string
	Key   string
}

// BackupKeys lists the collections a backup carries, in envelope order.
func BackupKeys() []BackupEntry {
	return []BackupEntry{
		{"products", KeyProducts},
		{"categories", KeyCategories},
		{"orders", KeyOrders},
		{"users", KeyUsers},
		{"addresses", KeyAddresses},
		{"settings", KeySettings},
	}
}

// SharedKeys are the collections every context mirrors from the others.
func SharedKeys() []string {
	return []string{KeyProducts, KeyCategories, KeyOrders, KeySettings}
}

// SessionKeys are removed on logout.
func SessionKeys() []string {
	return []string{KeyCurrentUser, KeyCurrentScreen, KeySelectedProduct, KeySelectedOrderForTracking}
}

// Collections is the typed accessor set over one store.
type Collections struct {
	store *kvstore.Store

	settingsOnce sync.Once
	defaults     domain.SystemSettings
	now          func() time.Time
}

// New binds accessors to store.
func New(store *kvstore.Store) *Collections {
	return &Collections{store: store, now: time.Now}
}

// Store returns the underlying store.
func (c *Collections) Store() *kvstore.Store { return c.store }

// DefaultSettings is computed once per accessor set so that repeated reads of
// an empty store agree, which keeps reconciliation from flagging a change on
// every tick.
func (c *Collections) DefaultSettings() domain.SystemSettings {
	c.settingsOnce.Do(func() {
		c.defaults = domain.DefaultSettings(c.now())
	})
	return c.defaults
}

// Products.
func (c *Collections) Products() []domain.Product {
	return kvstore.Load(c.store, KeyProducts, domain.SeedProducts())
}

func (c *Collections) SaveProducts(v []domain.Product) error {
	return c.store.Save(KeyProducts, nonNil(v))
}

func (c *Collections) Categories() []domain.Category {
	return kvstore.Load(c.store, KeyCategories, domain.SeedCategories())
}

func (c *Collections) SaveCategories(v []domain.Category) error {
	return c.store.Save(KeyCategories, nonNil(v))
}

func (c *Collections) Orders() []domain.Order {
	return kvstore.Load(c.store, KeyOrders, domain.SeedOrders())
}

func (c *Collections) SaveOrders(v []domain.Order) error {
	return c.store.Save(KeyOrders, nonNil(v))
}

// Users has no seed; accounts are created by registration or the admin bootstrap.
func (c *Collections) Users() []domain.User {
	return kvstore.Load(c.store, KeyUsers, []domain.User{})
}

func (c *Collections) SaveUsers(v []domain.User) error {
	return c.store.Save(KeyUsers, nonNil(v))
}

func (c *Collections) Addresses() []domain.Address {
	return kvstore.Load(c.store, KeyAddresses, domain.SeedAddresses())
}

func (c *Collections) SaveAddresses(v []domain.Address) error {
	return c.store.Save(KeyAddresses, nonNil(v))
}

func (c *Collections) Settings() domain.SystemSettings {
	return kvstore.Load(c.store, KeySettings, c.DefaultSettings())
}

func (c *Collections) SaveSettings(v domain.SystemSettings) error {
	return c.store.Save(KeySettings, v)
}

func (c *Collections) Cart() []domain.CartItem {
	return kvstore.Load(c.store, KeyCart, []domain.CartItem{})
}

func (c *Collections) SaveCart(v []domain.CartItem) error {
	return c.store.Save(KeyCart, nonNil(v))
}

func (c *Collections) Favorites() []string {
	return kvstore.Load(c.store, KeyFavorites, []string{})
}

func (c *Collections) SaveFavorites(v []string) error {
	return c.store.Save(KeyFavorites, nonNil(v))
}

func (c *Collections) RecentlyViewed() []string {
	return kvstore.Load(c.store, KeyRecentlyViewed, []string{})
}

func (c *Collections) SaveRecentlyViewed(v []string) error {
	return c.store.Save(KeyRecentlyViewed, nonNil(v))
}

// CurrentUser returns the logged-in user, or nil.
func (c *Collections) CurrentUser() *domain.User {
	return kvstore.Load[*domain.User](c.store, KeyCurrentUser, nil)
}

func (c *Collections) SaveCurrentUser(u *domain.User) error {
	if u == nil {
		return c.store.Remove(KeyCurrentUser)
	}
	pub := u.Public()
	return c.store.Save(KeyCurrentUser, &pub)
}

// CurrentScreen returns the persisted screen. Without a session it is always AUTH.
func (c *Collections) CurrentScreen() domain.Screen {
	if c.CurrentUser() == nil {
		return domain.ScreenAuth
	}
	return kvstore.Load(c.store, KeyCurrentScreen, domain.ScreenHome)
}

func (c *Collections) SaveCurrentScreen(s domain.Screen) error {
	return c.store.Save(KeyCurrentScreen, s)
}

func (c *Collections) SelectedProduct() *domain.Product {
	return kvstore.Load[*domain.Product](c.store, KeySelectedProduct, nil)
}

func (c *Collections) SaveSelectedProduct(p *domain.Product) error {
	if p == nil {
		return c.store.Remove(KeySelectedProduct)
	}
	return c.store.Save(KeySelectedProduct, p)
}

func (c *Collections) SelectedOrderForTracking() *domain.Order {
	return kvstore.Load[*domain.Order](c.store, KeySelectedOrderForTracking, nil)
}

func (c *Collections) SaveSelectedOrderForTracking(o *domain.Order) error {
	if o == nil {
		return c.store.Remove(KeySelectedOrderForTracking)
	}
	return c.store.Save(KeySelectedOrderForTracking, o)
}

func (c *Collections) Theme() domain.Theme {
	if t := kvstore.Load(c.store, KeyTheme, domain.ThemeLight); t == domain.ThemeDark {
		return t
	}
	return domain.ThemeLight
}

func (c *Collections) SaveTheme(t domain.Theme) error {
	return c.store.Save(KeyTheme, t)
}

func (c *Collections) Language() domain.Language {
	if l := kvstore.Load(c.store, KeyLang, domain.LangBengali); l == domain.LangEnglish {
		return l
	}
	return domain.LangBengali
}

func (c *Collections) SaveLanguage(l domain.Language) error {
	return c.store.Save(KeyLang, l)
}

func (c *Collections) NotificationsEnabled() bool {
	return kvstore.Load(c.store, KeyNotifications, true)
}

func (c *Collections) SaveNotificationsEnabled(v bool) error {
	return c.store.Save(KeyNotifications, v)
}

func (c *Collections) SoundsEnabled() bool {
	return kvstore.Load(c.store, KeySounds, true)
}

func (c *Collections) SaveSoundsEnabled(v bool) error {
	return c.store.Save(KeySounds, v)
}

// ClearSession removes the session keys.
func (c *Collections) ClearSession() error {
	for _, k := range SessionKeys() {
		if err := c.store.Remove(k); err != nil {
			return err
		}
	}
	return nil
}

// nonNil keeps empty collections encoded as [] rather than null, which
// would read back as the seed.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
