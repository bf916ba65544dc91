package collections

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

func newCollections(t *testing.T) (*Collections, *kvstore.Store) {
	t.Helper()
	s := kvstore.New(kvstore.NewMemoryBackend(0))
	return New(s), s
}

func TestFreshInstallReturnsSeeds(t *testing.T) {
	c, _ := newCollections(t)

	products := c.Products()
	require.NotEmpty(t, products)
	for _, p := range products {
		assert.True(t, p.IsActive)
	}
	assert.Equal(t, domain.SeedCategories(), c.Categories())
	assert.Equal(t, domain.SeedOrders(), c.Orders())
	assert.Equal(t, domain.SeedAddresses(), c.Addresses())
	assert.Empty(t, c.Users())
	assert.Empty(t, c.Cart())
	assert.Nil(t, c.CurrentUser())
	assert.Equal(t, domain.ScreenAuth, c.CurrentScreen())
	assert.Equal(t, domain.LangBengali, c.Language())
	assert.Equal(t, domain.ThemeLight, c.Theme())
	assert.True(t, c.NotificationsEnabled())
	assert.True(t, c.SoundsEnabled())
}

func TestDefaultSettingsAreStable(t *testing.T) {
	c, _ := newCollections(t)
	first := c.Settings()
	time.Sleep(2 * time.Millisecond)
	assert.Empty(t, cmp.Diff(first, c.Settings()))
}

func TestRoundTripEveryCollection(t *testing.T) {
	c, _ := newCollections(t)

	products := []domain.Product{{ID: "x", Name: "ডিম", Price: 12, Stock: 30, IsActive: true}}
	require.NoError(t, c.SaveProducts(products))
	assert.Equal(t, products, c.Products())

	cats := []domain.Category{{ID: "eggs", Name: "ডিম", Icon: "🥚", Color: "yellow"}}
	require.NoError(t, c.SaveCategories(cats))
	assert.Equal(t, cats, c.Categories())

	orders := []domain.Order{{ID: "ORD-1", Status: domain.StatusPending, Items: []domain.OrderItem{{Name: "ডিম", Quantity: 12, Price: 12}}, PaymentMethod: domain.PaymentCOD}}
	require.NoError(t, c.SaveOrders(orders))
	assert.Equal(t, orders, c.Orders())

	settings := c.DefaultSettings()
	settings.GlobalDiscountEnabled = true
	require.NoError(t, c.SaveSettings(settings))
	assert.Equal(t, settings, c.Settings())

	cart := []domain.CartItem{{Product: products[0], Quantity: 2}}
	require.NoError(t, c.SaveCart(cart))
	assert.Equal(t, cart, c.Cart())

	require.NoError(t, c.SaveFavorites([]string{"x"}))
	assert.Equal(t, []string{"x"}, c.Favorites())
	require.NoError(t, c.SaveRecentlyViewed([]string{"x", "p1"}))
	assert.Equal(t, []string{"x", "p1"}, c.RecentlyViewed())

	require.NoError(t, c.SaveTheme(domain.ThemeDark))
	assert.Equal(t, domain.ThemeDark, c.Theme())
	require.NoError(t, c.SaveLanguage(domain.LangEnglish))
	assert.Equal(t, domain.LangEnglish, c.Language())
	require.NoError(t, c.SaveSoundsEnabled(false))
	assert.False(t, c.SoundsEnabled())
	require.NoError(t, c.SaveNotificationsEnabled(false))
	assert.False(t, c.NotificationsEnabled())
}

func TestEmptyCollectionsDoNotFallBackToSeed(t *testing.T) {
	c, _ := newCollections(t)
	require.NoError(t, c.SaveProducts(nil))
	assert.Empty(t, c.Products())
}

func TestSessionKeys(t *testing.T) {
	c, s := newCollections(t)

	user := &domain.User{ID: "u1", Name: "Rahim", Phone: "01711000000", PasswordHash: "hash"}
	require.NoError(t, c.SaveCurrentUser(user))
	require.NoError(t, c.SaveCurrentScreen(domain.ScreenOrders))
	require.NoError(t, c.SaveSelectedProduct(&domain.Product{ID: "p1"}))
	require.NoError(t, c.SaveSelectedOrderForTracking(&domain.Order{ID: "ORD-1"}))

	got := c.CurrentUser()
	require.NotNil(t, got)
	assert.Empty(t, got.PasswordHash, "session copy carries no credentials")
	assert.Equal(t, domain.ScreenOrders, c.CurrentScreen())

	require.NoError(t, c.SaveCart([]domain.CartItem{{Product: domain.Product{ID: "p1"}, Quantity: 1}}))
	require.NoError(t, c.ClearSession())

	for _, k := range SessionKeys() {
		_, ok := s.LoadRaw(k)
		assert.False(t, ok, k)
	}
	assert.Equal(t, domain.ScreenAuth, c.CurrentScreen())
	assert.Len(t, c.Cart(), 1, "cart survives logout")
}

func TestUnknownPreferenceValuesFallBack(t *testing.T) {
	c, s := newCollections(t)
	require.NoError(t, s.SaveRaw(KeyTheme, []byte(`"neon"`)))
	require.NoError(t, s.SaveRaw(KeyLang, []byte(`"fr"`)))
	assert.Equal(t, domain.ThemeLight, c.Theme())
	assert.Equal(t, domain.LangBengali, c.Language())
}

func TestBackupKeys(t *testing.T) {
	fields := []string{}
	for _, e := range BackupKeys() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"products", "categories", "orders", "users", "addresses", "settings"}, fields)
}
