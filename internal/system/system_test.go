package system

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/kvstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type echoGen struct{}

func (echoGen) Generate(_ context.Context, _, message string) (string, error) {
	return "echo: " + message, nil
}

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Path = ""
	cfg.Sync.ReconcileInterval = "20ms"
	cfg.Sync.ReconcileJitter = "0s"
	return cfg
}

func startContext(t *testing.T, cfg *config.Config, hub *Hub) *Context {
	t.Helper()
	c, err := New(context.Background(), cfg, Options{Hub: hub, Generator: echoGen{}})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return c
}

func TestContextsInOneProcessShareUpdates(t *testing.T) {
	cfg := memoryConfig()
	cfg.Sync.ReconcileInterval = "1h"
	hub := NewHub(kvstore.NewMemoryBackend(0))
	t.Cleanup(func() { assert.NoError(t, hub.Close()) })

	a := startContext(t, cfg, hub)
	b := startContext(t, cfg, hub)
	require.False(t, b.State.Settings().GlobalDiscountEnabled)

	settings := a.State.Settings()
	settings.GlobalDiscountEnabled = true
	require.NoError(t, a.State.UpdateSettings(settings))

	require.Eventually(t, func() bool {
		return b.State.Settings().GlobalDiscountEnabled
	}, 2*time.Second, 5*time.Millisecond, "notification should reach the other context")
	assert.True(t, b.State.JustSynced())
}

func TestReconcileLoopCatchesUnnotifiedWrites(t *testing.T) {
	cfg := memoryConfig()
	backend := kvstore.NewMemoryBackend(0)
	hub := NewHub(backend)
	t.Cleanup(func() { assert.NoError(t, hub.Close()) })
	c := startContext(t, cfg, hub)

	// written straight to the backend, so no notification is published
	require.NoError(t, backend.Set("products_v1", []byte(`[{"id":"only","name":"Only","price":10,"isActive":true}]`)))

	require.Eventually(t, func() bool {
		p := c.State.Products()
		return len(p) == 1 && p[0].ID == "only"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestProcessesShareADirectory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "dir"
	cfg.Storage.Path = t.TempDir()
	cfg.Sync.ReconcileInterval = "1h"
	cfg.Sync.WatchDebounce = "10ms"

	// each owns its hub, like two separate processes
	a := startContext(t, cfg, nil)
	b := startContext(t, cfg, nil)
	assert.True(t, a.Durable())

	settings := a.State.Settings()
	settings.DeliveryCharge = 70
	require.NoError(t, a.State.UpdateSettings(settings))

	require.Eventually(t, func() bool {
		return b.State.Settings().DeliveryCharge == 70
	}, 3*time.Second, 10*time.Millisecond, "watcher bridge should deliver the write")
}

func TestRestoreReloadsState(t *testing.T) {
	c := startContext(t, memoryConfig(), nil)

	original := c.State.Products()
	require.NoError(t, c.Collections.SaveProducts(original))
	var buf bytes.Buffer
	require.NoError(t, c.Backup.Export(&buf))

	require.NoError(t, c.State.DeleteProduct(original[0].ID))
	require.Len(t, c.State.Products(), len(original)-1)

	res, err := c.Restore(context.Background(), &buf)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Restored)
	assert.Equal(t, original, c.State.Products())
}

func TestChat(t *testing.T) {
	c := startContext(t, memoryConfig(), nil)

	reply, ok := c.Chat(context.Background(), "hello")
	require.True(t, ok)
	assert.Equal(t, "echo: hello", reply.Text)
	assert.Equal(t, domain.SenderSupport, reply.Sender)
	assert.Len(t, c.State.Messages(), 2)

	s := c.State.Settings()
	s.AIAssistantEnabled = false
	require.NoError(t, c.State.UpdateSettings(s))
	_, ok = c.Chat(context.Background(), "anyone?")
	assert.False(t, ok)
}

type failGen struct{}

func (failGen) Generate(context.Context, string, string) (string, error) {
	return "", assert.AnError
}

func TestChatFallsBackToConfiguredLanguage(t *testing.T) {
	cfg := memoryConfig()
	cfg.Assistant.Language = "en"
	c, err := New(context.Background(), cfg, Options{Generator: failGen{}})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	reply, ok := c.Chat(context.Background(), "hello")
	require.True(t, ok)
	assert.Equal(t, "Sorry, I'm having trouble responding right now.", reply.Text)

	require.NoError(t, c.State.SetLanguage(domain.LangBengali))
	reply, ok = c.Chat(context.Background(), "hello")
	require.True(t, ok)
	assert.Equal(t, "দুঃখিত, এআই অ্যাসিস্ট্যান্ট এখন কাজ করছে না।", reply.Text, "the shopper's choice wins")
}

func TestQuotaWarningReachesState(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.QuotaBytes = 64
	c := startContext(t, cfg, nil)

	require.NoError(t, c.State.AddToCart(domain.Product{ID: "x", Name: "বড় পণ্য", Price: 10, IsActive: true}))
	assert.NotEmpty(t, c.State.Warning())
	assert.NotEmpty(t, c.Store.QuotaFailures())

	est, ok := c.Advisor.UsageEstimate(context.Background())
	require.True(t, ok)
	assert.Equal(t, int64(64), est.QuotaBytes)
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Backend = "floppy"
	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := New(context.Background(), memoryConfig(), Options{Generator: echoGen{}})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(context.Background()), kvstore.ErrClosed)
}
