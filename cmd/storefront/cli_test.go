package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
)

// resetFlags puts every flag back to its default between executions of the
// shared command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !strings.HasSuffix(f.Value.Type(), "Slice") {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	orderItems = nil
	cfg = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "storefront.yaml"),
		"--backend", "dir",
		"--data", filepath.Join(dir, "store"),
	}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, out)
	return out
}

func TestMain(m *testing.M) {
	// keep the assistant offline
	os.Setenv("GEMINI_API_KEY", "")
	os.Setenv("API_KEY", "")
	os.Exit(m.Run())
}

func TestGetSeedCatalog(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "get", "products")

	var products []domain.Product
	require.NoError(t, json.Unmarshal([]byte(out), &products))
	assert.Len(t, products, len(domain.SeedProducts()))

	_, err := run(t, dir, "get", "nothing")
	assert.ErrorContains(t, err, "unknown collection")
}

func TestOrderLifecycle(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "order", "place", "--item", "p1=2")
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "৳200") // 2 x 75 + 50 delivery

	var orders []domain.Order
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, dir, "get", "orders")), &orders))
	require.Len(t, orders, len(domain.SeedOrders())+1)
	id := orders[0].ID
	assert.Equal(t, 2, orders[0].Items[0].Quantity)

	assert.Contains(t, mustRun(t, dir, "order", "advance", id), "ACCEPTED")
	assert.Contains(t, mustRun(t, dir, "order", "cancel", id, "--reason", "out of stock"), "CANCELED")

	_, err := run(t, dir, "order", "advance", id)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	out = mustRun(t, dir, "order", "track", id)
	assert.Contains(t, out, "out of stock")
}

func TestOrderPlaceRejections(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "order", "place")
	assert.ErrorContains(t, err, "cart is empty")

	_, err = run(t, dir, "order", "place", "--item", "p9", "--method", "BKASH", "--phone", "017", "--trx", "x")
	assert.ErrorContains(t, err, "order below minimum")

	_, err = run(t, dir, "order", "place", "--item", "p7", "--method", "NAGAD", "--phone", "017", "--trx", "x")
	assert.ErrorContains(t, err, "invalid payment")
}

func TestSettingsSet(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "settings", "set", "discount=20", "discount-enabled=true", "name=Corner Shop")
	var s domain.SystemSettings
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.True(t, s.GlobalDiscountEnabled)
	assert.Equal(t, 20.0, s.GlobalDiscountPercentage)
	assert.Equal(t, "Corner Shop", s.StoreName)

	assert.Contains(t, mustRun(t, dir, "product", "list"), "৳60") // p1 at 75 less 20%

	_, err := run(t, dir, "settings", "set", "discount=150")
	assert.ErrorIs(t, err, domain.ErrInvalidSettings)
	_, err = run(t, dir, "settings", "set", "color=red")
	assert.ErrorContains(t, err, "unknown settings field")
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	backups := filepath.Join(dir, "backups")

	mustRun(t, dir, "settings", "set", "name=Before")
	path := strings.TrimSpace(mustRun(t, dir, "export", "--out", backups))
	assert.FileExists(t, path)

	mustRun(t, dir, "settings", "set", "name=After")
	out := mustRun(t, dir, "import", path)
	assert.Contains(t, out, "settings")

	var s domain.SystemSettings
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, dir, "settings", "show")), &s))
	assert.Equal(t, "Before", s.StoreName)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version":"1.0"}`), 0o644))
	_, err := run(t, dir, "import", bad)
	assert.Error(t, err)
}

func TestUserSession(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "user", "register", "--name", "Rahim", "--phone", "01711111111", "--password", "secret1")
	assert.Contains(t, out, "Rahim")

	_, err := run(t, dir, "user", "login", "--phone", "01711111111", "--password", "wrong!!")
	assert.Error(t, err)

	mustRun(t, dir, "user", "login", "--phone", "01711111111", "--password", "secret1")
	assert.Contains(t, mustRun(t, dir, "get", "session"), `"screen": "HOME"`)

	mustRun(t, dir, "user", "logout")
	assert.Contains(t, mustRun(t, dir, "get", "session"), `"user": null`)
}

func TestHashPassword(t *testing.T) {
	out := mustRun(t, t.TempDir(), "user", "hash-password", "hunter22")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("hunter22")))
}

func TestPrefs(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "prefs", "theme=dark", "lang=en", "sounds=false")
	assert.Contains(t, out, "theme=dark lang=en")
	assert.Contains(t, out, "sounds=false")

	_, err := run(t, dir, "prefs", "theme=blue")
	assert.Error(t, err)
}

func TestChatWithoutCredential(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "chat", "hello")
	assert.NotEmpty(t, strings.TrimSpace(out))

	mustRun(t, dir, "settings", "set", "ai=false")
	_, err := run(t, dir, "chat", "hello")
	assert.ErrorContains(t, err, "turned off")
}

func TestEstimate(t *testing.T) {
	out := mustRun(t, t.TempDir(), "estimate", "--persist")
	assert.Contains(t, out, "durable: true")
}

func TestParseItem(t *testing.T) {
	id, qty, err := parseItem("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
	assert.Equal(t, 1, qty)

	id, qty, err = parseItem("p3=4")
	require.NoError(t, err)
	assert.Equal(t, "p3", id)
	assert.Equal(t, 4, qty)

	_, _, err = parseItem("p3=0")
	assert.Error(t, err)
}

func TestApplySettings(t *testing.T) {
	var base domain.SystemSettings
	next, err := applySettings(base, []string{"delivery=60", "open=true", "broadcast=Eid sale"})
	require.NoError(t, err)
	assert.Equal(t, 60.0, next.DeliveryCharge)
	assert.True(t, next.IsStoreOpen)
	assert.Equal(t, "Eid sale", next.BroadcastMessage)

	_, err = applySettings(base, []string{"open=maybe"})
	assert.ErrorContains(t, err, "open:")
	_, err = applySettings(base, []string{"delivery"})
	assert.ErrorContains(t, err, "field=value")
}

func TestCartCommands(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "cart", "add", "p9")
	assert.Contains(t, out, "minimum order")
	out = mustRun(t, dir, "cart", "add", "p1=2")
	assert.Contains(t, out, "total ৳240") // 40 + 150 + 50

	out = mustRun(t, dir, "cart", "remove", "p9")
	assert.NotContains(t, out, "p9")

	mustRun(t, dir, "cart", "clear")
	assert.Contains(t, mustRun(t, dir, "cart"), "cart is empty")
}

func TestFavoritesAndRecent(t *testing.T) {
	dir := t.TempDir()
	assert.Contains(t, mustRun(t, dir, "favorite", "p2"), "favorite: true")
	assert.Contains(t, mustRun(t, dir, "favorite", "p2"), "favorite: false")

	mustRun(t, dir, "view", "p3")
	mustRun(t, dir, "view", "p5")
	mustRun(t, dir, "view", "p3")
	var recent []string
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, dir, "get", "recent")), &recent))
	assert.Equal(t, []string{"p3", "p5"}, recent)
}

func TestAddressCommands(t *testing.T) {
	dir := t.TempDir()
	id := strings.TrimSpace(mustRun(t, dir, "address", "add", "--details", "Road 1", "--receiver", "Karim", "--default"))

	out := mustRun(t, dir, "address")
	assert.Contains(t, out, "* "+id)
	assert.Contains(t, out, "  a1")

	mustRun(t, dir, "address", "default", "a1")
	assert.Contains(t, mustRun(t, dir, "address"), "* a1")

	_, err := run(t, dir, "address", "delete", "nope")
	assert.Error(t, err)
}

func TestCategoryCommands(t *testing.T) {
	dir := t.TempDir()
	id := strings.TrimSpace(mustRun(t, dir, "category", "add", "Bakery", "--icon", "🍞"))
	assert.Contains(t, mustRun(t, dir, "category"), "Bakery")

	mustRun(t, dir, "category", "delete", id)
	assert.NotContains(t, mustRun(t, dir, "category"), "Bakery")
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")

	assert.Equal(t, path, strings.TrimSpace(mustRun(t, dir, "init")))
	assert.FileExists(t, path)

	_, err := run(t, dir, "init")
	assert.ErrorContains(t, err, "already exists")
	mustRun(t, dir, "init", "--force")
}
