package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storefront/internal/bus"
	"storefront/internal/kvstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type event struct {
	key   string
	value string
}

type sink struct {
	mu     sync.Mutex
	events []event
}

func (s *sink) listen(key string, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := "<removed>"
	if value != nil {
		v = string(value)
	}
	s.events = append(s.events, event{key, v})
}

func (s *sink) all() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.events...)
}

func waitFor(t *testing.T, s *sink, n int) []event {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.all()) >= n }, 2*time.Second, 5*time.Millisecond)
	return s.all()
}

func TestSaveReachesEverySubscriberOnce(t *testing.T) {
	b := bus.NewLocal()
	defer b.Close()
	n := New(b, "tab-1")
	store := kvstore.New(kvstore.NewMemoryBackend(0))
	store.SetPublisher(n)

	sinks := make([]*sink, 3)
	for i := range sinks {
		sinks[i] = &sink{}
		defer n.Subscribe(sinks[i].listen)()
	}

	require.NoError(t, store.Save("systemSettings_v3", map[string]bool{"globalDiscountEnabled": true}))

	for _, s := range sinks {
		got := waitFor(t, s, 1)
		assert.Equal(t, []event{{"systemSettings_v3", `{"globalDiscountEnabled":true}`}}, got)
	}
	time.Sleep(30 * time.Millisecond)
	for _, s := range sinks {
		assert.Len(t, s.all(), 1, "exactly once")
	}
}

func TestWriteInOneContextReachesAnother(t *testing.T) {
	b := bus.NewLocal()
	defer b.Close()
	backend := kvstore.NewMemoryBackend(0)

	a := New(b, "tab-a")
	storeA := kvstore.New(backend)
	storeA.SetPublisher(a)

	other := New(b, "tab-b")
	var seen sink
	defer other.Subscribe(seen.listen)()

	require.NoError(t, storeA.Save("products_v1", []string{"p1"}))
	require.NoError(t, storeA.Remove("cart"))

	got := waitFor(t, &seen, 2)
	assert.Equal(t, []event{{"products_v1", `["p1"]`}, {"cart", "<removed>"}}, got)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := bus.NewLocal()
	defer b.Close()
	n := New(b, "")
	assert.NotEmpty(t, n.Origin())

	var kept, gone sink
	defer n.Subscribe(kept.listen)()
	unsub := n.Subscribe(gone.listen)
	unsub()
	unsub()

	n.PublishChange("lang", []byte(`"en"`))
	waitFor(t, &kept, 1)
	assert.Empty(t, gone.all())
}

func TestUndecodableValuesAreSkipped(t *testing.T) {
	b := bus.NewLocal()
	defer b.Close()
	n := New(b, "tab")

	var s sink
	defer n.Subscribe(s.listen)()

	require.NoError(t, b.Publish(Topic, []byte(`not an envelope`)))
	require.NoError(t, b.Publish(Topic, []byte(`{"key":"cart","origin":"x"}`)))
	n.PublishChange("lang", []byte(`"bn"`))

	got := waitFor(t, &s, 1)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []event{{"lang", `"bn"`}}, got)
	assert.Len(t, s.all(), 1)
}

func TestCloseDropsAllListeners(t *testing.T) {
	b := bus.NewLocal()
	defer b.Close()
	n := New(b, "tab")

	var s sink
	unsub := n.Subscribe(s.listen)
	n.Close()
	unsub()

	n.PublishChange("lang", []byte(`"bn"`))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, s.all())
}

func TestRunBridgesOtherProcessWrites(t *testing.T) {
	dir := t.TempDir()

	// Two processes sharing one directory, each with its own bus.
	localBackend, err := kvstore.NewDirBackend(dir, 0, 10*time.Millisecond)
	require.NoError(t, err)
	defer localBackend.Close()
	remoteBackend, err := kvstore.NewDirBackend(dir, 0, 10*time.Millisecond)
	require.NoError(t, err)
	defer remoteBackend.Close()

	localBus := bus.NewLocal()
	defer localBus.Close()
	local := New(localBus, "local")
	localStore := kvstore.New(localBackend)
	localStore.SetPublisher(local)

	var s sink
	defer local.Subscribe(s.listen)()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- local.Run(ctx, localBackend) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, localStore.Save("theme", "dark"))
	remoteStore := kvstore.New(remoteBackend)
	require.NoError(t, remoteStore.Save("systemSettings_v3", map[string]bool{"isStoreOpen": false}))

	got := waitFor(t, &s, 2)
	time.Sleep(50 * time.Millisecond)
	assert.ElementsMatch(t, []event{
		{"theme", `"dark"`},
		{"systemSettings_v3", `{"isStoreOpen":false}`},
	}, got)
	assert.Len(t, s.all(), 2, "own write is not echoed back by the watcher")
}

func TestRunWithoutWatcherReturns(t *testing.T) {
	b := bus.NewLocal()
	defer b.Close()
	n := New(b, "tab")
	assert.NoError(t, n.Run(context.Background(), kvstore.NewMemoryBackend(0)))
}
