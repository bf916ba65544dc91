package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storefront/internal/appstate"
	"storefront/internal/collections"
	"storefront/internal/kvstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoopTicks(t *testing.T) {
	var calls atomic.Int32
	l := New(Func(func(context.Context) ([]string, error) {
		calls.Add(1)
		return nil, nil
	}), Options{Interval: 5 * time.Millisecond, Jitter: 2 * time.Millisecond})

	require.NoError(t, l.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, time.Millisecond)
	l.Stop()
	l.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no ticks after Stop")
}

func TestStartTwiceFails(t *testing.T) {
	l := New(Func(func(context.Context) ([]string, error) { return nil, nil }), Options{Interval: time.Hour})
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()
	assert.ErrorIs(t, l.Start(context.Background()), ErrRunning)
}

func TestStopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(Func(func(context.Context) ([]string, error) { return nil, nil }), Options{Interval: time.Millisecond})
	require.NoError(t, l.Start(ctx))
	cancel()
	l.Stop()
}

func TestOverlappingTriggersCollapse(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	var changes atomic.Int32
	l := New(Func(func(context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"products_v1"}, nil
	}), Options{Interval: time.Hour, OnChange: func([]string) { changes.Add(1) }})

	var wg sync.WaitGroup
	results := make([][]string, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys, err := l.Trigger(context.Background())
			assert.NoError(t, err)
			results[i] = keys
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(4))
	assert.Equal(t, calls.Load(), changes.Load(), "one callback per pass, not per caller")
	for _, r := range results {
		assert.Equal(t, []string{"products_v1"}, r)
	}
}

func TestTriggerPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	l := New(Func(func(context.Context) ([]string, error) { return nil, boom }), Options{})
	_, err := l.Trigger(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLoopConvergesStateWithinInterval(t *testing.T) {
	backend := kvstore.NewMemoryBackend(0)
	st := appstate.New(collections.New(kvstore.New(backend)), appstate.Options{})

	got := make(chan []string, 1)
	l := New(st, Options{Interval: 10 * time.Millisecond, OnChange: func(keys []string) {
		select {
		case got <- keys:
		default:
		}
	}})
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	// a writer the notifier never hears about
	other := collections.New(kvstore.New(backend))
	settings := other.Settings()
	settings.GlobalDiscountEnabled = true
	require.NoError(t, other.SaveSettings(settings))

	select {
	case keys := <-got:
		assert.Contains(t, keys, collections.KeySettings)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not reconcile")
	}
	assert.True(t, st.Settings().GlobalDiscountEnabled)
}
