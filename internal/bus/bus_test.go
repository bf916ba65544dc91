package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) handle(_ string, payload []byte) {
	r.mu.Lock()
	r.got = append(r.got, string(payload))
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := NewLocal()
	defer b.Close()

	var rec recorder
	_, err := b.Subscribe("storage.change", rec.handle)
	require.NoError(t, err)

	for _, msg := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.Publish("storage.change", []byte(msg)))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c", "d"}, rec.snapshot())
}

func TestPublishOnlyReachesTopic(t *testing.T) {
	b := NewLocal()
	defer b.Close()

	var changes, other recorder
	_, err := b.Subscribe("storage.change", changes.handle)
	require.NoError(t, err)
	_, err = b.Subscribe("other", other.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish("storage.change", []byte("x")))
	require.Eventually(t, func() bool { return len(changes.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, other.snapshot())
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewLocal()
	defer b.Close()
	assert.NoError(t, b.Publish("nobody", []byte("x")))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewLocal()
	defer b.Close()

	var kept, dropped recorder
	_, err := b.Subscribe("t", kept.handle)
	require.NoError(t, err)
	tok, err := b.Subscribe("t", dropped.handle)
	require.NoError(t, err)

	require.NoError(t, b.Unsubscribe(tok))
	require.NoError(t, b.Unsubscribe(tok), "second unsubscribe is a no-op")

	require.NoError(t, b.Publish("t", []byte("after")))
	require.Eventually(t, func() bool { return len(kept.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, dropped.snapshot())
}

func TestHandlerMayPublishAndUnsubscribe(t *testing.T) {
	b := NewLocal()
	defer b.Close()

	var echoed recorder
	_, err := b.Subscribe("echo", echoed.handle)
	require.NoError(t, err)

	var tok Token
	var once sync.Once
	tok, err = b.Subscribe("ping", func(_ string, payload []byte) {
		once.Do(func() {
			assert.NoError(t, b.Publish("echo", payload))
			assert.NoError(t, b.Unsubscribe(tok))
		})
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish("ping", []byte("hello")))
	require.Eventually(t, func() bool { return len(echoed.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"hello"}, echoed.snapshot())
}

func TestHandlerPanicIsContained(t *testing.T) {
	b := NewLocal()
	defer b.Close()

	var rec recorder
	_, err := b.Subscribe("t", func(topic string, payload []byte) {
		if string(payload) == "boom" {
			panic("handler failure")
		}
		rec.handle(topic, payload)
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish("t", []byte("boom")))
	require.NoError(t, b.Publish("t", []byte("ok")))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestPayloadIsCopied(t *testing.T) {
	b := NewLocal()
	defer b.Close()

	var rec recorder
	_, err := b.Subscribe("t", rec.handle)
	require.NoError(t, err)

	buf := []byte("original")
	require.NoError(t, b.Publish("t", buf))
	copy(buf, "mutated!")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "original", rec.snapshot()[0])
}

func TestClosedBusRejectsCalls(t *testing.T) {
	b := NewLocal()
	_, err := b.Subscribe("t", func(string, []byte) {})
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish("t", nil), ErrClosed)
	_, err = b.Subscribe("t", func(string, []byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	b := NewLocal()
	defer b.Close()
	_, err := b.Subscribe("t", nil)
	assert.Error(t, err)
}
