// Package notify fans storage writes out to every listening context.
//
// Writes made through a kvstore.Store in this process arrive via
// PublishChange; writes made by other processes sharing the backend arrive
// via Run, which bridges the backend's Watcher. Both travel the same bus
// topic, so a listener sees one uniform stream regardless of origin.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"storefront/internal/bus"
	"storefront/internal/kvstore"
	"storefront/internal/logging"
)

// Topic carries storage change envelopes.
const Topic = "storage.change"

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Listener receives the changed key and its new JSON value; value is nil when the key was removed.
type Listener func(key string, value json.RawMessage)

// Change is the envelope published on Topic.
type Change struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value,omitempty"`
	Removed bool            `json:"removed,omitempty"`
	Origin  string          `json:"origin"`
	At      time.Time       `json:"at"`
}

// Notifier publishes the writes of one context and dispatches everyone's writes to its listeners.
type Notifier struct {
	bus    bus.Bus
	origin string

	mu     sync.Mutex
	tokens map[bus.Token]struct{}
}

// New creates a notifier for one context. origin identifies the context in envelopes; empty picks a random id.
func New(b bus.Bus, origin string) *Notifier {
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Notifier{bus: b, origin: origin, tokens: make(map[bus.Token]struct{})}
}

// Origin returns the context id stamped on published changes.
func (n *Notifier) Origin() string { return n.origin }

// PublishChange announces a write made by this context. It satisfies kvstore.Publisher.
func (n *Notifier) PublishChange(key string, raw []byte) {
	n.publish(key, raw, n.origin)
}

func (n *Notifier) publish(key string, raw []byte, origin string) {
	c := Change{Key: key, Origin: origin, At: time.Now()}
	if raw == nil {
		c.Removed = true
	} else {
		c.Value = json.RawMessage(raw)
	}
	payload, err := codec.Marshal(c)
	if err != nil {
		// raw was not valid JSON; nobody could decode it anyway.
		logging.Get(logging.CategorySync).Debugw("change not published", "key", key, "error", err)
		return
	}
	if err := n.bus.Publish(Topic, payload); err != nil {
		logging.Get(logging.CategorySync).Debugw("change not published", "key", key, "error", err)
	}
}

// Subscribe registers l and returns a function that removes it. The
// returned function may be called any number of times.
func (n *Notifier) Subscribe(l Listener) func() {
	tok, err := n.bus.Subscribe(Topic, func(_ string, payload []byte) {
		var c Change
		if err := codec.Unmarshal(payload, &c); err != nil {
			return
		}
		if c.Removed {
			l(c.Key, nil)
			return
		}
		if len(c.Value) == 0 || !codec.Valid(c.Value) {
			return
		}
		l(c.Key, c.Value)
	})
	if err != nil {
		logging.Get(logging.CategorySync).Warnw("subscribe failed", "error", err)
		return func() {}
	}

	n.mu.Lock()
	n.tokens[tok] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.tokens, tok)
			n.mu.Unlock()
			_ = n.bus.Unsubscribe(tok)
		})
	}
}

// Close removes every listener registered through this notifier.
func (n *Notifier) Close() {
	n.mu.Lock()
	tokens := n.tokens
	n.tokens = make(map[bus.Token]struct{})
	n.mu.Unlock()
	for tok := range tokens {
		_ = n.bus.Unsubscribe(tok)
	}
}

// Run forwards writes made by other processes until ctx is done. It
// returns immediately when the backend cannot observe foreign writes.
func (n *Notifier) Run(ctx context.Context, backend kvstore.Backend) error {
	w, ok := backend.(kvstore.Watcher)
	if !ok {
		logging.Get(logging.CategorySync).Debugw("backend has no watcher, cross-process bridge disabled")
		return nil
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	logging.Get(logging.CategorySync).Infow("cross-process bridge running", "origin", n.origin)
	for c := range changes {
		if c.Value != nil && !codec.Valid(c.Value) {
			logging.Get(logging.CategorySync).Debugw("skipping undecodable foreign write", "key", c.Key)
			continue
		}
		n.publish(c.Key, c.Value, "")
	}
	return nil
}
