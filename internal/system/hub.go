// Package system wires the storage, sync and service layers into running
// contexts. A context is one independent view of the store, the way a
// browser tab is; every context in a process shares one Hub.
package system

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"storefront/internal/bus"
	"storefront/internal/config"
	"storefront/internal/kvstore"
	"storefront/internal/logging"
	"storefront/internal/notify"
)

// Hub holds what the contexts of one process share: the storage backend,
// the bus, and the single bridge that turns writes by other processes into
// bus notifications.
type Hub struct {
	backend kvstore.Backend
	bus     bus.Bus
	bridge  *notify.Notifier

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	closed  bool
	closeFn sync.Once
	err     error
}

// NewHub shares an already opened backend. The hub owns it from now on.
func NewHub(b kvstore.Backend) *Hub {
	eb := bus.NewLocal()
	return &Hub{backend: b, bus: eb, bridge: notify.New(eb, "bridge")}
}

// OpenHub opens the configured backend.
func OpenHub(cfg *config.Config) (*Hub, error) {
	b, err := kvstore.OpenBackend(cfg.Storage, cfg.GetWatchDebounce())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return NewHub(b), nil
}

func (h *Hub) Backend() kvstore.Backend { return h.backend }
func (h *Hub) Bus() bus.Bus              { return h.bus }

// StartBridge starts forwarding foreign writes. Later calls do nothing.
func (h *Hub) StartBridge(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return kvstore.ErrClosed
	}
	if h.group != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := h.bridge.Run(gctx, h.backend); err != nil && !errors.Is(err, context.Canceled) {
			logging.Get(logging.CategorySync).Errorw("cross-process bridge stopped", "error", err)
			return err
		}
		return nil
	})
	h.cancel, h.group = cancel, g
	return nil
}

// Close stops the bridge, then closes the bus and the backend.
func (h *Hub) Close() error {
	h.closeFn.Do(func() {
		h.mu.Lock()
		h.closed = true
		cancel, g := h.cancel, h.group
		h.mu.Unlock()

		var errs []error
		if cancel != nil {
			cancel()
			if err := g.Wait(); err != nil {
				errs = append(errs, err)
			}
		}
		h.bridge.Close()
		if err := h.bus.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := h.backend.Close(); err != nil {
			errs = append(errs, err)
		}
		h.err = errors.Join(errs...)
	})
	return h.err
}
