// Package capacity reports how much room the store has and asks the
// backend to keep its data durable.
package capacity

import (
	"context"
	"sync"

	"github.com/shirou/gopsutil/v4/disk"

	"storefront/internal/kvstore"
	"storefront/internal/logging"
)

// Estimate is an advisory usage figure for display.
type Estimate struct {
	UsedBytes  int64  `json:"usedBytes"`
	QuotaBytes int64  `json:"quotaBytes"`
	Source     string `json:"source"` // "quota" or "filesystem"
}

// Percent returns used/quota in the range 0..100.
func (e Estimate) Percent() float64 {
	if e.QuotaBytes <= 0 {
		return 0
	}
	p := float64(e.UsedBytes) / float64(e.QuotaBytes) * 100
	return min(max(p, 0), 100)
}

// Advisor wraps the optional Persister and Sizer capabilities of a backend.
type Advisor struct {
	backend kvstore.Backend
	quota   int64

	mu      sync.Mutex
	granted bool
}

// New returns an advisor for b. A positive quota overrides the filesystem size.
func New(b kvstore.Backend, quota int64) *Advisor {
	return &Advisor{backend: b, quota: quota}
}

// RequestDurability asks the backend to stop treating its data as
// evictable. It can be called on every start; false means the backend
// cannot promise durability or the request failed.
func (a *Advisor) RequestDurability(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.granted {
		return true
	}
	p, ok := a.backend.(kvstore.Persister)
	if !ok {
		return false
	}
	if p.Persisted() {
		a.granted = true
		return true
	}
	granted, err := p.Persist(ctx)
	if err != nil {
		logging.Get(logging.CategoryCapacity).Warnw("durability request failed", "error", err)
		return false
	}
	a.granted = granted
	logging.Get(logging.CategoryCapacity).Infow("durability requested", "granted", granted)
	return granted
}

// UsageEstimate reports bytes used against the available quota. It returns
// false when the backend cannot measure itself or no quota is known.
func (a *Advisor) UsageEstimate(ctx context.Context) (*Estimate, bool) {
	s, ok := a.backend.(kvstore.Sizer)
	if !ok {
		return nil, false
	}
	used, err := s.Size()
	if err != nil {
		logging.Get(logging.CategoryCapacity).Debugw("size unavailable", "error", err)
		return nil, false
	}
	if a.quota > 0 {
		return &Estimate{UsedBytes: used, QuotaBytes: a.quota, Source: "quota"}, true
	}

	loc := s.Location()
	if loc == "" {
		return nil, false
	}
	usage, err := disk.UsageWithContext(ctx, loc)
	if err != nil {
		logging.Get(logging.CategoryCapacity).Debugw("filesystem usage unavailable", "path", loc, "error", err)
		return nil, false
	}
	// the store may grow into whatever the filesystem has left
	return &Estimate{UsedBytes: used, QuotaBytes: used + int64(usage.Free), Source: "filesystem"}, true
}
