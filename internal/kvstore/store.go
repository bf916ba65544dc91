// Package kvstore is the durable key-value store every other package reads
// and writes through. Values are JSON documents under well-known string keys.
//
// Reads never fail: an absent, unreadable or corrupt entry yields the
// caller's default. Writes that run out of space are reported through a
// Warner and the log, and otherwise treated as a no-op so in-memory state
// keeps working.
package kvstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"storefront/internal/config"
	"storefront/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Warner is told when a write was refused for lack of space.
type Warner interface {
	QuotaExceeded(key string, err error)
}

// WarnerFunc adapts a function to Warner.
type WarnerFunc func(key string, err error)

func (f WarnerFunc) QuotaExceeded(key string, err error) { f(key, err) }

// Publisher is told about every successful write. A nil raw value means the key was removed.
type Publisher interface {
	PublishChange(key string, raw []byte)
}

// Store wraps a Backend with JSON encoding and the failure policy.
type Store struct {
	backend Backend

	warner    atomic.Pointer[Warner]
	publisher atomic.Pointer[Publisher]

	mu   sync.Mutex
	lost map[string]bool // keys whose latest write was refused for lack of space
}

// New wraps an already opened backend.
func New(b Backend) *Store {
	return &Store{backend: b, lost: make(map[string]bool)}
}

// Open builds the backend named in cfg and wraps it.
func Open(cfg config.StorageConfig, watchDebounce time.Duration) (*Store, error) {
	b, err := OpenBackend(cfg, watchDebounce)
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

// OpenBackend builds the backend named in cfg. Several stores may wrap one backend.
func OpenBackend(cfg config.StorageConfig, watchDebounce time.Duration) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case "memory":
		b = NewMemoryBackend(cfg.QuotaBytes)
	case "", "dir":
		b, err = NewDirBackend(cfg.Path, cfg.QuotaBytes, watchDebounce)
	case "bolt":
		b, err = NewBoltBackend(cfg.Path, cfg.QuotaBytes)
	case "sqlite":
		interval, perr := time.ParseDuration(cfg.PollInterval)
		if perr != nil {
			interval = 0
		}
		b, err = NewSQLBackend(cfg.SQLDriver, cfg.Path, cfg.QuotaBytes, interval)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logging.Get(logging.CategoryStore).Infow("store opened", "backend", cfg.Backend, "path", cfg.Path)
	return b, nil
}

// Backend exposes the underlying medium for the optional Watcher, Persister and Sizer interfaces.
func (s *Store) Backend() Backend { return s.backend }

// SetWarner installs the quota warning sink. nil removes it.
func (s *Store) SetWarner(w Warner) {
	if w == nil {
		s.warner.Store(nil)
		return
	}
	s.warner.Store(&w)
}

// SetPublisher installs the change publisher. nil removes it.
func (s *Store) SetPublisher(p Publisher) {
	if p == nil {
		s.publisher.Store(nil)
		return
	}
	s.publisher.Store(&p)
}

// QuotaFailures lists the keys whose in-memory value is ahead of storage
// because their latest write was refused for lack of space.
func (s *Store) QuotaFailures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.lost))
	for k := range s.lost {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) markLost(key string, lost bool) {
	s.mu.Lock()
	if lost {
		s.lost[key] = true
	} else {
		delete(s.lost, key)
	}
	s.mu.Unlock()
}

// Load decodes the value stored under key, or returns def when the key is
// absent, unreadable, corrupt, or holds JSON null.
func Load[T any](s *Store, key string, def T) T {
	raw, ok := s.LoadRaw(key)
	if !ok {
		return def
	}
	if string(raw) == "null" {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logging.Get(logging.CategoryStore).Warnw("corrupt value, using default", "key", key, "error", err)
		return def
	}
	return v
}

// LoadRaw returns the stored JSON text for key.
func (s *Store) LoadRaw(key string) ([]byte, bool) {
	raw, ok, err := s.backend.Get(key)
	if err != nil {
		logging.Get(logging.CategoryStore).Warnw("read failed, using default", "key", key, "error", err)
		return nil, false
	}
	return raw, ok
}

// Save encodes v and stores it under key. A quota refusal is reported to the
// Warner and swallowed; any other failure is returned.
func (s *Store) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.put(key, raw)
}

// SaveRaw stores already encoded JSON text under key.
func (s *Store) SaveRaw(key string, raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("%w: %s", ErrInvalidJSON, key)
	}
	return s.put(key, raw)
}

func (s *Store) put(key string, raw []byte) error {
	if key == "" {
		return errors.New("kvstore: empty key")
	}
	if err := s.backend.Set(key, raw); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			s.markLost(key, true)
			logging.Get(logging.CategoryStore).Warnw("storage quota exceeded, value kept in memory only",
				"key", key, "bytes", len(raw))
			if w := s.warner.Load(); w != nil {
				(*w).QuotaExceeded(key, err)
			}
			return nil
		}
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.markLost(key, false)
	if p := s.publisher.Load(); p != nil {
		(*p).PublishChange(key, raw)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if err := s.backend.Delete(key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	s.markLost(key, false)
	if p := s.publisher.Load(); p != nil {
		(*p).PublishChange(key, nil)
	}
	return nil
}

// Keys lists every stored key.
func (s *Store) Keys() ([]string, error) {
	return s.backend.Keys()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
