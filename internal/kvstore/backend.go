package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded means the backend refused a write for lack of space.
	// The previously stored value is left untouched.
	ErrQuotaExceeded = errors.New("kvstore: storage quota exceeded")

	// ErrClosed is returned by a backend after Close.
	ErrClosed = errors.New("kvstore: backend closed")

	// ErrInvalidJSON is returned by SaveRaw for a payload that is not JSON text.
	ErrInvalidJSON = errors.New("kvstore: value is not valid JSON")
)

// Backend is the raw key-value medium behind a Store.
// Values are JSON text; keys are arbitrary non-empty strings.
type Backend interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	// Set replaces the value under key atomically. On failure the old value survives.
	Set(key string, raw []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Keys lists the stored keys in no particular order.
	Keys() ([]string, error)
	Close() error
}

// Change describes a write made to a shared backend. A nil Value means the key was removed.
type Change struct {
	Key   string
	Value []byte
}

// Watcher is implemented by backends shared between processes. The channel
// carries writes made by other processes only and is closed when ctx ends.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// Persister is implemented by backends that can be asked to stop treating
// their data as evictable cache.
type Persister interface {
	Persist(ctx context.Context) (bool, error)
	Persisted() bool
}

// Sizer is implemented by backends that can report how many bytes they hold.
type Sizer interface {
	Size() (int64, error)
	// Location is the filesystem path the data lives on, or "" for memory.
	Location() string
}

// mapWriteErr folds out-of-space conditions into ErrQuotaExceeded.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if isNoSpace(err) {
		return ErrQuotaExceeded
	}
	return err
}

func exceeds(quota, used, old, incoming int64) bool {
	return quota > 0 && used-old+incoming > quota
}
