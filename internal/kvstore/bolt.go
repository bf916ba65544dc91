package kvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	boltValues = []byte("kv")
	boltMeta   = []byte("meta")
	boltFlag   = []byte("persisted")
)

// BoltBackend keeps all keys in one bbolt file. bbolt locks the file, so
// it serves a single process; contexts inside that process share it.
type BoltBackend struct {
	db    *bolt.DB
	path  string
	quota int64

	mu        sync.Mutex
	used      int64
	persisted bool
}

// NewBoltBackend opens or creates the database at path.
// Until Persist is granted, commits skip fsync.
func NewBoltBackend(path string, quota int64) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	b := &BoltBackend{db: db, path: path, quota: quota}
	err = db.Update(func(tx *bolt.Tx) error {
		values, err := tx.CreateBucketIfNotExists(boltValues)
		if err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(boltMeta)
		if err != nil {
			return err
		}
		b.persisted = meta.Get(boltFlag) != nil
		return values.ForEach(func(k, v []byte) error {
			b.used += int64(len(k) + len(v))
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt store: %w", err)
	}
	db.NoSync = !b.persisted
	return b, nil
}

func (b *BoltBackend) Get(key string) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltValues).Get([]byte(key))
		if v != nil {
			found = true
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err == bolt.ErrDatabaseNotOpen {
		return nil, false, ErrClosed
	}
	return out, found, err
}

func (b *BoltBackend) Set(key string, raw []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var delta int64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltValues)
		var old int64
		if v := bucket.Get([]byte(key)); v != nil {
			old = int64(len(key) + len(v))
		}
		incoming := int64(len(key) + len(raw))
		if exceeds(b.quota, b.used, old, incoming) {
			return ErrQuotaExceeded
		}
		delta = incoming - old
		// bbolt distinguishes nil from empty; store empty values as empty.
		return bucket.Put([]byte(key), append([]byte{}, raw...))
	})
	if err == bolt.ErrDatabaseNotOpen {
		return ErrClosed
	}
	if err != nil {
		return mapWriteErr(err)
	}
	b.used += delta
	return nil
}

func (b *BoltBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var freed int64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltValues)
		if v := bucket.Get([]byte(key)); v != nil {
			freed = int64(len(key) + len(v))
		}
		return bucket.Delete([]byte(key))
	})
	if err == bolt.ErrDatabaseNotOpen {
		return ErrClosed
	}
	if err != nil {
		return err
	}
	b.used -= freed
	return nil
}

func (b *BoltBackend) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltValues).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err == bolt.ErrDatabaseNotOpen {
		return nil, ErrClosed
	}
	return keys, err
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// Size reports key plus value bytes, not the file size, which bbolt grows in pages.
func (b *BoltBackend) Size() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used, nil
}

func (b *BoltBackend) Location() string { return filepath.Dir(b.path) }

// Persist records the grant and switches commits to fsync.
func (b *BoltBackend) Persist(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.persisted {
		return true, nil
	}
	b.db.NoSync = false
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltMeta).Put(boltFlag, []byte(time.Now().UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return false, mapWriteErr(err)
	}
	if err := b.db.Sync(); err != nil {
		return false, err
	}
	b.persisted = true
	return true, nil
}

func (b *BoltBackend) Persisted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persisted
}
