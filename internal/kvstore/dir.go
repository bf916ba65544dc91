package kvstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"storefront/internal/logging"
)

const (
	dirValueExt     = ".json"
	persistedMarker = ".persisted"
)

// DirBackend stores one file per key in a directory. Several processes may
// open the same directory; Watch reports what the others write.
type DirBackend struct {
	dir      string
	quota    int64
	debounce time.Duration

	mu     sync.Mutex
	known  map[string]string // key -> content digest last written or observed, "" for absent
	closed bool
}

// NewDirBackend opens (creating if needed) a directory backend.
func NewDirBackend(dir string, quota int64, debounce time.Duration) (*DirBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if debounce <= 0 {
		debounce = 50 * time.Millisecond
	}
	return &DirBackend{
		dir:      dir,
		quota:    quota,
		debounce: debounce,
		known:    make(map[string]string),
	}, nil
}

// fileName escapes key into a flat, non-hidden file name.
func fileName(key string) string {
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name + dirValueExt
}

func keyFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, dirValueExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, dirValueExt))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return string(sum[:])
}

func (d *DirBackend) path(key string) string {
	return filepath.Join(d.dir, fileName(key))
}

func (d *DirBackend) Get(key string) ([]byte, bool, error) {
	if d.isClosed() {
		return nil, false, ErrClosed
	}
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set writes a temp file and renames it over the old one, so readers in
// other processes never observe a torn value.
func (d *DirBackend) Set(key string, raw []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	target := d.path(key)
	if d.quota > 0 {
		used, err := d.usage()
		if err != nil {
			return err
		}
		var old int64
		if fi, err := os.Stat(target); err == nil {
			old = fi.Size()
		}
		if exceeds(d.quota, used, old, int64(len(raw))) {
			return ErrQuotaExceeded
		}
	}

	tmp, err := os.CreateTemp(d.dir, "."+fileName(key)+".*")
	if err != nil {
		return mapWriteErr(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return mapWriteErr(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return mapWriteErr(err)
	}

	prev, hadPrev := d.known[key]
	d.known[key] = digest(raw)
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		if hadPrev {
			d.known[key] = prev
		} else {
			delete(d.known, key)
		}
		return mapWriteErr(err)
	}
	return nil
}

func (d *DirBackend) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.known[key] = ""
	err := os.Remove(d.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *DirBackend) Keys() ([]string, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFromFile(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (d *DirBackend) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *DirBackend) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Size sums the value files.
func (d *DirBackend) Size() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usage()
}

func (d *DirBackend) usage() (int64, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if _, ok := keyFromFile(e.Name()); !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		total += info.Size()
	}
	return total, nil
}

func (d *DirBackend) Location() string { return d.dir }

// Persist flushes the directory entry to disk and records that durability was granted.
func (d *DirBackend) Persist(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, ErrClosed
	}
	if err := os.WriteFile(filepath.Join(d.dir, persistedMarker), []byte(time.Now().UTC().Format(time.RFC3339)), 0644); err != nil {
		return false, mapWriteErr(err)
	}
	dh, err := os.Open(d.dir)
	if err != nil {
		return false, err
	}
	defer dh.Close()
	if err := dh.Sync(); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DirBackend) Persisted() bool {
	_, err := os.Stat(filepath.Join(d.dir, persistedMarker))
	return err == nil
}

// Watch reports value files changed by other processes. Bursts of events on
// one file are collapsed until the file has been quiet for the debounce period.
func (d *DirBackend) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(d.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", d.dir, err)
	}
	logging.Get(logging.CategoryStore).Debugw("watching store directory", "dir", d.dir)

	out := make(chan Change, 64)
	go d.runWatch(ctx, w, out)
	return out, nil
}

func (d *DirBackend) runWatch(ctx context.Context, w *fsnotify.Watcher, out chan<- Change) {
	defer close(out)
	defer w.Close()

	pending := make(map[string]time.Time)
	tick := d.debounce / 2
	if tick < 5*time.Millisecond {
		tick = 5 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if key, ok := keyFromFile(filepath.Base(event.Name)); ok {
				pending[key] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryStore).Warnw("store watcher error", "error", err)

		case now := <-ticker.C:
			for key, at := range pending {
				if now.Sub(at) < d.debounce {
					continue
				}
				delete(pending, key)
				change, foreign := d.observe(key)
				if !foreign {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// observe reads the settled state of key and reports whether it differs from
// what this process last wrote or saw.
func (d *DirBackend) observe(key string) (Change, bool) {
	data, err := os.ReadFile(d.path(key))
	var sum string
	switch {
	case err == nil:
		sum = digest(data)
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	default:
		logging.Get(logging.CategoryStore).Warnw("store watcher read failed", "key", key, "error", err)
		return Change{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.known[key]; ok && prev == sum {
		return Change{}, false
	}
	d.known[key] = sum
	return Change{Key: key, Value: data}, true
}
