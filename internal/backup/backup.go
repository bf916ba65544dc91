// Package backup exports the durable collections into a single JSON file
// and restores them from one.
//
// The file layout is the one existing backups use:
//
//	{"timestamp": ..., "deviceInfo": ..., "version": "1.0",
//	 "data": {"products": "<json>", "categories": "<json>", ...}}
//
// Each data entry holds the stored document as a string. Import also takes
// entries written as nested JSON.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	jsoniter "github.com/json-iterator/go"

	"storefront/internal/collections"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/kvstore"
	"storefront/internal/logging"
)

// FormatVersion is written into every envelope.
const FormatVersion = "1.0"

// ErrInvalidBackup is returned for a file that is not a usable backup.
var ErrInvalidBackup = errors.New("invalid backup file")

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the outer object of a backup file.
type Envelope struct {
	Timestamp  string `json:"timestamp"`
	DeviceInfo string `json:"deviceInfo"`
	Version    string `json:"version"`
	Data       Data   `json:"data"`
}

// Data carries one stored document per collection; nil means nothing was stored.
type Data struct {
	Products   *string `json:"products"`
	Categories *string `json:"categories"`
	Orders     *string `json:"orders"`
	Users      *string `json:"users"`
	Addresses  *string `json:"addresses"`
	Settings   *string `json:"settings"`
}

func (d *Data) slot(field string) **string {
	switch field {
	case "products":
		return &d.Products
	case "categories":
		return &d.Categories
	case "orders":
		return &d.Orders
	case "users":
		return &d.Users
	case "addresses":
		return &d.Addresses
	case "settings":
		return &d.Settings
	}
	return nil
}

// shapes checks that a document decodes into the collection's type.
var shapes = map[string]func([]byte) error{
	"products":   conforms[[]domain.Product],
	"categories": conforms[[]domain.Category],
	"orders":     conforms[[]domain.Order],
	"users":      conforms[[]domain.User],
	"addresses":  conforms[[]domain.Address],
	"settings":   conforms[domain.SystemSettings],
}

func conforms[T any](raw []byte) error {
	var v T
	return codec.Unmarshal(raw, &v)
}

// FileName is the date-stamped name of a backup taken at t.
func FileName(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = "Storefront"
	}
	return fmt.Sprintf("%s_Backup_%s.json", prefix, t.UTC().Format("2006-01-02"))
}

// Service reads and writes backups of one store.
type Service struct {
	store *kvstore.Store
	cfg   config.BackupConfig
	now   func() time.Time
}

func New(store *kvstore.Store, cfg config.BackupConfig) *Service {
	if cfg.DeviceInfo == "" {
		host, _ := os.Hostname()
		cfg.DeviceInfo = fmt.Sprintf("storefront (%s/%s; %s)", runtime.GOOS, runtime.GOARCH, host)
	}
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// Snapshot gathers the raw stored documents into an envelope.
func (s *Service) Snapshot() *Envelope {
	env := &Envelope{
		Timestamp:  s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		DeviceInfo: s.cfg.DeviceInfo,
		Version:    FormatVersion,
	}
	for _, e := range collections.BackupKeys() {
		if raw, ok := s.store.LoadRaw(e.Key); ok {
			v := string(raw)
			*env.Data.slot(e.Field) = &v
		}
	}
	return env
}

// Export writes a snapshot to w.
func (s *Service) Export(w io.Writer) error {
	out, err := codec.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// ExportFile writes a snapshot into dir under FileName and returns its path.
// A backup taken earlier the same day is replaced.
func (s *Service) ExportFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, FileName(s.cfg.FilePrefix, s.now()))

	tmp, err := os.CreateTemp(dir, ".backup-*")
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Export(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync backup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("install backup file: %w", err)
	}
	logging.Get(logging.CategoryBackup).Infow("backup written", "path", path)
	return path, nil
}

// Result lists the collections an import wrote and those the file did not carry.
type Result struct {
	Timestamp  string
	DeviceInfo string
	Restored   []string
	Skipped    []string
}

// Import restores the collections present in r. Every entry is checked
// before anything is written, so a malformed file changes nothing.
// Collections missing from the file keep their stored value, and a file
// with no collections at all, such as the export of a fresh store, restores
// nothing. Writes are not atomic across collections.
func (s *Service) Import(ctx context.Context, r io.Reader) (*Result, error) {
	limit := s.cfg.MaxImportBytes
	if limit <= 0 {
		limit = 32 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidBackup, limit)
	}

	var env struct {
		Timestamp  string                     `json:"timestamp"`
		DeviceInfo string                     `json:"deviceInfo"`
		Version    string                     `json:"version"`
		Data       map[string]json.RawMessage `json:"data"`
	}
	if err := codec.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: no data section", ErrInvalidBackup)
	}

	type pending struct {
		key string
		raw []byte
	}
	var (
		writes []pending
		res    = &Result{Timestamp: env.Timestamp, DeviceInfo: env.DeviceInfo}
	)
	for _, e := range collections.BackupKeys() {
		doc, err := entry(env.Data[e.Field])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBackup, e.Field, err)
		}
		if doc == nil {
			res.Skipped = append(res.Skipped, e.Field)
			continue
		}
		if err := shapes[e.Field](doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBackup, e.Field, err)
		}
		writes = append(writes, pending{e.Key, doc})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logging.Get(logging.CategoryBackup)
	for _, w := range writes {
		if err := s.store.SaveRaw(w.key, w.raw); err != nil {
			return res, fmt.Errorf("restore %s: %w", w.key, err)
		}
		res.Restored = append(res.Restored, w.key)
	}
	log.Infow("backup restored", "restored", res.Restored, "skipped", res.Skipped,
		"from", env.DeviceInfo, "taken", env.Timestamp, "version", env.Version)
	return res, nil
}

// entry unwraps one data value. It returns nil for an absent, null or
// empty entry, the string content for a string entry, and the value itself
// for nested JSON.
func entry(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := codec.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		doc := []byte(s)
		if len(bytes.TrimSpace(doc)) == 0 || bytes.Equal(bytes.TrimSpace(doc), []byte("null")) {
			return nil, nil
		}
		if !codec.Valid(doc) {
			return nil, errors.New("entry is not JSON")
		}
		return doc, nil
	case '{', '[':
		return []byte(raw), nil
	}
	return nil, fmt.Errorf("unexpected %s value", kind(raw[0]))
}

func kind(b byte) string {
	switch {
	case b == 't' || b == 'f':
		return "boolean"
	case b == '-' || (b >= '0' && b <= '9'):
		return "number"
	}
	return "non-JSON"
}
