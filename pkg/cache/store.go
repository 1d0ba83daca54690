// Package cache is the on-disk key/value store livedash uses in place of
// browser local storage: the persisted API token and the last snapshot of
// every view live here so that `livedash status` and a fresh TUI can show
// data before the first tick completes.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// recordExt is the suffix of every entry file.
const recordExt = ".entry"

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	// Dir is the directory where entries are stored. Created if missing.
	Dir string

	// DefaultTTL applies to Put. Zero means entries never expire.
	DefaultTTL time.Duration

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

// record is the JSON document written for each key.
type record struct {
	Key     string `json:"key"`
	Created int64  `json:"created"` // UnixNano
	TTLNS   int64  `json:"ttl_ns"`  // 0 = no TTL
	Value   []byte `json:"value"`
}

func (r record) expired(now time.Time) bool {
	if r.TTLNS <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, r.Created)) > time.Duration(r.TTLNS)
}

// Store is a directory of JSON entry files, one per key. Writes are atomic
// via temp-file-then-rename, so readers in other processes never see a
// partial entry.
type Store struct {
	cfg StoreConfig
	mu  sync.RWMutex
}

// NewStore opens (and creates) the store directory. Expired and corrupt
// entries found on disk are removed.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: empty directory")
	}
	if cfg.DefaultTTL < 0 {
		cfg.DefaultTTL = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create directory %s: %w", cfg.Dir, err)
	}

	s := &Store{cfg: cfg}
	if _, err := s.Prune(); err != nil {
		return nil, fmt.Errorf("cache: scan directory: %w", err)
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.cfg.Dir }

// Get returns the bytes stored under key, or false if the key is missing or
// expired.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.read(s.path(hashKey(key)))
	if err != nil || rec.expired(s.cfg.Now()) {
		return nil, false
	}
	return rec.Value, true
}

// Put stores value under key with the default TTL.
func (s *Store) Put(key string, value []byte) error {
	return s.PutWithTTL(key, value, s.cfg.DefaultTTL)
}

// PutWithTTL stores value under key. A TTL of 0 never expires.
func (s *Store) PutWithTTL(key string, value []byte, ttl time.Duration) error {
	rec := record{
		Key:     key,
		Created: s.cfg.Now().UnixNano(),
		TTLNS:   int64(ttl),
		Value:   value,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: marshal %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWrite(s.path(hashKey(key)), data, s.cfg.Dir); err != nil {
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(hashKey(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}

// Keys returns the sorted keys of all live entries.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil
	}
	now := s.cfg.Now()
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		rec, err := s.read(filepath.Join(s.cfg.Dir, e.Name()))
		if err != nil || rec.expired(now) {
			continue
		}
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)
	return keys
}

// Prune deletes expired, corrupt and leftover temporary files and returns
// how many entries were removed.
func (s *Store) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, err
	}
	now := s.cfg.Now()
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		p := filepath.Join(s.cfg.Dir, name)
		if strings.HasPrefix(name, ".tmp-") {
			_ = os.Remove(p)
			continue
		}
		if !strings.HasSuffix(name, recordExt) {
			continue
		}
		rec, err := s.read(p)
		if err != nil || rec.expired(now) {
			_ = os.Remove(p)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) path(hash string) string {
	return filepath.Join(s.cfg.Dir, hash+recordExt)
}

func (s *Store) read(path string) (record, error) {
	var rec record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// atomicWrite writes data to path via a temporary file and rename.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
