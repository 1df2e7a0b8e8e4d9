// Package cache implements the two-layer build cache: fingerprint entries
// that back up-to-date skip decisions, and a coarse environment cache keyed
// by lock file hash and platform. Cache failures are never fatal; every I/O
// error degrades to a cold miss.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/vk/taskforge/internal/ctxlog"
)

// IOError wraps an underlying cache I/O failure. It is always recoverable:
// callers log it and proceed as if the cache were cold.
type IOError struct {
	Op  string
	Key string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Entry records a prior successful execution under a fingerprint key.
// Entries are never evicted by the core; the caller owns the directory
// lifetime.
type Entry struct {
	Address   string    `json:"address"`
	Outputs   []string  `json:"outputs,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// lockStripes bounds the number of per-key write locks.
const lockStripes = 64

// Store is the on-disk cache, addressed through an afero filesystem so tests
// run against memory. Writes to the same fingerprint key are serialized by a
// striped lock; reads are concurrent.
type Store struct {
	fs      afero.Fs
	baseDir string
	locks   [lockStripes]sync.Mutex
}

// NewStore creates a store rooted at baseDir on the given filesystem.
func NewStore(fs afero.Fs, baseDir string) *Store {
	return &Store{fs: fs, baseDir: baseDir}
}

// Lookup returns the entry stored under the fingerprint key. A miss or any
// read failure returns ok=false; failures are logged at warn and swallowed.
func (s *Store) Lookup(ctx context.Context, key string) (*Entry, bool) {
	logger := ctxlog.FromContext(ctx)
	path := s.fingerprintPath(key)

	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		logger.Warn("cache lookup degraded to cold miss", "error", &IOError{Op: "stat", Key: key, Err: err})
		return nil, false
	}
	if !exists {
		return nil, false
	}

	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		logger.Warn("cache lookup degraded to cold miss", "error", &IOError{Op: "read", Key: key, Err: err})
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logger.Warn("cache entry is corrupt, treating as cold miss", "error", &IOError{Op: "decode", Key: key, Err: err})
		return nil, false
	}
	return &entry, true
}

// Write persists an entry under the fingerprint key. Writes to the same key
// are serialized. The returned error is informational; callers must not
// abort a run because of it.
func (s *Store) Write(ctx context.Context, key string, entry *Entry) error {
	lock := &s.locks[stripe(key)]
	lock.Lock()
	defer lock.Unlock()

	raw, err := json.Marshal(entry)
	if err != nil {
		return &IOError{Op: "encode", Key: key, Err: err}
	}
	path := s.fingerprintPath(key)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Op: "mkdir", Key: key, Err: err}
	}
	if err := afero.WriteFile(s.fs, path, raw, 0o644); err != nil {
		return &IOError{Op: "write", Key: key, Err: err}
	}
	ctxlog.FromContext(ctx).Debug("cache entry written", "key", key, "address", entry.Address)
	return nil
}

// Restore reads the opaque environment blob for key. ok=false means a cold
// environment; read failures degrade to that and are logged.
func (s *Store) Restore(ctx context.Context, key string) ([]byte, bool) {
	logger := ctxlog.FromContext(ctx)
	path := s.envPath(key)

	exists, err := afero.Exists(s.fs, path)
	if err != nil || !exists {
		if err != nil {
			logger.Warn("environment cache restore failed", "error", &IOError{Op: "stat", Key: key, Err: err})
		}
		return nil, false
	}
	raw, err := afero.ReadFile(s.fs, path)
	if err != nil {
		logger.Warn("environment cache restore failed", "error", &IOError{Op: "read", Key: key, Err: err})
		return nil, false
	}
	return raw, true
}

// Save stores the opaque environment blob under key. The contents are never
// interpreted by the core.
func (s *Store) Save(ctx context.Context, key string, blob []byte) error {
	path := s.envPath(key)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Op: "mkdir", Key: key, Err: err}
	}
	if err := afero.WriteFile(s.fs, path, blob, 0o644); err != nil {
		return &IOError{Op: "write", Key: key, Err: err}
	}
	ctxlog.FromContext(ctx).Debug("environment cache saved", "key", key, "bytes", len(blob))
	return nil
}

// fingerprintPath shards entries by the first two hex characters to keep
// directory sizes manageable.
func (s *Store) fingerprintPath(key string) string {
	shard := "xx"
	if len(key) >= 2 {
		shard = key[:2]
	}
	return filepath.Join(s.baseDir, "fingerprints", shard, key+".json")
}

func (s *Store) envPath(key string) string {
	return filepath.Join(s.baseDir, "env", key+".blob")
}

func stripe(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % lockStripes)
}
