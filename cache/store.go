// Package cache is the content-addressed summary store. Records are keyed by
// fingerprint only; the mirrored tree under tree/ exists for inspection.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/meysamhadeli/doctreeai/hasher"
	"github.com/meysamhadeli/doctreeai/utils"
	"github.com/pterm/pterm"
)

const (
	objectsDirName = "objects"
	treeDirName    = "tree"
	dirIndexName   = "_index.json"
	fileSuffix     = ".summary.json"
)

var (
	// ErrNotFound is returned by Lookup when no record exists for a key.
	ErrNotFound = errors.New("cache entry not found")
	// ErrCorrupt is returned by Lookup when a record exists but cannot be parsed.
	ErrCorrupt = errors.New("cache entry corrupt")
)

// Entry is the persisted form of one computed summary. It is immutable once
// written under its key.
type Entry struct {
	Key         string    `json:"key"`
	PathHint    string    `json:"path_hint"`
	Kind        string    `json:"kind"`
	Summary     string    `json:"summary"`
	Symbols     []string  `json:"symbols,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Pointer is the mirrored record written at a node's path under tree/.
type Pointer struct {
	Key  string `json:"key"`
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Store is safe for concurrent use. Records are published with write-then-rename,
// so readers never observe a partially written entry.
type Store struct {
	dir     string
	mu      sync.RWMutex
	entries map[hasher.Digest]*Entry
	stats   *performanceStats
	logger  *pterm.Logger
}

// Open prepares the store rooted at dir, creating it when missing.
func Open(dir string, logger *pterm.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory must not be empty")
	}
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	if err := os.MkdirAll(filepath.Join(dir, objectsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{
		dir:     dir,
		entries: make(map[hasher.Digest]*Entry),
		stats:   newPerformanceStats(),
		logger:  logger,
	}, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string { return s.dir }

// Get returns the entry for key. Corrupt and unreadable records are logged and
// reported as a miss.
func (s *Store) Get(key hasher.Digest) (*Entry, bool) {
	entry, err := s.Lookup(key)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
		case errors.Is(err, ErrCorrupt):
			s.logger.Warn("ignoring corrupt cache record", s.logger.Args("key", key.Short(), "error", err))
		default:
			s.logger.Warn("failed to read cache record", s.logger.Args("key", key.Short(), "error", err))
		}
		s.stats.recordMiss()
		return nil, false
	}
	s.stats.recordHit()
	return entry, true
}

// Lookup is Get with the reason for a miss: ErrNotFound, ErrCorrupt or an I/O error.
func (s *Store) Lookup(key hasher.Digest) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}

	data, err := os.ReadFile(s.objectPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache record %s: %w", key.Short(), err)
	}

	var decoded Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key.Short(), err)
	}
	if decoded.Key != key.String() {
		return nil, fmt.Errorf("%w: %s: record holds key %q", ErrCorrupt, key.Short(), decoded.Key)
	}

	s.mu.Lock()
	s.entries[key] = &decoded
	s.mu.Unlock()
	return &decoded, nil
}

// Put stores entry unless a valid record already exists for its key.
func (s *Store) Put(entry *Entry) error {
	key, err := hasher.ParseDigest(entry.Key)
	if err != nil {
		return fmt.Errorf("invalid cache entry key: %w", err)
	}
	if _, err := s.Lookup(key); err == nil {
		return nil
	}
	return s.write(key, entry)
}

// Replace stores entry even when a record for its key exists. It backs --force runs.
func (s *Store) Replace(entry *Entry) error {
	key, err := hasher.ParseDigest(entry.Key)
	if err != nil {
		return fmt.Errorf("invalid cache entry key: %w", err)
	}
	return s.write(key, entry)
}

func (s *Store) write(key hasher.Digest, entry *Entry) error {
	if entry.GeneratedAt.IsZero() {
		entry.GeneratedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := writeFileAtomic(s.objectPath(key), data); err != nil {
		return fmt.Errorf("failed to write cache record %s: %w", key.Short(), err)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

// Link records which key currently backs relPath in the mirrored tree. The
// pointer is rewritten only when it changed.
func (s *Store) Link(relPath string, isDir bool, key hasher.Digest) error {
	kind := "file"
	if isDir {
		kind = "directory"
	}
	data, err := json.MarshalIndent(Pointer{Key: key.String(), Path: relPath, Kind: kind}, "", "  ")
	if err != nil {
		return err
	}

	target, err := s.mirrorPath(relPath, isDir)
	if err != nil {
		return err
	}
	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	if err := writeFileAtomic(target, data); err != nil {
		return fmt.Errorf("failed to write mirror pointer for %s: %w", relPath, err)
	}
	return nil
}

// ReadLink returns the pointer last written for relPath.
func (s *Store) ReadLink(relPath string, isDir bool) (*Pointer, error) {
	target, err := s.mirrorPath(relPath, isDir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, err
	}
	var p Pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: mirror pointer %s: %v", ErrCorrupt, relPath, err)
	}
	return &p, nil
}

// InvalidateAll removes every record, mirror pointer and file under the cache root.
func (s *Store) InvalidateAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to clear cache directory: %w", err)
	}
	s.entries = make(map[hasher.Digest]*Entry)
	s.stats.reset()
	return nil
}

func (s *Store) objectPath(key hasher.Digest) string {
	hex := key.String()
	return filepath.Join(s.dir, objectsDirName, hex[:2], hex+".json")
}

func (s *Store) mirrorPath(relPath string, isDir bool) (string, error) {
	relPath = filepath.ToSlash(filepath.Clean(relPath))
	if relPath == ".." || strings.HasPrefix(relPath, "../") || filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path %q escapes the tree", relPath)
	}
	base := filepath.Join(s.dir, treeDirName)
	if isDir {
		if relPath == "." {
			return filepath.Join(base, dirIndexName), nil
		}
		return filepath.Join(base, filepath.FromSlash(relPath), dirIndexName), nil
	}
	return filepath.Join(base, filepath.FromSlash(relPath)+fileSuffix), nil
}

// writeFileAtomic writes into a temp file in the target directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// WriteFileAtomic exposes the store's publish step for other persisted state
// under the cache root, such as the README mapping.
func WriteFileAtomic(path string, data []byte) error {
	return writeFileAtomic(path, data)
}
