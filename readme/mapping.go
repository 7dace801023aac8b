package readme

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/meysamhadeli/doctreeai/cache"
)

// MappingVersion is bumped when the mapping file layout changes. Files with
// another version are ignored and rebuilt.
const MappingVersion = 1

// MappingFileName is the mapping file inside the cache directory.
const MappingFileName = "readme_mapping.json"

// ErrMappingCorrupt is returned alongside an empty mapping when the file
// cannot be decoded.
var ErrMappingCorrupt = errors.New("readme mapping is corrupt")

// MappingEntry ties one README line to the cache keys it depends on.
type MappingEntry struct {
	LineNumber   int    `json:"line_number"`
	LineChecksum string `json:"line_checksum"`
	CacheKeys    []Ref  `json:"cache_keys"`
}

// Mapping is the persisted line-to-cache-key table.
type Mapping struct {
	Version int            `json:"version"`
	Entries []MappingEntry `json:"entries"`
}

// MappingPath returns the mapping file location for a cache directory.
func MappingPath(cacheDir string) string {
	return filepath.Join(cacheDir, MappingFileName)
}

// LoadMapping reads the mapping at path. A missing file yields an empty
// mapping and no error.
func LoadMapping(path string) (*Mapping, error) {
	empty := &Mapping{Version: MappingVersion}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("failed to read readme mapping: %w", err)
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return empty, fmt.Errorf("%w: %v", ErrMappingCorrupt, err)
	}
	if m.Version != MappingVersion {
		return empty, fmt.Errorf("%w: unsupported version %d", ErrMappingCorrupt, m.Version)
	}
	return &m, nil
}

// SaveMapping writes m atomically, entries ordered by line number.
func SaveMapping(path string, m *Mapping) error {
	out := Mapping{Version: MappingVersion, Entries: append([]MappingEntry(nil), m.Entries...)}
	if out.Entries == nil {
		out.Entries = []MappingEntry{}
	}
	sort.Slice(out.Entries, func(i, j int) bool { return out.Entries[i].LineNumber < out.Entries[j].LineNumber })

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode readme mapping: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}
	if err := cache.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write readme mapping: %w", err)
	}
	return nil
}

// byChecksum groups entries for reuse lookups.
func (m *Mapping) byChecksum() map[string][]MappingEntry {
	groups := make(map[string][]MappingEntry)
	if m == nil {
		return groups
	}
	for _, entry := range m.Entries {
		groups[entry.LineChecksum] = append(groups[entry.LineChecksum], entry)
	}
	return groups
}
