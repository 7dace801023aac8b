package cache

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Stats describes what is on disk.
type Stats struct {
	EntryCount   int
	TotalSize    int64
	MirrorCount  int
	OldestRecord time.Time
	NewestRecord time.Time
}

// Stats walks the object store. A missing cache directory yields zero stats.
func (s *Store) Stats() (Stats, error) {
	var stats Stats

	walk := func(root string, visit func(fs.FileInfo)) error {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") || filepath.Ext(d.Name()) != ".json" {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			visit(info)
			return nil
		})
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	err := walk(filepath.Join(s.dir, objectsDirName), func(info fs.FileInfo) {
		stats.EntryCount++
		stats.TotalSize += info.Size()
		if stats.OldestRecord.IsZero() || info.ModTime().Before(stats.OldestRecord) {
			stats.OldestRecord = info.ModTime()
		}
		if info.ModTime().After(stats.NewestRecord) {
			stats.NewestRecord = info.ModTime()
		}
	})
	if err != nil {
		return stats, err
	}

	err = walk(filepath.Join(s.dir, treeDirName), func(info fs.FileInfo) {
		stats.MirrorCount++
		stats.TotalSize += info.Size()
	})
	return stats, err
}

// PerformanceStats are the in-process lookup counters.
type PerformanceStats struct {
	TotalRequests int64
	Hits          int64
	Misses        int64
	HitRate       float64
	Uptime        time.Duration
}

type performanceStats struct {
	mutex         sync.RWMutex
	totalRequests int64
	hits          int64
	misses        int64
	lastReset     time.Time
}

func newPerformanceStats() *performanceStats {
	return &performanceStats{lastReset: time.Now()}
}

func (p *performanceStats) recordHit() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.totalRequests++
	p.hits++
}

func (p *performanceStats) recordMiss() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.totalRequests++
	p.misses++
}

func (p *performanceStats) reset() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.totalRequests = 0
	p.hits = 0
	p.misses = 0
	p.lastReset = time.Now()
}

// Performance returns hit/miss counters since Open or the last InvalidateAll.
func (s *Store) Performance() PerformanceStats {
	s.stats.mutex.RLock()
	defer s.stats.mutex.RUnlock()

	hitRate := 0.0
	if s.stats.totalRequests > 0 {
		hitRate = float64(s.stats.hits) / float64(s.stats.totalRequests) * 100
	}
	return PerformanceStats{
		TotalRequests: s.stats.totalRequests,
		Hits:          s.stats.hits,
		Misses:        s.stats.misses,
		HitRate:       hitRate,
		Uptime:        time.Since(s.stats.lastReset),
	}
}
