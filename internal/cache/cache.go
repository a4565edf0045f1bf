package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"safety-backend/internal/analysis"
	"safety-backend/internal/shared/telemetry"
)

// Entry is one cached analysis result, keyed by video hash.
type Entry struct {
	VideoHash string          `json:"videoHash"`
	Filename  string          `json:"filename"`
	CachedAt  time.Time       `json:"cachedAt"`
	Results   analysis.Result `json:"results"`
}

// Stats summarizes the cache corpus. Computed by a full directory scan,
// acceptable at the expected corpus size (hundreds to low thousands of
// entries).
type Stats struct {
	TotalEntries   int        `json:"totalEntries"`
	TotalSizeBytes int64      `json:"totalSizeBytes"`
	OldestEntry    *time.Time `json:"oldestEntry,omitempty"`
	NewestEntry    *time.Time `json:"newestEntry,omitempty"`
}

var hashPattern = regexp.MustCompile(`^[a-f0-9]{32}-[a-f0-9]{16}$`)

// lockStripes bounds the lock memory regardless of how many distinct hashes
// a process writes over its lifetime.
const lockStripes = 64

// Store is a flat-directory result cache: one <hash>.json file per entry.
// Writes go to a temp file and are renamed into place, so readers never see
// a partially written entry. Writes for the same hash serialize; writes for
// different hashes only contend when they land on the same lock stripe.
type Store struct {
	dir   string
	locks [lockStripes]sync.Mutex
}

// NewStore creates the cache directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Has reports whether an entry exists for the hash.
func (s *Store) Has(ctx context.Context, hash string) bool {
	if ctx.Err() != nil || !hashPattern.MatchString(hash) {
		return false
	}
	_, err := os.Stat(s.entryPath(hash))
	return err == nil
}

// Get returns the entry for the hash. Absence is a normal outcome, reported
// by the second return value. A corrupt entry is logged and reported absent.
func (s *Store) Get(ctx context.Context, hash string) (Entry, bool) {
	if ctx.Err() != nil || !hashPattern.MatchString(hash) {
		return Entry{}, false
	}
	data, err := os.ReadFile(s.entryPath(hash))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		telemetry.Warn("cache.entry_corrupt", map[string]any{
			"video_hash": hash,
			"error":      err.Error(),
		})
		return Entry{}, false
	}
	return entry, true
}

// Put stores the result under the hash, overwriting any existing entry.
// Safe to retry; the last write wins.
func (s *Store) Put(ctx context.Context, hash, filename string, results analysis.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !hashPattern.MatchString(hash) {
		return fmt.Errorf("invalid video hash %q", hash)
	}

	lock := s.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	entry := Entry{
		VideoHash: hash,
		Filename:  filename,
		CachedAt:  time.Now().UTC(),
		Results:   results,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, hash+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, s.entryPath(hash)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

// List returns all entries, newest cachedAt first. Corrupt entries are
// skipped and logged; one bad file never hides the rest.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	err := s.scan(ctx, func(path string, entry Entry) error {
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
	return entries, nil
}

// Delete removes the entry for the hash, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, hash string) bool {
	if ctx.Err() != nil || !hashPattern.MatchString(hash) {
		return false
	}
	lock := s.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()
	return os.Remove(s.entryPath(hash)) == nil
}

// DeleteAll removes every entry and returns the number removed.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	names, err := s.entryFiles(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if os.Remove(filepath.Join(s.dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}

// DeleteOlderThan removes entries whose cachedAt is older than maxAgeDays.
// Age is judged by the recorded cachedAt, not file modification time, so the
// entry itself stays the single source of truth for freshness.
func (s *Store) DeleteOlderThan(ctx context.Context, maxAgeDays int) (int, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	removed := 0
	err := s.scan(ctx, func(path string, entry Entry) error {
		if entry.CachedAt.Before(cutoff) {
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// ComputeStats scans the cache and returns aggregate numbers.
func (s *Store) ComputeStats(ctx context.Context) (Stats, error) {
	stats := Stats{}
	err := s.scan(ctx, func(path string, entry Entry) error {
		stats.TotalEntries++
		if info, statErr := os.Stat(path); statErr == nil {
			stats.TotalSizeBytes += info.Size()
		}
		cachedAt := entry.CachedAt
		if stats.OldestEntry == nil || cachedAt.Before(*stats.OldestEntry) {
			stats.OldestEntry = &cachedAt
		}
		if stats.NewestEntry == nil || cachedAt.After(*stats.NewestEntry) {
			stats.NewestEntry = &cachedAt
		}
		return nil
	})
	return stats, err
}

func (s *Store) scan(ctx context.Context, visit func(path string, entry Entry) error) error {
	names, err := s.entryFiles(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			telemetry.Warn("cache.entry_unreadable", map[string]any{
				"file":  name,
				"error": err.Error(),
			})
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			telemetry.Warn("cache.entry_corrupt", map[string]any{
				"file":  name,
				"error": err.Error(),
			})
			continue
		}
		if err := visit(path, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) entryFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}

func (s *Store) entryPath(hash string) string {
	return filepath.Join(s.dir, hash+".json")
}

func (s *Store) lockFor(hash string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hash))
	return &s.locks[h.Sum32()%lockStripes]
}
