package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	gap "github.com/muesli/go-app-paths"
)

// Config holds configuration for a Store.
type Config struct {
	MemoryCapacity   int64  // bytes
	DiskCapacity     int64  // bytes
	Dir              string // defaults to the user cache directory
	CompressionLevel int    // zstd level, 0 disables compression

	TTL             time.Duration // entries older than this are pruned
	CleanupInterval time.Duration // 0 disables background cleanup
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 * 1024 * 1024,
		DiskCapacity:     512 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// DefaultDir returns the directory the audio cache lives in when none is
// configured.
func DefaultDir(app string) (string, error) {
	dir, err := gap.NewScope(gap.User, app).CacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// Store layers the memory cache over the disk cache. Disk hits are
// promoted to memory; writes go to both.
type Store struct {
	memory *MemoryCache
	disk   *DiskCache
	ttl    time.Duration

	mu     sync.Mutex
	closed bool
	hits   map[Level]int64
	misses int64

	stop chan struct{}
	wg   sync.WaitGroup
}

// Open creates a Store, loading any existing disk index.
func Open(config Config) (*Store, error) {
	if config.Dir == "" {
		dir, err := DefaultDir("readaloud")
		if err != nil {
			return nil, err
		}
		config.Dir = dir
	}

	disk, err := NewDiskCache(config.Dir, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	s := &Store{
		memory: NewMemoryCache(config.MemoryCapacity),
		disk:   disk,
		ttl:    config.TTL,
		hits:   make(map[Level]int64),
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 && config.TTL > 0 {
		s.wg.Add(1)
		go s.cleanupLoop(config.CleanupInterval)
	}
	return s, nil
}

// Get looks in memory, then on disk.
func (s *Store) Get(key string) ([]byte, bool) {
	if data, ok := s.memory.Get(key); ok {
		s.record(LevelMemory, true)
		return data, true
	}
	if data, ok := s.disk.Get(key); ok {
		s.record(LevelDisk, true)
		_ = s.memory.Put(key, data)
		return data, true
	}
	s.record(LevelDisk, false)
	return nil, false
}

// Put stores value in both tiers. A value too large for memory is still
// written to disk.
func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrCacheClosed
	}

	if err := s.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := s.disk.Put(key, value); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (s *Store) Delete(key string) error {
	_ = s.memory.Delete(key)
	return s.disk.Delete(key)
}

// Clear empties both tiers.
func (s *Store) Clear() error {
	_ = s.memory.Clear()
	return s.disk.Clear()
}

// Stats reports the disk tier's size and the combined hit counts.
func (s *Store) Stats() Stats {
	stats := s.disk.Stats()

	s.mu.Lock()
	defer s.mu.Unlock()
	stats.Hits = s.hits[LevelMemory] + s.hits[LevelDisk]
	stats.Misses = s.misses
	return stats
}

// Hits returns the number of hits served by one tier.
func (s *Store) Hits(level Level) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[level]
}

// Entries lists the disk entries, least recently used first.
func (s *Store) Entries() []Entry {
	return s.disk.Entries()
}

// Dir returns the disk cache directory.
func (s *Store) Dir() string {
	return s.disk.Dir()
}

// Prune drops entries older than the configured TTL.
func (s *Store) Prune() int {
	if s.ttl <= 0 {
		return 0
	}
	s.memory.Prune(s.ttl)
	return s.disk.RemoveOlderThan(time.Now().Add(-s.ttl))
}

// Close stops background cleanup and saves the disk index.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	return s.disk.Close()
}

func (s *Store) record(level Level, hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.hits[level]++
		return
	}
	s.misses++
}

func (s *Store) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Prune()
		case <-s.stop:
			return
		}
	}
}
