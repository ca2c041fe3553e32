package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned by a Store after Close
	ErrCacheClosed = errors.New("cache is closed")
)

// Level identifies the tier an entry was served from.
type Level int

const (
	// LevelMemory is the in-process LRU.
	LevelMemory Level = iota
	// LevelDisk is the persistent cache.
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds cache counters.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Entry describes a cached item without its data.
type Entry struct {
	Key        string
	Size       int64
	Created    time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// Key identifies one synthesis: the same text spoken by the same engine,
// voice and rate always produces the same audio.
type Key struct {
	Engine string
	Voice  string
	Rate   int
	Text   string
}

// String returns a stable hex digest of the key.
func (k Key) String() string {
	h := sha256.New()
	for _, part := range []string{k.Engine, k.Voice, strconv.Itoa(k.Rate), k.Text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache is implemented by every tier and by Store.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Stats() Stats
}
