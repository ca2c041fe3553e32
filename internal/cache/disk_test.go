package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskCacheRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		level int
		value []byte
	}{
		{"small uncompressed", 3, []byte("short")},
		{"large compressed", 3, bytes.Repeat([]byte("speech "), 1000)},
		{"compression disabled", 0, bytes.Repeat([]byte{0}, 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, err := NewDiskCache(t.TempDir(), 1<<20, tt.level)
			if err != nil {
				t.Fatal(err)
			}
			defer dc.Close() //nolint:errcheck

			key := Key{Engine: "google", Voice: "en-US-Wavenet-D", Rate: 200, Text: tt.name}.String()
			if err := dc.Put(key, tt.value); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			got, ok := dc.Get(key)
			if !ok {
				t.Fatal("Get() missed a fresh entry")
			}
			if !bytes.Equal(got, tt.value) {
				t.Errorf("Get() returned %d bytes, want %d", len(got), len(tt.value))
			}
		})
	}
}

func TestDiskCacheCompresses(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	value := bytes.Repeat([]byte{0}, 64*1024)
	_ = dc.Put("silence", value)

	if size := dc.Stats().Size; size >= int64(len(value)) {
		t.Errorf("silence stored in %d bytes, want compression", size)
	}
}

func TestDiskCachePersistsIndex(t *testing.T) {
	dir := t.TempDir()

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	_ = dc.Put("kept", []byte("audio bytes"))
	if err := dc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reopened.Get("kept")
	if !ok || string(got) != "audio bytes" {
		t.Errorf("reopened cache Get() = %q, %v", got, ok)
	}
	if reopened.Stats().Items != 1 {
		t.Errorf("reopened cache has %d items, want 1", reopened.Stats().Items)
	}
}

func TestDiskCacheDropsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	dc, _ := NewDiskCache(dir, 1<<20, 0)
	_ = dc.Put("gone", []byte("data"))
	_ = dc.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "*.cache"))
	for _, m := range matches {
		_ = os.Remove(m)
	}

	reopened, _ := NewDiskCache(dir, 1<<20, 0)
	if _, ok := reopened.Get("gone"); ok {
		t.Error("entry with a missing file should not be served")
	}
	if reopened.Stats().Size != 0 {
		t.Errorf("size = %d, want 0", reopened.Stats().Size)
	}
}

func TestDiskCacheEviction(t *testing.T) {
	dc, _ := NewDiskCache(t.TempDir(), 10, 0)

	_ = dc.Put("first", []byte("12345"))
	time.Sleep(5 * time.Millisecond)
	_ = dc.Put("second", []byte("12345"))
	time.Sleep(5 * time.Millisecond)
	_ = dc.Put("third", []byte("12345"))

	if _, ok := dc.Get("first"); ok {
		t.Error("least recently used entry should have been evicted")
	}
	if s := dc.Stats(); s.Evictions != 1 || s.Items != 2 {
		t.Errorf("stats = %+v, want 1 eviction and 2 items", s)
	}
	if err := dc.Put("huge", make([]byte, 11)); err != ErrItemTooLarge {
		t.Errorf("Put() error = %v, want ErrItemTooLarge", err)
	}
}

func TestDiskCacheClearAndEntries(t *testing.T) {
	dc, _ := NewDiskCache(t.TempDir(), 1<<20, 0)
	_ = dc.Put("a", []byte("1"))
	time.Sleep(5 * time.Millisecond)
	_ = dc.Put("b", []byte("2"))

	entries := dc.Entries()
	if len(entries) != 2 || entries[0].Key != "a" || entries[0].Level != LevelDisk {
		t.Errorf("Entries() = %+v, want a then b", entries)
	}

	if err := dc.Clear(); err != nil {
		t.Fatal(err)
	}
	if s := dc.Stats(); s.Items != 0 || s.Size != 0 {
		t.Errorf("after Clear stats = %+v", s)
	}
}

func TestDiskCacheRemoveOlderThan(t *testing.T) {
	dc, _ := NewDiskCache(t.TempDir(), 1<<20, 0)
	_ = dc.Put("old", []byte("1"))
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_ = dc.Put("new", []byte("2"))

	if removed := dc.RemoveOlderThan(cutoff); removed != 1 {
		t.Errorf("RemoveOlderThan() = %d, want 1", removed)
	}
	if _, ok := dc.Get("new"); !ok {
		t.Error("new entry should remain")
	}
}

func TestKeyString(t *testing.T) {
	a := Key{Engine: "edge", Voice: "en-US-AriaNeural", Rate: 200, Text: "hello"}
	b := a
	b.Rate = 210

	if a.String() == b.String() {
		t.Error("different rates should produce different keys")
	}
	if a.String() != (Key{Engine: "edge", Voice: "en-US-AriaNeural", Rate: 200, Text: "hello"}).String() {
		t.Error("equal keys should hash identically")
	}
	// field boundaries matter
	if (Key{Voice: "ab", Text: "c"}).String() == (Key{Voice: "a", Text: "bc"}).String() {
		t.Error("keys should not collide across field boundaries")
	}
	if len(a.String()) != 64 {
		t.Errorf("key length = %d, want 64", len(a.String()))
	}
}
