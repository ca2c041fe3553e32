package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// CatalogEntry is one voice in a <provider>_voices.json file.
type CatalogEntry struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Country string `json:"country"`
	Gender  string `json:"gender"`
}

// VoiceLister lists voices from a live engine.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]tts.Voice, error)
}

// Catalog is the tts.VoiceCatalog. Cloud voices come from JSON files in a
// directory; System voices are listed live.
type Catalog struct {
	dir    string
	system VoiceLister
}

// NewCatalog returns a catalog reading from dir. system may be nil.
func NewCatalog(dir string, system VoiceLister) *Catalog {
	return &Catalog{dir: dir, system: system}
}

// Path returns the catalog file for a cloud kind.
func (c *Catalog) Path(kind tts.EngineKind) string {
	return filepath.Join(c.dir, kind.String()+"_voices.json")
}

// List returns the voices of kind. A missing catalog file yields an empty
// list.
func (c *Catalog) List(ctx context.Context, kind tts.EngineKind) ([]tts.Voice, error) {
	if kind.IsSystem() {
		if c.system == nil {
			return nil, nil
		}
		return c.system.ListVoices(ctx)
	}

	data, err := os.ReadFile(c.Path(kind))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read voice catalog: %w", err)
	}

	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse voice catalog %s: %w", c.Path(kind), err)
	}

	voices := make([]tts.Voice, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		voices = append(voices, tts.Voice{
			ID:          e.ID,
			DisplayName: e.Name,
			LanguageTag: NormalizeLanguage(e.Country),
			Gender:      tts.ParseGender(e.Gender),
			Origin:      kind,
		})
	}
	return voices, nil
}

// Save writes voices as the catalog file for kind, sorted by id.
func (c *Catalog) Save(kind tts.EngineKind, voices []tts.Voice) error {
	entries := make([]CatalogEntry, 0, len(voices))
	for _, v := range voices {
		gender := ""
		if v.Gender != tts.GenderUnknown {
			gender = v.Gender.String()
		}
		entries = append(entries, CatalogEntry{
			Name:    v.DisplayName,
			ID:      v.ID,
			Country: v.LanguageTag,
			Gender:  gender,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("could not create catalog directory: %w", err)
	}
	return writeFile(c.Path(kind), append(data, '\n'))
}

// NormalizeLanguage canonicalizes a BCP 47 tag such as "en_us" to "en-US".
// Strings that do not parse are returned trimmed but otherwise unchanged.
func NormalizeLanguage(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	return tag.String()
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
