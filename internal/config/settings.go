package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Keys in the config file.
const (
	KeyEngine         = "tts.engine"
	KeyVoice          = "tts.voice"
	KeyLanguage       = "tts.language"
	KeyRate           = "tts.rate"
	KeyHighlightColor = "tts.highlight_color"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ErrInvalidSettings is wrapped by every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Overrides are environment variables that take precedence over the
// config file.
type Overrides struct {
	Engine         string `env:"READALOUD_ENGINE"`
	Voice          string `env:"READALOUD_VOICE"`
	Language       string `env:"READALOUD_LANGUAGE"`
	Rate           int    `env:"READALOUD_RATE"`
	HighlightColor string `env:"READALOUD_HIGHLIGHT_COLOR"`
}

// SetDefaults registers the default settings with v.
func SetDefaults(v *viper.Viper) {
	d := tts.DefaultSettings()
	v.SetDefault(KeyEngine, d.Engine)
	v.SetDefault(KeyVoice, d.VoiceID)
	v.SetDefault(KeyLanguage, d.LanguageTag)
	v.SetDefault(KeyRate, d.Rate)
	v.SetDefault(KeyHighlightColor, d.HighlightColor)
}

// Validate checks engine name, rate range and highlight color.
func Validate(s tts.Settings) error {
	if _, err := tts.ParseEngineKind(s.Engine); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	if s.Rate < tts.MinRate || s.Rate > tts.MaxRate {
		return fmt.Errorf("%w: rate must be between %d and %d, got %d", ErrInvalidSettings, tts.MinRate, tts.MaxRate, s.Rate)
	}
	if !colorPattern.MatchString(s.HighlightColor) {
		return fmt.Errorf("%w: highlight color must look like #RRGGBB, got %q", ErrInvalidSettings, s.HighlightColor)
	}
	return nil
}

// Store is the viper-backed tts.ConfigStore. Reads see the config file with
// environment overrides applied; writes go back to the file.
type Store struct {
	mu        sync.Mutex
	v         *viper.Viper
	path      string
	overrides Overrides
	logger    *log.Logger
}

// NewStore wraps v. path is where Set writes when v did not load a file.
func NewStore(v *viper.Viper, path string, logger *log.Logger) (*Store, error) {
	overrides, err := env.ParseAs[Overrides]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	if logger == nil {
		logger = log.Default().WithPrefix("config")
	}
	SetDefaults(v)
	return &Store{v: v, path: path, overrides: overrides, logger: logger}, nil
}

// Get returns the current settings.
func (s *Store) Get() (tts.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked(), nil
}

func (s *Store) settingsLocked() tts.Settings {
	settings := tts.Settings{
		Engine:         s.v.GetString(KeyEngine),
		VoiceID:        s.v.GetString(KeyVoice),
		LanguageTag:    s.v.GetString(KeyLanguage),
		Rate:           s.v.GetInt(KeyRate),
		HighlightColor: s.v.GetString(KeyHighlightColor),
	}

	o := s.overrides
	if o.Engine != "" {
		settings.Engine = o.Engine
	}
	if o.Voice != "" {
		settings.VoiceID = o.Voice
	}
	if o.Language != "" {
		settings.LanguageTag = o.Language
	}
	if o.Rate != 0 {
		settings.Rate = o.Rate
	}
	if o.HighlightColor != "" {
		settings.HighlightColor = o.HighlightColor
	}

	settings.Rate = tts.ClampRate(settings.Rate)
	if !colorPattern.MatchString(settings.HighlightColor) {
		s.logger.Warn("Ignoring invalid highlight color", "color", settings.HighlightColor)
		settings.HighlightColor = tts.DefaultHighlightColor
	}
	return settings
}

// Set validates settings and writes them to the config file.
func (s *Store) Set(settings tts.Settings) error {
	settings.HighlightColor = strings.ToUpper(settings.HighlightColor)
	if err := Validate(settings); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(KeyEngine, strings.ToLower(settings.Engine))
	s.v.Set(KeyVoice, settings.VoiceID)
	s.v.Set(KeyLanguage, settings.LanguageTag)
	s.v.Set(KeyRate, settings.Rate)
	s.v.Set(KeyHighlightColor, settings.HighlightColor)

	path := s.fileLocked()
	if path == "" {
		return errors.New("no config file to write settings to")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	if err := s.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	s.logger.Debug("Settings saved", "path", path)
	return nil
}

func (s *Store) fileLocked() string {
	if used := s.v.ConfigFileUsed(); used != "" {
		return used
	}
	return s.path
}

// Path returns the config file settings are read from and written to.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileLocked()
}

// Watch reloads the config file whenever it changes on disk and calls fn
// with the new settings. It returns when done is closed.
func (s *Store) Watch(done <-chan struct{}, fn func(tts.Settings)) error {
	path := s.Path()
	if path == "" {
		return errors.New("no config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(path), err)
	}
	s.logger.Debug("Watching config", "path", path)

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			settings, err := s.reload(path)
			if err != nil {
				s.logger.Warn("Could not reload config", "path", path, "err", err)
				continue
			}
			fn(settings)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Debug("fsnotify error", "err", err)
		}
	}
}

func (s *Store) reload(path string) (tts.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// a fresh viper drops values pinned by earlier Set calls
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return tts.Settings{}, err
	}
	s.v = v
	return s.settingsLocked(), nil
}
