package main

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
)

// app holds the long-lived collaborators every command builds on.
type app struct {
	store   *config.Store
	creds   *config.FileCredentials
	catalog *config.Catalog
	factory *engines.Factory
	runner  engines.Runner
	cache   *cache.Store // nil when caching is disabled
}

func newApp() (*app, error) {
	store, err := config.NewStore(viper.GetViper(), configPath(), log.Default().WithPrefix("config"))
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(store.Path())

	credsPath, err := expandPath(viper.GetString("credentials"), filepath.Join(dir, "credentials.yml"))
	if err != nil {
		return nil, err
	}
	creds, err := config.NewFileCredentials(credsPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		store:  store,
		creds:  creds,
		runner: engines.NewSubprocess(30 * time.Second),
	}

	if viper.GetBool("cache.enabled") {
		a.cache, err = openCache()
		if err != nil {
			// speaking still works without a cache
			log.Warn("Audio cache disabled", "err", err)
		}
	}

	fc := engines.FactoryConfig{
		Runner:            a.runner,
		RequestsPerMinute: viper.GetInt("cloud.requests_per_minute"),
		ElevenLabsURL:     viper.GetString("cloud.elevenlabs_url"),
		HTTPClient:        &http.Client{Timeout: 60 * time.Second},
		Logger:            log.Default().WithPrefix("engines"),
	}
	if a.cache != nil {
		fc.Cache = a.cache
	}
	a.factory = engines.NewFactory(fc)

	voicesDir, err := expandPath(viper.GetString("voices_dir"), filepath.Join(dir, "voices"))
	if err != nil {
		return nil, err
	}
	system, err := a.factory.Lister(tts.System)
	if err != nil {
		return nil, err
	}
	a.catalog = config.NewCatalog(voicesDir, system)
	return a, nil
}

func openCache() (*cache.Store, error) {
	cfg := cache.DefaultConfig()
	if mb := viper.GetInt64("cache.memory_mb"); mb > 0 {
		cfg.MemoryCapacity = mb * 1024 * 1024
	}
	if mb := viper.GetInt64("cache.disk_mb"); mb > 0 {
		cfg.DiskCapacity = mb * 1024 * 1024
	}
	dir, err := expandPath(viper.GetString("cache.dir"), "")
	if err != nil {
		return nil, err
	}
	cfg.Dir = dir
	return cache.Open(cfg) //nolint:wrapcheck
}

// coordinator wires a Coordinator to the app and the given sinks.
func (a *app) coordinator(settings tts.ConfigStore, sink tts.HighlightSink, audio tts.AudioSink) *tts.Coordinator {
	return tts.NewCoordinator(tts.Options{
		Engines:     a.factory,
		Config:      settings,
		Credentials: a.creds,
		Catalog:     a.catalog,
		Sink:        sink,
		Audio:       audio,
		Logger:      log.Default().WithPrefix("tts"),
	})
}

func (a *app) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close() //nolint:wrapcheck
}

// expandPath expands ~ in p, returning fallback when p is empty.
func expandPath(p, fallback string) (string, error) {
	if p == "" {
		return fallback, nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("could not expand %q: %w", p, err)
	}
	return expanded, nil
}

// settingsOverlay applies command line flags on top of the stored
// settings without writing them back.
type settingsOverlay struct {
	base   tts.ConfigStore
	engine string
	voice  string
	rate   int
}

func (o settingsOverlay) Get() (tts.Settings, error) {
	s, err := o.base.Get()
	if err != nil {
		return s, err //nolint:wrapcheck
	}
	if o.engine != "" {
		s.Engine = o.engine
		if o.voice == "" {
			// a stored voice belongs to the stored engine
			s.VoiceID = ""
		}
	}
	if o.voice != "" {
		s.VoiceID = o.voice
	}
	if o.rate != 0 {
		s.Rate = tts.ClampRate(o.rate)
	}
	return s, nil
}

func (o settingsOverlay) Set(tts.Settings) error {
	return errors.New("settings from flags are read-only")
}
