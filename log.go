package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLog sends the global logger to a rotating file in the user cache
// directory, keeping the terminal free for the TUI. The returned func
// closes the file.
func setupLog() (func() error, error) {
	dir, err := gap.NewScope(gap.User, "readaloud").CacheDir()
	if err != nil {
		return nil, fmt.Errorf("could not find cache directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("could not create cache directory: %w", err)
	}

	f := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "readaloud.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetLevel(log.WarnLevel)
	if lvl, err := log.ParseLevel(os.Getenv("READALOUD_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
	return f.Close, nil
}
