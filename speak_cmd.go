package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/textlocate"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/ui"
)

// speakOptions are the flags shared by the root command and speak.
type speakOptions struct {
	engine    string
	voice     string
	rate      int
	text      string
	clipboard bool
	unit      string
	cursor    int
	tui       bool
	mute      bool
	markdown  bool
	mouse     bool
}

var (
	speakOpts speakOptions

	speakCmd = &cobra.Command{
		Use:   "speak [SOURCE|DIR]",
		Short: "Speak a file, stdin, the clipboard or text",
		Long: paragraph(fmt.Sprintf("\n%s text from a file, a URL, stdin, the clipboard or the command line. "+
			"A directory speaks its README. Use --unit and --cursor to speak only the word, "+
			"sentence or paragraph around a position.", keyword("Speak"))),
		Example: paragraph("readaloud speak notes.txt\n" +
			"readaloud speak --clipboard --unit sentence --cursor 120\n" +
			"readaloud speak --text 'Hello there.' --engine google --rate 250"),
		Args: cobra.MaximumNArgs(1),
		RunE: runSpeak,
	}
)

func addSpeakFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&speakOpts.engine, "engine", "e", "", "engine: system, google, edge, tencent or elevenlabs")
	f.StringVarP(&speakOpts.voice, "voice", "v", "", "voice id (see `readaloud voices list`)")
	f.IntVarP(&speakOpts.rate, "rate", "r", 0, fmt.Sprintf("speech rate in words per minute (%d to %d)", tts.MinRate, tts.MaxRate))
	f.StringVar(&speakOpts.text, "text", "", "speak this text")
	f.BoolVar(&speakOpts.clipboard, "clipboard", false, "speak the clipboard contents")
	f.StringVarP(&speakOpts.unit, "unit", "u", "all", "speak only the word, sentence or paragraph at --cursor")
	f.IntVarP(&speakOpts.cursor, "cursor", "c", 0, "cursor position in characters, used with --unit")
	f.BoolVarP(&speakOpts.tui, "tui", "t", false, "show the text in a TUI while speaking")
	f.BoolVar(&speakOpts.mute, "mute", false, "highlight words without playing audio")
	f.BoolVarP(&speakOpts.markdown, "markdown", "m", false, "treat the input as markdown (automatic for .md files)")
	f.BoolVar(&speakOpts.mouse, "mouse", false, "enable mouse wheel (TUI-mode only)")
	_ = f.MarkHidden("mouse")
}

func init() {
	addSpeakFlags(speakCmd)
}

func runSpeak(cmd *cobra.Command, args []string) error {
	opts := speakOpts
	unit, err := textlocate.ParseUnit(opts.unit)
	if err != nil {
		return err
	}
	if opts.engine != "" {
		if _, err := tts.ParseEngineKind(opts.engine); err != nil {
			return err //nolint:wrapcheck
		}
	}
	if opts.tui && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the TUI needs a terminal: drop --tui to print words as they are spoken")
	}

	text, title, err := readInput(cmd, opts, args)
	if err != nil {
		return err
	}
	text = textlocate.Extract(unit, text, opts.cursor)
	log.Debug("Speaking", "title", title, "unit", unit, "runes", len([]rune(text)))

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	settings := settingsOverlay{base: a.store, engine: opts.engine, voice: opts.voice, rate: opts.rate}

	var sink tts.AudioSink = &audio.NullSink{}
	if !opts.mute {
		player, err := audio.NewPlayer(audio.DefaultPlayerConfig())
		if err != nil {
			return fmt.Errorf("unable to open audio: %w", err)
		}
		if err := player.SetVolume(viper.GetFloat64("audio.volume")); err != nil {
			return fmt.Errorf("audio.volume: %w", err)
		}
		sink = player
	}

	if opts.tui {
		return speakTUI(a, settings, sink, text, title, opts)
	}
	return speakPlain(cmd, a, settings, sink, text)
}

// readInput returns the text to speak and a title for it.
func readInput(cmd *cobra.Command, opts speakOptions, args []string) (string, string, error) {
	switch {
	case cmd.Flags().Changed("text"):
		return opts.text, "text", nil
	case opts.clipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, "clipboard", nil
	}

	// if stdin is a pipe then use stdin for input. note that you can also
	// explicitly use a - to read from stdin.
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	} else if yes, err := stdinIsPipe(); err != nil {
		return "", "", err
	} else if yes {
		arg = "-"
	}

	src, err := sourceFromArg(arg)
	if err != nil {
		return "", "", err
	}
	defer src.reader.Close() //nolint:errcheck

	b, err := io.ReadAll(src.reader)
	if err != nil {
		return "", "", fmt.Errorf("unable to read from reader: %w", err)
	}

	title := "stdin"
	if src.URL != "" {
		title = filepath.Base(src.URL)
	}
	if opts.markdown || isMarkdownFile(src.URL) {
		return textlocate.PlainText(string(removeFrontmatter(b))), title, nil
	}
	return string(b), title, nil
}

func speakPlain(cmd *cobra.Command, a *app, settings tts.ConfigStore, audioSink tts.AudioSink, text string) error {
	sink := ui.NewPlainSink(cmd.OutOrStdout())
	sink.SetText(text)

	coordinator := a.coordinator(settings, sink, audioSink)
	defer coordinator.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	token, err := coordinator.Speak(text)
	if err != nil {
		return err //nolint:wrapcheck
	}

	ended, err := sink.Wait(ctx, token)
	if err != nil {
		// interrupted: stop and wait for the cancelled session
		coordinator.Stop()
		ended, err = sink.Wait(context.Background(), token)
		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	log.Debug("Session ended", "token", token, "state", ended.State, "err", ended.Err)
	if ended.State == tts.StateFailed {
		return ended.Err
	}
	return nil
}

func speakTUI(a *app, settings tts.ConfigStore, audioSink tts.AudioSink, text, title string, opts speakOptions) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	current, err := settings.Get()
	if err != nil {
		return err //nolint:wrapcheck
	}
	cfg.Title = title
	cfg.HighlightColor = current.HighlightColor
	cfg.AutoSpeak = true
	cfg.EnableMouse = cfg.EnableMouse || opts.mouse

	var program *tea.Program
	sink := ui.NewSink(senderFunc(func(msg tea.Msg) { program.Send(msg) }))
	coordinator := a.coordinator(settings, sink, audioSink)
	program = ui.NewProgram(cfg, text, coordinator)

	done := make(chan struct{})
	defer close(done)
	go func() {
		err := a.store.Watch(done, func(s tts.Settings) {
			program.Send(ui.SettingsMsg{Settings: s})
		})
		if err != nil {
			log.Debug("Not watching config", "err", err)
		}
	}()

	// Run Bubble Tea program
	_, runErr := program.Run()
	// Close drains pending events, which need the program gone first
	if err := coordinator.Close(); err != nil {
		log.Warn("Could not close coordinator", "err", err)
	}
	if runErr != nil {
		return fmt.Errorf("unable to run tui program: %w", runErr)
	}
	return nil
}

// senderFunc adapts a function to ui.Sender.
type senderFunc func(tea.Msg)

func (f senderFunc) Send(msg tea.Msg) { f(msg) }
