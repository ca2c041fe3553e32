package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const statusBarHeight = 1

// Speaker starts and stops speech sessions. *tts.Coordinator satisfies it.
type Speaker interface {
	Speak(text string) (uint64, error)
	Stop()
}

// NewProgram returns a new Tea program that shows text and highlights each
// word as it is spoken. Route the coordinator's spans to it with NewSink.
func NewProgram(cfg Config, text string, speaker Speaker) *tea.Program {
	log.Debug("Starting TUI", "runes", len([]rune(text)), "auto_speak", cfg.AutoSpeak)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, text, speaker), opts...)
}

type (
	// SpanMsg carries one highlighted word span into the program.
	SpanMsg struct {
		Token uint64
		Span  tts.WordSpan
		Color string
	}

	// EndedMsg reports the end of a session.
	EndedMsg struct {
		Token uint64
		State tts.PlaybackState
		Err   error
	}

	// SettingsMsg delivers settings reloaded from disk.
	SettingsMsg struct {
		Settings tts.Settings
	}

	startedMsg struct {
		token uint64
		err   error
	}
)

type model struct {
	cfg     Config
	speaker Speaker

	text  string
	runes []rune

	viewport viewport.Model
	ready    bool
	width    int
	height   int

	token   uint64
	state   tts.PlaybackState
	span    tts.WordSpan
	hasSpan bool
	color   string
	err     error

	statusMessage string
}

func newModel(cfg Config, text string, speaker Speaker) model {
	color := cfg.HighlightColor
	if color == "" {
		color = tts.DefaultHighlightColor
	}
	return model{
		cfg:     cfg,
		speaker: speaker,
		text:    text,
		runes:   []rune(text),
		color:   color,
		state:   tts.StateIdle,
	}
}

func (m model) Init() tea.Cmd {
	if m.cfg.AutoSpeak {
		return speakCmd(m.speaker, m.text)
	}
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(0, msg.Height-statusBarHeight))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(0, msg.Height-statusBarHeight)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Sequence(stopCmd(m.speaker), tea.Quit)
		case " ":
			m.state = tts.StateSynthesizing
			m.err = nil
			m.statusMessage = ""
			return m, speakCmd(m.speaker, m.text)
		case "s":
			return m, stopCmd(m.speaker)
		case "c":
			word := m.currentWord()
			if word == "" {
				return m, nil
			}
			// Copy using OSC 52
			termenv.Copy(word)
			// Copy using native system clipboard
			_ = clipboard.WriteAll(word)
			m.statusMessage = fmt.Sprintf("Copied %q", word)
			return m, nil
		}

	case startedMsg:
		if msg.err != nil {
			m.state = tts.StateFailed
			m.err = msg.err
			return m, nil
		}
		m.adopt(msg.token)
		return m, nil

	case SpanMsg:
		if msg.Token < m.token {
			return m, nil
		}
		m.adopt(msg.Token)
		m.span = msg.Span
		m.hasSpan = msg.Span.Valid(len(m.runes), 0)
		if msg.Color != "" {
			m.color = msg.Color
		}
		m.state = tts.StatePlaying
		m.refresh()
		m.follow()
		return m, nil

	case EndedMsg:
		if msg.Token < m.token {
			return m, nil
		}
		m.adopt(msg.Token)
		m.state = msg.State
		m.hasSpan = false
		if msg.State == tts.StateFailed {
			m.err = msg.Err
		}
		m.refresh()
		return m, nil

	case SettingsMsg:
		if msg.Settings.HighlightColor != "" {
			m.color = msg.Settings.HighlightColor
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	m.statusBarView(&b)
	return b.String()
}

// adopt switches the model to a newer session.
func (m *model) adopt(token uint64) {
	if token > m.token {
		m.token = token
		m.hasSpan = false
	}
}

func (m model) currentWord() string {
	if !m.hasSpan {
		return ""
	}
	return string(m.runes[m.span.Start:m.span.End])
}

func (m model) wrapWidth() int {
	w := m.width
	if m.cfg.MaxWidth > 0 && m.cfg.MaxWidth < w {
		w = m.cfg.MaxWidth
	}
	return max(1, w)
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.render())
}

func (m model) render() string {
	if !m.hasSpan {
		return wordwrap.String(m.text, m.wrapWidth())
	}
	var b strings.Builder
	b.WriteString(string(m.runes[:m.span.Start]))
	b.WriteString(highlightStyle(m.color).Render(string(m.runes[m.span.Start:m.span.End])))
	b.WriteString(string(m.runes[m.span.End:]))
	return wordwrap.String(b.String(), m.wrapWidth())
}

// follow scrolls the viewport so the highlighted word stays visible.
func (m *model) follow() {
	if !m.hasSpan || m.viewport.Height <= 0 {
		return
	}
	wrapped := wordwrap.String(string(m.runes[:m.span.End]), m.wrapWidth())
	line := strings.Count(wrapped, "\n")
	if line >= m.viewport.YOffset && line < m.viewport.YOffset+m.viewport.Height {
		return
	}
	m.viewport.SetYOffset(max(0, line-m.viewport.Height/3))
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoStyle(" readaloud ")

	var progress string
	if m.hasSpan && len(m.runes) > 0 {
		progress = fmt.Sprintf(" %3d%% ", m.span.End*100/len(m.runes))
	}
	progress = statusBarNoteStyle(progress)

	state := statusBarStateStyle(" " + m.state.String() + " ")
	if m.state == tts.StateFailed {
		state = statusBarErrorStyle(" " + m.state.String() + " ")
	}

	helpNote := statusBarHelpStyle(" space speak • s stop • q quit ")

	note := m.note()
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(progress)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	note = statusBarNoteStyle(note)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(progress)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := statusBarNoteStyle(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s%s",
		logo,
		state,
		note,
		emptySpace,
		progress,
		helpNote,
	)
}

func (m model) note() string {
	switch {
	case m.statusMessage != "":
		return m.statusMessage
	case m.err != nil:
		return m.err.Error()
	case m.state == tts.StateIdle:
		return m.cfg.Title + " | press space to speak"
	}
	return m.cfg.Title
}

func speakCmd(speaker Speaker, text string) tea.Cmd {
	return func() tea.Msg {
		token, err := speaker.Speak(text)
		return startedMsg{token: token, err: err}
	}
}

func stopCmd(speaker Speaker) tea.Cmd {
	return func() tea.Msg {
		speaker.Stop()
		return nil
	}
}
