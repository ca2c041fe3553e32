package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Title is shown in the status bar, usually the file name.
	Title string

	// HighlightColor is the initial #RRGGBB background of the spoken word.
	HighlightColor string

	// AutoSpeak starts speaking as soon as the program starts.
	AutoSpeak bool

	EnableMouse bool `env:"READALOUD_MOUSE"`
	MaxWidth    int  `env:"READALOUD_WIDTH" envDefault:"100"`

	// For debugging the UI
	AltScreen bool `env:"READALOUD_ALT_SCREEN" envDefault:"true"`
}
