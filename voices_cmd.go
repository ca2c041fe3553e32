package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const voiceNameWidth = 32

var (
	voicesEngine string
	voicesFilter string

	voicesCmd = &cobra.Command{
		Use:   "voices",
		Short: "List, refresh and choose voices",
		Args:  cobra.NoArgs,
	}

	voicesListCmd = &cobra.Command{
		Use:     "list",
		Short:   "List the voices of an engine",
		Example: paragraph("readaloud voices list\nreadaloud voices list --engine google --filter wavenet"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			settings, err := a.store.Get()
			if err != nil {
				return err //nolint:wrapcheck
			}
			kind, err := voicesKind(settings)
			if err != nil {
				return err
			}

			voices, err := a.catalog.List(cmd.Context(), kind)
			if err != nil {
				return fmt.Errorf("unable to list %s voices: %w", kind, err)
			}
			if len(voices) == 0 && !kind.IsSystem() {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s voices yet. Run %s to fetch them.\n",
					kind, keyword("readaloud voices refresh --engine "+kind.String()))
				return nil
			}

			current := ""
			if strings.EqualFold(settings.Engine, kind.String()) {
				current = settings.VoiceID
			}
			writeVoices(cmd.OutOrStdout(), filterVoices(voices, voicesFilter), current)
			return nil
		},
	}

	voicesRefreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the voice list of a cloud engine and save it",
		Long: paragraph(fmt.Sprintf("\n%s the voice catalog of google or elevenlabs from the provider. "+
			"Other engines keep their catalog files as written.", keyword("Refresh"))),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			settings, err := a.store.Get()
			if err != nil {
				return err //nolint:wrapcheck
			}
			kind, err := voicesKind(settings)
			if err != nil {
				return err
			}
			if kind.IsSystem() {
				return errors.New("system voices are always listed live")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			voices, err := refreshVoices(ctx, a, kind, settings.Rate)
			if err != nil {
				return err
			}
			if err := a.catalog.Save(kind, voices); err != nil {
				return fmt.Errorf("unable to save voices: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %d %s voices to %s\n", okMark, len(voices), kind, a.catalog.Path(kind))
			return nil
		},
	}

	voicesUseCmd = &cobra.Command{
		Use:     "use VOICE",
		Short:   "Make a voice the default",
		Example: paragraph("readaloud voices use en-US-AriaNeural --engine edge"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			settings, err := a.store.Get()
			if err != nil {
				return err //nolint:wrapcheck
			}
			kind, err := voicesKind(settings)
			if err != nil {
				return err
			}

			voices, err := a.catalog.List(cmd.Context(), kind)
			if err != nil {
				return fmt.Errorf("unable to list %s voices: %w", kind, err)
			}
			settings.Engine = kind.String()
			settings.VoiceID = args[0]
			if v, ok := findVoice(voices, args[0]); ok {
				if v.LanguageTag != "" {
					settings.LanguageTag = v.LanguageTag
				}
			} else {
				log.Warn("Voice not in catalog", "engine", kind, "voice", args[0])
			}

			if err := a.store.Set(settings); err != nil {
				return err //nolint:wrapcheck
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Now speaking with %s (%s)\n", okMark, keyword(args[0]), kind)
			return nil
		},
	}
)

func init() {
	voicesCmd.PersistentFlags().StringVarP(&voicesEngine, "engine", "e", "", "engine (defaults to the configured one)")
	voicesListCmd.Flags().StringVarP(&voicesFilter, "filter", "f", "", "fuzzy filter on id, name and language")
	voicesCmd.AddCommand(voicesListCmd, voicesRefreshCmd, voicesUseCmd)
}

func voicesKind(settings tts.Settings) (tts.EngineKind, error) {
	name := voicesEngine
	if name == "" {
		name = settings.Engine
	}
	return tts.ParseEngineKind(name) //nolint:wrapcheck
}

// refreshVoices lists voices from a live cloud engine.
func refreshVoices(ctx context.Context, a *app, kind tts.EngineKind, rate int) ([]tts.Voice, error) {
	lister, err := a.factory.Lister(kind)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	defer lister.Cancel()
	if c, ok := lister.(io.Closer); ok {
		defer c.Close() //nolint:errcheck
	}

	creds, err := a.creds.Get(kind.String())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if err := lister.Initialize(ctx, tts.Voice{Origin: kind}, rate, creds); err != nil {
		return nil, err //nolint:wrapcheck
	}
	voices, err := lister.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch %s voices: %w", kind, err)
	}
	return voices, nil
}

func findVoice(voices []tts.Voice, id string) (tts.Voice, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.ID, id) {
			return v, true
		}
	}
	return tts.Voice{}, false
}

// voiceSource lets fuzzy search voices.
type voiceSource []tts.Voice

func (s voiceSource) String(i int) string {
	v := s[i]
	return v.ID + " " + v.DisplayName + " " + v.LanguageTag
}

func (s voiceSource) Len() int { return len(s) }

// filterVoices returns the voices matching query, best matches first.
func filterVoices(voices []tts.Voice, query string) []tts.Voice {
	if query == "" {
		return voices
	}
	matches := fuzzy.FindFrom(query, voiceSource(voices))
	filtered := make([]tts.Voice, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, voices[m.Index])
	}
	return filtered
}

// writeVoices prints voices as aligned columns, marking current with *.
func writeVoices(w io.Writer, voices []tts.Voice, current string) {
	idWidth := len("ID")
	for _, v := range voices {
		idWidth = max(idWidth, runewidth.StringWidth(v.ID))
	}

	fmt.Fprintf(w, "  %s  %s  %-8s %s\n",
		pad("ID", idWidth), pad("NAME", voiceNameWidth), "GENDER", "LANGUAGE")
	for _, v := range voices {
		mark := " "
		if current != "" && strings.EqualFold(v.ID, current) {
			mark = "*"
		}
		name := truncate.StringWithTail(v.DisplayName, voiceNameWidth, "…")
		fmt.Fprintf(w, "%s %s  %s  %-8s %s\n",
			mark, pad(v.ID, idWidth), pad(name, voiceNameWidth), v.Gender, v.LanguageTag)
	}
	fmt.Fprintln(w, faint(fmt.Sprintf("%d voices", len(voices))))
}

// pad right-pads s with spaces to width terminal cells.
func pad(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-runewidth.StringWidth(s)))
}
