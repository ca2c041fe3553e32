package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
)

var (
	enginesVerbose bool

	enginesCmd = &cobra.Command{
		Use:   "engines",
		Short: "Check which engines are ready to use",
		Long: paragraph(fmt.Sprintf("\n%s for a speech synthesizer and for the credentials of every cloud engine. "+
			"No requests are made.", keyword("Look"))),
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

			var results []*engines.Availability
			for _, kind := range allEngines() {
				creds, err := a.creds.Get(kind.String())
				if err != nil {
					return err //nolint:wrapcheck
				}
				results = append(results, engines.Check(kind, creds, a.runner))
			}
			writeAvailability(cmd.OutOrStdout(), results, settings.Engine, enginesVerbose)
			return nil
		},
	}
)

func init() {
	enginesCmd.Flags().BoolVar(&enginesVerbose, "verbose", false, "show setup instructions for unavailable engines")
}

func allEngines() []tts.EngineKind {
	return []tts.EngineKind{
		tts.System,
		tts.Cloud(tts.ProviderGoogle),
		tts.Cloud(tts.ProviderEdge),
		tts.Cloud(tts.ProviderTencent),
		tts.Cloud(tts.ProviderElevenLabs),
	}
}

func writeAvailability(w io.Writer, results []*engines.Availability, current string, verbose bool) {
	for _, r := range results {
		mark := okMark
		if !r.Available {
			mark = errorMark
		}
		name := r.Engine.String()
		if name == current {
			name = keyword(name + " (current)")
		}
		fmt.Fprintf(w, "%s %s\n", mark, name)

		keys := make([]string, 0, len(r.Details))
		for k := range r.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %s %s\n", faint(k+":"), r.Details[k])
		}
		if r.Error != nil {
			fmt.Fprintf(w, "    %s\n", r.Error)
		}
		if verbose && r.Guidance != "" {
			fmt.Fprintln(w, indent.String(strings.TrimRight(r.Guidance, "\n"), 4))
		}
	}
}
