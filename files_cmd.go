package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/textlocate"
)

var (
	filesAll bool

	filesCmd = &cobra.Command{
		Use:   "files [DIR]",
		Short: "List markdown documents that can be spoken",
		Long: paragraph(fmt.Sprintf("\n%s markdown documents under a directory, honoring .gitignore "+
			"unless --all is given. Pass one to %s to hear it.", keyword("Find"), keyword("readaloud"))),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cwd, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("unable to get absolute path: %w", err)
			}
			log.Debug("local directory is", "cwd", cwd)

			// Switch between FindFiles and FindAllFiles to bypass .gitignore rules
			var ch chan gitcha.SearchResult
			if filesAll {
				ch, err = gitcha.FindAllFilesExcept(cwd, textlocate.MarkdownExtensions, nil)
			} else {
				ch, err = gitcha.FindFilesExcept(cwd, textlocate.MarkdownExtensions, nil)
			}
			if err != nil {
				return fmt.Errorf("error finding local files: %w", err)
			}

			var found []gitcha.SearchResult
			for res := range ch {
				found = append(found, res)
			}
			writeFiles(cmd.OutOrStdout(), cwd, found)
			return nil
		},
	}
)

func init() {
	filesCmd.Flags().BoolVarP(&filesAll, "all", "a", false, "include hidden and ignored files")
}

func writeFiles(w io.Writer, cwd string, found []gitcha.SearchResult) {
	sort.Slice(found, func(i, j int) bool {
		return found[i].Info.ModTime().After(found[j].Info.ModTime())
	})
	for _, res := range found {
		fmt.Fprintf(w, "%s  %s\n", stripAbsolutePath(res.Path, cwd), faint(humanize.Time(res.Info.ModTime())))
	}
	if len(found) == 0 {
		fmt.Fprintln(w, faint("no markdown files found"))
	}
}

func stripAbsolutePath(fullPath, cwd string) string {
	fp, _ := filepath.EvalSymlinks(fullPath)
	cp, _ := filepath.EvalSymlinks(cwd)
	return strings.ReplaceAll(fp, cp+string(os.PathSeparator), "")
}
