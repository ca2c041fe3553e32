package engines

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// word is one whitespace-delimited token with its rune offsets.
type word struct {
	Text  string
	Start int
	End   int
}

func splitWords(text string) []word {
	runes := []rune(text)
	var words []word
	start := -1
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, word{Text: string(runes[start:i]), Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{Text: string(runes[start:]), Start: start, End: len(runes)})
	}
	return words
}

// boundary is a word reported by a provider without text offsets.
type boundary struct {
	Text string
	At   time.Duration
}

// alignBoundaries locates each reported word in text, searching forward
// from the end of the previous match and ignoring case. Words that cannot
// be found are skipped.
func alignBoundaries(text string, boundaries []boundary) []tts.WordTiming {
	haystack := foldRunes([]rune(text))

	var timings []tts.WordTiming
	cursor := 0
	for _, b := range boundaries {
		needle := foldRunes([]rune(strings.TrimSpace(b.Text)))
		if len(needle) == 0 {
			continue
		}
		at := indexRunes(haystack, needle, cursor)
		if at < 0 {
			continue
		}
		timings = append(timings, tts.WordTiming{Start: at, End: at + len(needle), At: b.At})
		cursor = at + len(needle)
	}
	return timings
}

func foldRunes(runes []rune) []rune {
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = unicode.ToLower(r)
	}
	return folded
}

func indexRunes(haystack, needle []rune, from int) int {
outer:
	for i := from; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

// chunkText splits text into pieces of at most limit bytes, breaking
// after any whitespace. A run longer than limit is cut at rune boundaries.
func chunkText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, piece := range splitAfterSpace(text) {
		for len(piece) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			cut := limit
			for cut > 0 && !utf8.RuneStart(piece[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(piece)
			}
			chunks = append(chunks, piece[:cut])
			piece = piece[cut:]
		}
		if current.Len() > 0 && current.Len()+len(piece) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitAfterSpace splits text into words, each keeping the whitespace
// that follows it.
func splitAfterSpace(text string) []string {
	var pieces []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inSpace && !space {
			pieces = append(pieces, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}
