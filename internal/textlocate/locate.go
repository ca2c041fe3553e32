// Package textlocate extracts the unit of text around a cursor position.
//
// All offsets are rune offsets. Every function is total: the cursor is
// clamped to [0, len(text)] and empty text yields an empty string.
package textlocate

import (
	"fmt"
	"strings"
)

// Unit is the granularity of text to extract.
type Unit int

const (
	// UnitAll selects the whole document.
	UnitAll Unit = iota
	// UnitWord selects the word under the cursor.
	UnitWord
	// UnitSentence selects the sentence under the cursor.
	UnitSentence
	// UnitParagraph selects the paragraph under the cursor.
	UnitParagraph
)

// String returns the string representation of the unit.
func (u Unit) String() string {
	switch u {
	case UnitAll:
		return "all"
	case UnitWord:
		return "word"
	case UnitSentence:
		return "sentence"
	case UnitParagraph:
		return "paragraph"
	default:
		return "unknown"
	}
}

// ParseUnit parses a unit name as accepted on the command line.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "document":
		return UnitAll, nil
	case "word":
		return UnitWord, nil
	case "sentence":
		return UnitSentence, nil
	case "paragraph":
		return UnitParagraph, nil
	default:
		return UnitAll, fmt.Errorf("unknown unit %q: use word, sentence, paragraph or all", s)
	}
}

// Extract returns the text for unit u around cursor.
func Extract(u Unit, text string, cursor int) string {
	switch u {
	case UnitWord:
		return Word(text, cursor)
	case UnitSentence:
		return Sentence(text, cursor)
	case UnitParagraph:
		return Paragraph(text, cursor)
	default:
		return All(text)
	}
}

func isWordSeparator(r rune) bool {
	switch r {
	case ' ', ',', '.', ';', ':', '\n':
		return true
	}
	return false
}

func clamp(cursor, n int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > n {
		return n
	}
	return cursor
}

// Word returns the maximal run of non-separator characters containing the
// cursor. When the cursor sits on a separator, or at the end of the text,
// the word immediately preceding it is returned.
func Word(text string, cursor int) string {
	runes := []rune(text)
	pos := clamp(cursor, len(runes))

	if pos == len(runes) || isWordSeparator(runes[pos]) {
		// step back over the separator run to the end of the previous word
		for pos > 0 && isWordSeparator(runes[pos-1]) {
			pos--
		}
		if pos == 0 {
			return ""
		}
		pos--
	}

	start := pos
	for start > 0 && !isWordSeparator(runes[start-1]) {
		start--
	}
	end := pos
	for end < len(runes) && !isWordSeparator(runes[end]) {
		end++
	}
	return string(runes[start:end])
}

// Sentence returns the text between the last period at or before the cursor
// and the first period after it, trimmed of surrounding whitespace.
func Sentence(text string, cursor int) string {
	return between(text, cursor, '.')
}

// Paragraph returns the line containing the cursor, trimmed of surrounding
// whitespace.
func Paragraph(text string, cursor int) string {
	return between(text, cursor, '\n')
}

// All returns the text unchanged.
func All(text string) string {
	return text
}

func between(text string, cursor int, boundary rune) string {
	runes := []rune(text)
	pos := clamp(cursor, len(runes))

	start := 0
	for i := min(pos, len(runes)-1); i >= 0; i-- {
		if runes[i] == boundary {
			start = i + 1
			break
		}
	}

	end := len(runes)
	for i := pos + 1; i < len(runes); i++ {
		if runes[i] == boundary {
			end = i
			break
		}
	}

	if start >= end {
		return ""
	}
	return strings.TrimSpace(string(runes[start:end]))
}
