package textlocate

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtensions are the file patterns treated as markdown documents.
var MarkdownExtensions = []string{
	"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown",
}

// PlainText renders markdown as speakable text. Every heading, paragraph
// and list item becomes one line so Paragraph selects it. Code blocks,
// HTML and thematic breaks are dropped; link text and image alt text are
// kept. Headings and list items without terminal punctuation get a period
// so Sentence does not run them into the next block.
func PlainText(markdown string) string {
	reader := text.NewReader([]byte(markdown))
	doc := goldmark.New().Parser().Parse(reader)

	w := &walker{source: reader.Source()}
	w.block(doc)
	return strings.Join(w.lines, "\n")
}

type walker struct {
	source []byte
	lines  []string
}

func (w *walker) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		return
	case *ast.Heading:
		w.add(terminate(w.inline(n)))
		return
	case *ast.Paragraph, *ast.TextBlock:
		line := w.inline(n)
		if _, inItem := n.Parent().(*ast.ListItem); inItem {
			line = terminate(line)
		}
		w.add(line)
		return
	}
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c)
	}
}

func (w *walker) add(line string) {
	if line != "" {
		w.lines = append(w.lines, line)
	}
}

func (w *walker) inline(node ast.Node) string {
	var buf strings.Builder
	w.writeInline(node, &buf)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func (w *walker) writeInline(node ast.Node, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(w.source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		case *ast.AutoLink:
			buf.Write(n.Label(w.source))
		case *ast.RawHTML:
			continue
		default:
			w.writeInline(c, buf)
		}
	}
}

func terminate(line string) string {
	if line == "" {
		return ""
	}
	last := []rune(line)
	if unicode.IsPunct(last[len(last)-1]) {
		return line
	}
	return line + "."
}
