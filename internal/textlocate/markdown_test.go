package textlocate

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "heading and paragraph",
			markdown: "# Title\n\nSome *emphasis* and **strong** text.\n",
			want:     "Title.\nSome emphasis and strong text.",
		},
		{
			name:     "soft breaks join a paragraph",
			markdown: "first line\nsecond line\n",
			want:     "first line second line",
		},
		{
			name:     "code blocks are dropped",
			markdown: "Before.\n\n```go\nfmt.Println(1)\n```\n\n    indented code\n\nAfter.\n",
			want:     "Before.\nAfter.",
		},
		{
			name:     "inline code keeps its text",
			markdown: "Run `make test` now.\n",
			want:     "Run make test now.",
		},
		{
			name:     "links and images",
			markdown: "See [the docs](https://example.com) and ![a cat](cat.png).\n",
			want:     "See the docs and a cat.",
		},
		{
			name:     "autolink",
			markdown: "Visit <https://example.com> today.\n",
			want:     "Visit https://example.com today.",
		},
		{
			name:     "list items",
			markdown: "- one\n- two!\n- three\n",
			want:     "one.\ntwo!\nthree.",
		},
		{
			name:     "blockquote",
			markdown: "> quoted words\n",
			want:     "quoted words",
		},
		{
			name:     "html and rules",
			markdown: "<div>hidden</div>\n\n---\n\nVisible <b>bold</b> text.\n",
			want:     "Visible bold text.",
		},
		{
			name:     "empty",
			markdown: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.markdown); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlainTextParagraphs(t *testing.T) {
	plain := PlainText("# Intro\n\nHello there. General Kenobi.\n\nSecond paragraph.\n")

	if got := Paragraph(plain, 10); got != "Hello there. General Kenobi." {
		t.Errorf("Paragraph() = %q", got)
	}
	if got := Sentence(plain, 22); got != "General Kenobi" {
		t.Errorf("Sentence() = %q", got)
	}
}
