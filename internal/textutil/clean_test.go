package textutil

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "this is **important** text", "this is important text"},
		{"italic", "this is *subtle* text", "this is subtle text"},
		{"inline code", "run `go build` now", "run go build now"},
		{"fenced block dropped", "before\n```go\nfunc main() {}\n```\nafter", "before\n\nafter"},
		{"heading", "## Title\nbody", "Title\nbody"},
		{"bullets", "* first\n- second", "first\nsecond"},
		{"html tags", "hello <b>world</b>", "hello world"},
		{"newline runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"trimmed", "  padded  ", "padded"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Clean(tt.in); got != tt.want {
				t.Fatalf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplit_ShortTextIsSinglePart(t *testing.T) {
	t.Parallel()

	parts := Split("hello", 4096)
	if len(parts) != 1 || parts[0] != "hello" {
		t.Fatalf("parts = %q", parts)
	}
}

func TestSplit_PrefersLineBoundaries(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 60) + "\n" + strings.Repeat("y", 60)
	parts := Split(text, 100)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[0] != strings.Repeat("x", 60) {
		t.Fatalf("first part = %q", parts[0])
	}
}

func TestSplit_HardSplitsOversizedLines(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("z", 250)
	parts := Split(text, 100)
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	for i, part := range parts {
		if len(part) > 100 {
			t.Fatalf("part %d has length %d, over the limit", i, len(part))
		}
	}
	if strings.Join(parts, "") != text {
		t.Fatal("hard split lost content")
	}
}

func TestSplit_NoPartExceedsLimit(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("w", 80))
	}
	for _, part := range Split(strings.Join(lines, "\n"), 4096) {
		if len(part) > 4096 {
			t.Fatalf("part length %d exceeds limit", len(part))
		}
	}
}
