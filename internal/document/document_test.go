package document

import (
	"testing"

	"github.com/WaylonWalker/lsp-core/internal/protocol"
)

func rangeAt(startLine, startChar, endLine, endChar int) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: startLine, Character: startChar},
		End:   protocol.Position{Line: endLine, Character: endChar},
	}
}

func TestNewIndexesLines(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "one\ntwo\nthree")
	if got := d.Text(); got != "one\ntwo\nthree" {
		t.Fatalf("Text() = %q", got)
	}
	if d.Version() != 1 {
		t.Fatalf("Version() = %d", d.Version())
	}
}

func TestApplyIncrementalSingleEdit(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "hello world")
	err := d.Apply([]protocol.TextDocumentContentChangeEvent{
		{Range: rangeAt(0, 6, 0, 11), Text: "there"},
	}, 2)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := d.Text(); got != "hello there" {
		t.Fatalf("Text() = %q", got)
	}
	if d.Version() != 2 {
		t.Fatalf("Version() = %d", d.Version())
	}
}

func TestApplyMultipleEditsSortedByStart(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "abcdef")
	// Supplied out of order; Apply must sort by start offset before folding.
	err := d.Apply([]protocol.TextDocumentContentChangeEvent{
		{Range: rangeAt(0, 4, 0, 6), Text: "Z"},
		{Range: rangeAt(0, 0, 0, 2), Text: "X"},
	}, 2)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := d.Text(); got != "XcdZ" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestApplyWholeDocumentChange(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "old content")
	err := d.Apply([]protocol.TextDocumentContentChangeEvent{
		{Text: "new content"},
	}, 2)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := d.Text(); got != "new content" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestApplyMultiLineRange(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "line1\nline2\nline3")
	err := d.Apply([]protocol.TextDocumentContentChangeEvent{
		{Range: rangeAt(0, 5, 1, 5), Text: "-X-"},
	}, 2)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := d.Text(); got != "line1-X-\nline3" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestApplyRejectsInvertedRange(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "abc\ndef")
	err := d.Apply([]protocol.TextDocumentContentChangeEvent{
		{Range: rangeAt(1, 0, 0, 0), Text: "x"},
	}, 2)
	if err == nil {
		t.Fatal("expected error for start.line > end.line")
	}
}

func TestApplyRejectsInvertedColinearCharacters(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "abcdef")
	err := d.Apply([]protocol.TextDocumentContentChangeEvent{
		{Range: rangeAt(0, 4, 0, 1), Text: "x"},
	}, 2)
	if err == nil {
		t.Fatal("expected error for start.character > end.character when colinear")
	}
}

func TestApplyUTF16SurrogatePositions(t *testing.T) {
	// A single emoji occupies one rune but two UTF-16 code units.
	d := New("file:///tmp/a.txt", "plaintext", 1, "a\U0001F600b")
	err := d.Apply([]protocol.TextDocumentContentChangeEvent{
		{Range: rangeAt(0, 3, 0, 4), Text: "X"},
	}, 2)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := d.Text(); got != "a\U0001F600X" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestResolvePathStripsFileScheme(t *testing.T) {
	d := New("file:///tmp/a.txt", "plaintext", 1, "x")
	if got := d.Path(); got != "/tmp/a.txt" {
		t.Fatalf("Path() = %q", got)
	}
}
