// Package document implements TextDocument, the in-memory representation
// of one open file plus the incremental-edit algebra LSP's
// textDocument/didChange applies against it.
//
// Grounded directly on
// _examples/original_source/src/lsp/text_document.{h,cpp}: the sort-by-
// start-offset, decompose-then-fold algorithm is carried over verbatim in
// spirit, re-expressed without the reentrant mutex C++ needed (Go's
// TextDocument never calls back into itself while locked, so a plain
// sync.Mutex suffices — DESIGN.md notes this simplification).
//
// Unlike the original, which indexes and folds by byte offset, this core
// honors spec.md §6's UTF-16 code-unit position encoding: Position.Character
// is interpreted as a UTF-16 offset within its line and translated to a
// byte offset via unicode/utf16 and unicode/utf8 (stdlib; no third-party
// library in the pack offers LSP-aware UTF-16 translation — see DESIGN.md's
// note on golang.org/x/text).
package document

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/WaylonWalker/lsp-core/internal/protocol"
)

// TextDocument is one open file: its URI, language, version, and text,
// plus a line-start byte index rebuilt on every change.
type TextDocument struct {
	mu sync.Mutex

	uri        string
	path       string
	languageID string
	version    int
	text       string

	// lineStarts[i] is the byte offset of the first byte of line i.
	// lineStarts[0] is always 0.
	lineStarts []int
}

// New constructs a TextDocument and indexes its initial text.
func New(uri, languageID string, version int, text string) *TextDocument {
	d := &TextDocument{
		uri:        uri,
		languageID: languageID,
		version:    version,
		text:       text,
		path:       resolvePath(uri),
	}
	d.indexLines()
	return d
}

// resolvePath strips a "file://" or "file:" prefix and canonicalizes the
// remaining path. The original calls fs::canonical, which fails for
// documents that have never been saved to disk; this core falls back to
// filepath.Clean in that case rather than erroring out of document
// construction (SPEC_FULL.md §12.3).
func resolvePath(uri string) string {
	return ResolveURIPath(uri)
}

// ResolveURIPath strips a file:// (or file:) scheme from uri and returns
// an absolute filesystem path with symlinks resolved, or the cleaned
// absolute path when the file does not exist on disk. Non-file URIs and
// plain paths are treated the same way.
func ResolveURIPath(uri string) string {
	p := uri
	for _, prefix := range []string{"file://", "file:"} {
		if strings.HasPrefix(strings.ToLower(p), prefix) {
			p = p[len(prefix):]
			break
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		if canonical, err := filepath.EvalSymlinks(abs); err == nil {
			return canonical
		}
		return filepath.Clean(abs)
	}
	return filepath.Clean(p)
}

// URI returns the document's URI.
func (d *TextDocument) URI() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uri
}

// Path returns the document's resolved filesystem path.
func (d *TextDocument) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// LanguageID returns the document's declared language identifier.
func (d *TextDocument) LanguageID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.languageID
}

// Version returns the document's current version.
func (d *TextDocument) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Text returns the document's current full text.
func (d *TextDocument) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// SetText replaces the document's text wholesale and reindexes lines,
// without touching its version.
func (d *TextDocument) SetText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
	d.indexLines()
}

// indexLines rebuilds lineStarts from the current text. A line starts
// after every '\n', and after a lone '\r' not immediately followed by
// '\n' — matching the original's \r\n / \r / \n fallthrough.
func (d *TextDocument) indexLines() {
	starts := make([]int, 1, 16)
	starts[0] = 0
	text := d.text
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	d.lineStarts = starts
}

// Apply folds a batch of content-change events into the document's text
// and advances its version, per spec.md §4.3's edit algebra:
//  1. sort changes by start offset ascending
//  2. for each change in order, copy the untouched gap since the previous
//     change's end, then splice in the change's replacement text
//  3. copy whatever remains after the last change
//
// A whole-document change (Range == nil) is decomposed to [0, len(text))
// with the event's text as the patch, matching
// TextDocumentContentChangeEvent_1 in the original.
func (d *TextDocument) Apply(changes []protocol.TextDocumentContentChangeEvent, version int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	type span struct {
		start, end int
		patch      string
	}
	spans := make([]span, len(changes))
	for i, change := range changes {
		start, end, err := d.decompose(change)
		if err != nil {
			return err
		}
		spans[i] = span{start: start, end: end, patch: change.Text}
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})

	var out strings.Builder
	out.Grow(len(d.text))
	i := 0
	for _, sp := range spans {
		if i < len(d.text) && sp.start > i {
			out.WriteString(d.text[i:sp.start])
		}
		out.WriteString(sp.patch)
		i = sp.end
	}
	if i < len(d.text) {
		out.WriteString(d.text[i:])
	}

	d.text = out.String()
	d.version = version
	d.indexLines()
	return nil
}

// decompose computes the [start, end) byte span a single content-change
// event replaces, and returns the patch text. A nil Range is a
// whole-document change spanning the entire current text.
func (d *TextDocument) decompose(change protocol.TextDocumentContentChangeEvent) (start, end int, err error) {
	if change.Range == nil {
		return 0, len(d.text), nil
	}

	r := *change.Range
	if r.Start.Line > r.End.Line {
		return 0, 0, protocol.InvalidParams("start.line must be <= end.line, but %d > %d", r.Start.Line, r.End.Line)
	}
	if r.Start.Line == r.End.Line && r.Start.Character > r.End.Character {
		return 0, 0, protocol.InvalidParams("start.character must be <= end.character when colinear, but %d > %d", r.Start.Character, r.End.Character)
	}

	start, err = d.byteOffset(r.Start)
	if err != nil {
		return 0, 0, err
	}

	// spec.md §4.4 step 2 treats the two endpoints asymmetrically: an
	// out-of-range start.line is rejected, but an out-of-range end.line
	// clips to start + len(patch) instead of erroring, matching
	// _examples/original_source/src/lsp/text_document.cpp's decompose
	// ("if (end.line < lineIndices.size()) {...} else { k = j +
	// event.text.length(); }").
	lastLine := len(d.lineStarts) - 1
	if r.End.Line > lastLine+1 {
		return start, start + len(change.Text), nil
	}

	end, err = d.byteOffset(r.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// byteOffset translates a zero-based (line, UTF-16 character) Position
// into a byte offset within the document's current text. A line equal to
// one past the last indexed line is accepted and maps to the document's
// end, matching the original's boundary allowance for an append at EOF.
func (d *TextDocument) byteOffset(pos protocol.Position) (int, error) {
	lastLine := len(d.lineStarts) - 1
	if pos.Line > lastLine {
		if pos.Line == lastLine+1 {
			return len(d.text), nil
		}
		return 0, protocol.InvalidParams("line must be <= %d but was %d", lastLine+1, pos.Line)
	}

	lineStart := d.lineStarts[pos.Line]
	lineEnd := len(d.text)
	if pos.Line < lastLine {
		lineEnd = d.lineStarts[pos.Line+1]
	}
	line := d.text[lineStart:lineEnd]

	offset, err := utf16OffsetToByteOffset(line, pos.Character)
	if err != nil {
		return 0, fmt.Errorf("line %d: %w", pos.Line, err)
	}
	return lineStart + offset, nil
}

// utf16OffsetToByteOffset walks line decoding UTF-8 runes, counting the
// UTF-16 code units each rune would occupy, until units UTF-16 code units
// have been consumed, returning the corresponding byte offset. A
// character count past the line's own content (e.g. pointing at its line
// terminator) clamps to the line's byte length rather than erroring,
// since clients commonly report a position one past the last visible
// character on a line.
func utf16OffsetToByteOffset(line string, units int) (int, error) {
	if units <= 0 {
		return 0, nil
	}
	consumed := 0
	byteOffset := 0
	for _, r := range line {
		if consumed >= units {
			return byteOffset, nil
		}
		width := 1
		if r > 0xFFFF {
			width = len(utf16.Encode([]rune{r}))
		}
		consumed += width
		byteOffset += utf8.RuneLen(r)
	}
	return byteOffset, nil
}
