// Package transport frames JSON-RPC messages onto an io.Reader/io.Writer
// pair using LSP's Content-Length header convention, and optionally an
// interactive line-oriented variant for a human typing at a terminal.
//
// The bufio-based framing is grounded on
// _examples/WaylonWalker-markata-go/pkg/lsp/server.go's readMessage /
// writeMessage; the state names and the interactive escape grammar are
// grounded on _examples/original_source/src/lsp/lsp_request_parser.{h,cpp}
// and request_parser.{h,cpp} (resolved per SPEC_FULL.md §13.3).
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ErrClosed is returned by ReadMessage once the underlying stream has hit EOF.
var ErrClosed = errors.New("transport: stream closed")

// MessageStream reads framed JSON-RPC message bodies from an underlying
// reader and writes framed bodies to an underlying writer. A single
// instance is safe for one reader goroutine and any number of writer
// goroutines (writes are serialized internally).
type MessageStream struct {
	in  *bufio.Reader
	out io.Writer

	wmu sync.Mutex

	interactive bool
}

// New wraps r/w for header-framed communication. interactive selects the
// terminal-friendly body-entry mode used when stdin is a tty (spec.md
// §4.3): callers typically decide this with IsInteractive(fd).
func New(r io.Reader, w io.Writer, interactive bool) *MessageStream {
	return &MessageStream{
		in:          bufio.NewReader(r),
		out:         w,
		interactive: interactive,
	}
}

// IsInteractive reports whether fd refers to a terminal, the same test
// _examples/yunhoi129-moai-adk uses before switching its own I/O mode.
func IsInteractive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ReadMessage reads one framed message body, returning the raw JSON bytes.
// It dispatches to the interactive reader when the stream was constructed
// with interactive=true, else to the Content-Length header reader.
func (s *MessageStream) ReadMessage() ([]byte, error) {
	if s.interactive {
		return s.readInteractive()
	}
	return s.readFramed()
}

// readFramed implements the PARSING_HEADER_NAME / PARSING_HEADER_VALUE /
// PARSING_NEWLINE / PARSING_BODY state progression of the original
// request parser, collapsed onto bufio.Reader.ReadString since Go's
// buffered reader already gives us line-at-a-time headers.
func (s *MessageStream) readFramed() ([]byte, error) {
	contentLength := -1
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" {
				return nil, ErrClosed
			}
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("transport: reading header: %w", err)
			}
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		// Header names are matched case-insensitively; unlike the original
		// C++ parser, which uppercases the accumulated name with toupper,
		// this core never mutates the header's case (SPEC_FULL.md §12.4).
		if strings.EqualFold(name, "Content-Length") {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("transport: invalid Content-Length %q: %w", value, err)
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, errors.New("transport: missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.in, body); err != nil {
		return nil, fmt.Errorf("transport: reading body: %w", err)
	}
	return body, nil
}

// readInteractive implements the interactive body-entry mode: a human
// types JSON followed by a literal "\n" two-character sequence (not a
// newline byte) to terminate the body. No headers are read. Newline bytes
// are kept in the body. The escapes \r, \t, \\ and \" are decoded wherever
// they appear, inside or outside JSON string literals; \n decodes to a
// newline only as the body's first characters, since anywhere later it
// ends the body. Any other backslash pair is kept verbatim.
func (s *MessageStream) readInteractive() ([]byte, error) {
	var body []byte
	escaped := false
	for {
		c, err := s.in.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(body) == 0 {
					return nil, ErrClosed
				}
				return body, nil
			}
			return nil, fmt.Errorf("transport: reading interactive body: %w", err)
		}

		if escaped {
			escaped = false
			switch c {
			case 'n':
				body = append(body, '\n')
				continue
			case 'r':
				body = append(body, '\r')
				continue
			case 't':
				body = append(body, '\t')
				continue
			case '\\':
				body = append(body, '\\')
				continue
			case '"':
				body = append(body, '"')
				continue
			default:
				body = append(body, '\\', c)
				continue
			}
		}

		if c == '\\' {
			// Peek for the two-character terminator "\n" (backslash
			// followed by the literal letter n) before committing to an
			// escape sequence.
			next, err := s.in.Peek(1)
			if err == nil && len(next) == 1 && next[0] == 'n' && len(body) > 0 {
				// A bare backslash-n only terminates the body when it
				// isn't itself an escape the caller intended to embed in a
				// string; since valid JSON never has a raw backslash
				// followed directly by content outside a string escape
				// context at the top level, treat this as the terminator.
				s.in.Discard(1)
				return body, nil
			}
			escaped = true
			continue
		}

		body = append(body, c)
	}
}

// WriteMessage frames and writes a single message body.
func (s *MessageStream) WriteMessage(body []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := io.WriteString(s.out, header); err != nil {
		return fmt.Errorf("transport: writing header: %w", err)
	}
	if _, err := s.out.Write(body); err != nil {
		return fmt.Errorf("transport: writing body: %w", err)
	}
	return nil
}
