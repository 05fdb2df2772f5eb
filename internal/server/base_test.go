package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/WaylonWalker/lsp-core/internal/logging"
	"github.com/WaylonWalker/lsp-core/internal/protocol"
	"github.com/WaylonWalker/lsp-core/internal/validator"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Options{
		Logger:         logging.New(discardWriter{}, logging.Off),
		QueueCapacity:  16,
		RequestWorkers: 1,
		WorkerWorkers:  1,
		Validator:      validator.NewLineLengthValidator(120),
		ServerName:     "lsp-core-test",
	})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestOpenThenEditUpdatesStoredDocument(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleDidOpen(nil, mustJSON(t, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:     "file:///a.f90",
			Version: 1,
			Text:    "a\nb\nc\n",
		},
	}))
	if err != nil {
		t.Fatalf("handleDidOpen: %v", err)
	}

	_, err = s.handleDidChange(nil, mustJSON(t, protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///a.f90"},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{
				Range: &protocol.Range{
					Start: protocol.Position{Line: 1, Character: 0},
					End:   protocol.Position{Line: 1, Character: 1},
				},
				Text: "BB",
			},
		},
	}))
	if err != nil {
		t.Fatalf("handleDidChange: %v", err)
	}

	doc, ok := s.Document("file:///a.f90")
	if !ok {
		t.Fatal("document not found")
	}
	if got := doc.Text(); got != "a\nBB\nc\n" {
		t.Fatalf("Text() = %q, want %q", got, "a\nBB\nc\n")
	}
	if doc.Version() != 2 {
		t.Fatalf("Version() = %d, want 2", doc.Version())
	}
}

func TestDidCloseRemovesDocument(t *testing.T) {
	s := newTestServer(t)
	s.handleDidOpen(nil, mustJSON(t, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///a.txt", Version: 1, Text: "x"},
	}))
	s.handleDidClose(nil, mustJSON(t, protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///a.txt"},
	}))
	if _, ok := s.Document("file:///a.txt"); ok {
		t.Fatal("document still present after didClose")
	}
}

func TestDidRenameFilesMovesDocument(t *testing.T) {
	s := newTestServer(t)
	s.handleDidOpen(nil, mustJSON(t, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///old.txt", Version: 1, Text: "x"},
	}))
	s.handleDidRenameFiles(nil, mustJSON(t, protocol.RenameFilesParams{
		Files: []protocol.FileRename{{OldURI: "file:///old.txt", NewURI: "file:///new.txt"}},
	}))
	if _, ok := s.Document("file:///old.txt"); ok {
		t.Fatal("old URI still present after rename")
	}
	if _, ok := s.Document("file:///new.txt"); !ok {
		t.Fatal("new URI not present after rename")
	}
}

func TestHandleInitializeReadsWorkspaceCapabilities(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleInitialize(nil, mustJSON(t, protocol.InitializeParams{
		Capabilities: protocol.ClientCapabilities{
			Workspace: protocol.WorkspaceClientCapabilities{
				DidChangeWatchedFiles:  protocol.FileWatchersClientCapabilities{DynamicRegistration: true},
				DidChangeConfiguration: protocol.DynamicRegistrationClientCapabilities{DynamicRegistration: true},
				Configuration:          true,
			},
		},
	}))
	if err != nil {
		t.Fatalf("handleInitialize: %v", err)
	}
	if !s.clientSupportsDidChangeConfig {
		t.Fatal("clientSupportsDidChangeConfig = false, want true")
	}
	if !s.clientSupportsWorkspaceConfig {
		t.Fatal("clientSupportsWorkspaceConfig = false, want true")
	}
	if s.needsFallbackWatch {
		t.Fatal("needsFallbackWatch = true despite client declaring dynamicRegistration")
	}
}

func TestHandleInitializeFlagsFallbackWatchWhenUnsupported(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleInitialize(nil, mustJSON(t, protocol.InitializeParams{}))
	if err != nil {
		t.Fatalf("handleInitialize: %v", err)
	}
	if !s.needsFallbackWatch {
		t.Fatal("needsFallbackWatch = false, want true when client omits dynamicRegistration")
	}
}

func TestDidChangeWatchedFilesRevalidatesMatchingOpenDocument(t *testing.T) {
	s := newTestServer(t)
	s.handleDidOpen(nil, mustJSON(t, protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///watched.f90", Version: 1, Text: "x"},
	}))

	_, err := s.handleDidChangeWatchedFiles(context.Background(), mustJSON(t, protocol.DidChangeWatchedFilesParams{
		Changes: []protocol.FileEvent{{URI: "file:///watched.f90", Type: protocol.FileChangeTypeChanged}},
	}))
	if err != nil {
		t.Fatalf("handleDidChangeWatchedFiles: %v", err)
	}

	// One publishDiagnostics from didOpen's validation, one from the
	// watched-file change's revalidation.
	for i := 0; i < 2; i++ {
		msg := drainResponse(t, s.Outgoing())
		if msg.Method != "textDocument/publishDiagnostics" {
			t.Fatalf("message %d: Method = %q, want textDocument/publishDiagnostics", i, msg.Method)
		}
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
