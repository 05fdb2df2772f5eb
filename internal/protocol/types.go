package protocol

import "encoding/json"

// Position is a zero-based (line, character) coordinate, where character
// counts UTF-16 code units by default per spec.md §3/§6.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a start/end Position pair.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location identifies a range within a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier adds a version to TextDocumentIdentifier.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem is the full payload of an opened document.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextEdit is a single replacement within a document.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// MarkupContent is plain text or markdown content.
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Diagnostic severities, per spec.md §6's Validator contract (which uses
// 1-based positions the core subtracts 1 from before emitting these).
const (
	DiagnosticSeverityError       = 1
	DiagnosticSeverityWarning     = 2
	DiagnosticSeverityInformation = 3
	DiagnosticSeverityHint        = 4
)

// Diagnostic is a single issue reported against a range of a document.
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity,omitempty"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
	Code     any    `json:"code,omitempty"`
}

// PublishDiagnosticsParams is the payload of the server->client
// textDocument/publishDiagnostics notification.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// WorkspaceFolder is a single root folder the client has open.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// FileWatchersClientCapabilities reports whether the client supports
// dynamic registration of file-system watchers; when false, this host
// falls back to internal/watch (SPEC_FULL.md §11.1).
type FileWatchersClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// DynamicRegistrationClientCapabilities is the common shape of a
// workspace capability that only carries a dynamicRegistration flag.
type DynamicRegistrationClientCapabilities struct {
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// WorkspaceClientCapabilities is the subset of workspace capabilities this
// core inspects.
type WorkspaceClientCapabilities struct {
	DidChangeWatchedFiles  FileWatchersClientCapabilities        `json:"didChangeWatchedFiles,omitempty"`
	DidChangeConfiguration DynamicRegistrationClientCapabilities `json:"didChangeConfiguration,omitempty"`
	Configuration          bool                                  `json:"configuration,omitempty"`
}

// GeneralClientCapabilities carries the negotiated position encodings,
// per spec.md §6.
type GeneralClientCapabilities struct {
	PositionEncodings []string `json:"positionEncodings,omitempty"`
}

// ClientCapabilities is the subset of the client's declared capabilities
// this core reads.
type ClientCapabilities struct {
	Workspace WorkspaceClientCapabilities `json:"workspace,omitempty"`
	General   GeneralClientCapabilities   `json:"general,omitempty"`
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProcessID        *int               `json:"processId,omitempty"`
	RootURI          *string            `json:"rootUri,omitempty"`
	RootPath         *string            `json:"rootPath,omitempty"`
	Capabilities     ClientCapabilities `json:"capabilities"`
	Trace            string             `json:"trace,omitempty"`
	WorkspaceFolders []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// InitializeResult is the payload returned from a successful initialize.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerInfo names and versions this server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// TextDocumentSyncKind constants, per spec.md §8 scenario 1.
const (
	TextDocumentSyncKindNone        = 0
	TextDocumentSyncKindFull        = 1
	TextDocumentSyncKindIncremental = 2
)

// SaveOptions controls whether didSave carries document text.
type SaveOptions struct {
	IncludeText bool `json:"includeText"`
}

// TextDocumentSyncOptions advertises document synchronization support.
type TextDocumentSyncOptions struct {
	OpenClose bool        `json:"openClose"`
	Change    int         `json:"change"`
	Save      SaveOptions `json:"save"`
}

// ServerCapabilities is the subset of server capabilities this core
// advertises on initialize.
type ServerCapabilities struct {
	TextDocumentSync TextDocumentSyncOptions `json:"textDocumentSync"`
	PositionEncoding string                  `json:"positionEncoding,omitempty"`
}

// DidOpenTextDocumentParams is the payload of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentContentChangeEvent is either incremental (Range set) or
// whole-document (Range nil), per spec.md §3.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// DidChangeTextDocumentParams is the payload of textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams is the payload of textDocument/didClose.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveTextDocumentParams is the payload of textDocument/didSave.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

// WillSaveTextDocumentParams is the payload of textDocument/willSave.
type WillSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Reason       int                    `json:"reason,omitempty"`
}

// FileChangeType constants for FileEvent.Type.
const (
	FileChangeTypeCreated = 1
	FileChangeTypeChanged = 2
	FileChangeTypeDeleted = 3
)

// FileEvent describes a single filesystem change.
type FileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"`
}

// DidChangeWatchedFilesParams is the payload of
// workspace/didChangeWatchedFiles, whether client- or internal/watch-sourced.
type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// DidChangeConfigurationParams is the payload of
// workspace/didChangeConfiguration.
type DidChangeConfigurationParams struct {
	Settings any `json:"settings"`
}

// FileRename describes a single rename in didRenameFiles.
type FileRename struct {
	OldURI string `json:"oldUri"`
	NewURI string `json:"newUri"`
}

// RenameFilesParams is the payload of workspace/didRenameFiles.
type RenameFilesParams struct {
	Files []FileRename `json:"files"`
}

// ConfigurationItem identifies one configuration section a server asks
// the client for via workspace/configuration.
type ConfigurationItem struct {
	ScopeURI string `json:"scopeUri,omitempty"`
	Section  string `json:"section,omitempty"`
}

// ConfigurationParams is the payload of the server-initiated
// workspace/configuration request (spec.md §8 scenario 6).
type ConfigurationParams struct {
	Items []ConfigurationItem `json:"items"`
}

// CancelParams is the payload of $/cancelRequest.
type CancelParams struct {
	ID json.RawMessage `json:"id"`
}

// SetTraceParams is the payload of $/setTrace.
type SetTraceParams struct {
	Value string `json:"value"`
}

// LogTraceParams is the payload of the server->client $/logTrace
// notification.
type LogTraceParams struct {
	Message string `json:"message"`
	Verbose string `json:"verbose,omitempty"`
}
