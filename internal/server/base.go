package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/WaylonWalker/lsp-core/internal/document"
	"github.com/WaylonWalker/lsp-core/internal/logging"
	"github.com/WaylonWalker/lsp-core/internal/pool"
	"github.com/WaylonWalker/lsp-core/internal/protocol"
	"github.com/WaylonWalker/lsp-core/internal/queue"
	"github.com/WaylonWalker/lsp-core/internal/validator"
	"github.com/WaylonWalker/lsp-core/internal/watch"
)

// Server is the base lifecycle specialization: a Dispatcher plus an owned
// URI->TextDocument map, a URI->config cache, and the handlers for the
// document/workspace notifications every language server needs
// regardless of language.
//
// Grounded on
// _examples/original_source/src/lsp/base_lsp_language_server.{h,cpp}
// (documentsByUri/configsByUri under independent shared_mutex locks, and
// the didOpen/didChange/didClose/didRenameFiles/didChangeConfiguration
// bodies) combined with
// _examples/WaylonWalker-markata-go/pkg/lsp/server.go's Server shape
// (owned MessageQueues, named worker pools, a diagnostics publish path).
type Server struct {
	logger *logging.Logger

	Dispatcher *Dispatcher

	incoming *queue.MessageQueue
	outgoing *queue.MessageQueue

	requestPool *pool.ThreadPool
	workerPool  *pool.ThreadPool

	docsMu  sync.RWMutex
	docs    map[string]*document.TextDocument
	cfgMu   sync.RWMutex
	configs map[string]json.RawMessage

	validator validator.Validator

	clientSupportsDidChangeConfig bool
	clientSupportsWorkspaceConfig bool

	needsFallbackWatch bool
	workspaceRoot      string
	fallbackWatcher    *watch.Watcher

	serverName    string
	serverVersion string
}

// Options configures a new Server.
type Options struct {
	Logger         *logging.Logger
	QueueCapacity  int
	RequestWorkers int
	WorkerWorkers  int
	Validator      validator.Validator
	ServerName     string
	ServerVersion  string
}

// New constructs a Server with its own incoming/outgoing queues and
// request/worker thread pools, and registers the base handlers.
func New(opts Options) *Server {
	if opts.RequestWorkers <= 0 {
		opts.RequestWorkers = 4
	}
	if opts.WorkerWorkers <= 0 {
		opts.WorkerWorkers = 4
	}

	s := &Server{
		logger:        opts.Logger,
		incoming:      queue.New(opts.QueueCapacity, opts.Logger),
		outgoing:      queue.New(opts.QueueCapacity, opts.Logger),
		docs:          make(map[string]*document.TextDocument),
		configs:       make(map[string]json.RawMessage),
		validator:     opts.Validator,
		serverName:    opts.ServerName,
		serverVersion: opts.ServerVersion,
	}
	s.Dispatcher = NewDispatcher(s.outgoing, opts.Logger)
	s.requestPool = pool.New("request", opts.RequestWorkers, opts.Logger)
	s.workerPool = pool.New("worker", opts.WorkerWorkers, opts.Logger)

	s.registerBaseHandlers()
	return s
}

// Incoming returns the queue the transport reader feeds raw message
// bodies into.
func (s *Server) Incoming() *queue.MessageQueue { return s.incoming }

// Outgoing returns the queue the transport writer drains serialized
// response/notification bodies from.
func (s *Server) Outgoing() *queue.MessageQueue { return s.outgoing }

// Document looks up a currently-open document by URI.
func (s *Server) Document(uri string) (*document.TextDocument, bool) {
	s.docsMu.RLock()
	defer s.docsMu.RUnlock()
	d, ok := s.docs[uri]
	return d, ok
}

// Run pulls raw message bodies off the incoming queue and submits each
// to the request pool for classification/dispatch, until the queue is
// stopped. It blocks until that happens; call it from its own goroutine.
func (s *Server) Run(ctx context.Context) {
	for {
		raw, err := s.incoming.Dequeue()
		if err != nil {
			return
		}
		message := raw
		s.requestPool.Execute(func(_ string, _ int) {
			s.Dispatcher.Dispatch(ctx, []byte(message))
		})
	}
}

// Shutdown stops accepting new incoming work and drains what's pending.
func (s *Server) Shutdown() {
	s.incoming.Stop()
	s.requestPool.Stop()
	s.requestPool.Join()
	s.workerPool.Stop()
	s.workerPool.Join()
	s.outgoing.Stop()
	if s.fallbackWatcher != nil {
		s.fallbackWatcher.Close()
	}
}

func (s *Server) registerBaseHandlers() {
	d := s.Dispatcher

	d.HandleRequest("initialize", s.handleInitialize)
	d.HandleNotification("initialized", s.handleInitialized)
	d.HandleRequest("shutdown", s.handleShutdown)

	d.HandleNotification("textDocument/didOpen", s.handleDidOpen)
	d.HandleNotification("textDocument/didChange", s.handleDidChange)
	d.HandleNotification("textDocument/didClose", s.handleDidClose)
	d.HandleNotification("textDocument/didSave", s.handleDidSave)
	d.HandleNotification("workspace/didRenameFiles", s.handleDidRenameFiles)
	d.HandleNotification("workspace/didChangeConfiguration", s.handleDidChangeConfiguration)
	d.HandleNotification("workspace/didChangeWatchedFiles", s.handleDidChangeWatchedFiles)
	d.HandleNotification("$/setTrace", s.handleSetTrace)
}

func (s *Server) handleInitialize(_ context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.InitializeParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return nil, protocol.InvalidParams("invalid initialize params: %v", err)
		}
	}

	s.clientSupportsWorkspaceConfig = params.Capabilities.Workspace.Configuration
	s.clientSupportsDidChangeConfig = params.Capabilities.Workspace.DidChangeConfiguration.DynamicRegistration

	s.needsFallbackWatch = !params.Capabilities.Workspace.DidChangeWatchedFiles.DynamicRegistration
	s.workspaceRoot = workspaceRoot(params)

	result := protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindIncremental,
				Save:      protocol.SaveOptions{IncludeText: false},
			},
			PositionEncoding: "utf-16",
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    s.serverName,
			Version: s.serverVersion,
		},
	}
	return result, nil
}

func (s *Server) handleInitialized(_ context.Context, _ json.RawMessage) (any, error) {
	if s.logger != nil {
		s.logger.Infof("server initialized")
	}
	if s.needsFallbackWatch && s.workspaceRoot != "" {
		s.startFallbackWatch()
	}
	return nil, nil
}

// startFallbackWatch engages internal/watch when the client never
// declared workspace.didChangeWatchedFiles.dynamicRegistration (SPEC_FULL.md
// §11.1). Its events feed applyWatchedFiles directly, the same path a
// real workspace/didChangeWatchedFiles notification reaches via
// handleDidChangeWatchedFiles.
func (s *Server) startFallbackWatch() {
	w, err := watch.New(s.workspaceRoot, fallbackWatchPatterns, s.logger)
	if err != nil {
		if s.logger != nil {
			s.logger.Warnf("fallback watch: %v", err)
		}
		return
	}
	s.fallbackWatcher = w

	go func() {
		for events := range w.Events() {
			s.applyWatchedFiles(context.Background(), events)
		}
	}()
}

// handleDidChangeWatchedFiles is the client-sourced entry point for
// workspace/didChangeWatchedFiles. internal/watch's fallback producer
// reaches the same behavior through applyWatchedFiles directly, without
// a round trip through JSON-RPC.
func (s *Server) handleDidChangeWatchedFiles(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.DidChangeWatchedFilesParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, nil
	}
	s.applyWatchedFiles(ctx, params.Changes)
	return nil, nil
}

// applyWatchedFiles re-schedules validation for any open document whose
// path matches a reported change; deleted/renamed files outside the open
// set are otherwise ignored, since this core has no project-wide index.
func (s *Server) applyWatchedFiles(ctx context.Context, events []protocol.FileEvent) {
	if s.logger != nil {
		s.logger.Debugf("workspace/didChangeWatchedFiles: %d change(s)", len(events))
	}
	for _, event := range events {
		path := document.ResolveURIPath(event.URI)
		s.docsMu.RLock()
		var match *document.TextDocument
		for _, doc := range s.docs {
			if doc.Path() == path {
				match = doc
				break
			}
		}
		s.docsMu.RUnlock()
		if match != nil && event.Type != protocol.FileChangeTypeDeleted {
			s.scheduleValidation(ctx, match)
		}
	}
}

var fallbackWatchPatterns = []string{"**/*.f90", "**/*.f95", "**/*.f03", "**/*.f08", "**/*.F90"}

func workspaceRoot(params protocol.InitializeParams) string {
	for _, folder := range params.WorkspaceFolders {
		if path := document.ResolveURIPath(folder.URI); path != "" {
			return path
		}
	}
	if params.RootURI != nil {
		if path := document.ResolveURIPath(*params.RootURI); path != "" {
			return path
		}
	}
	if params.RootPath != nil {
		return *params.RootPath
	}
	return ""
}

func (s *Server) handleShutdown(_ context.Context, _ json.RawMessage) (any, error) {
	if s.logger != nil {
		s.logger.Infof("server shutting down")
	}
	return nil, nil
}

func (s *Server) handleDidOpen(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, nil
	}

	doc := document.New(
		params.TextDocument.URI,
		params.TextDocument.LanguageID,
		params.TextDocument.Version,
		params.TextDocument.Text,
	)

	s.docsMu.Lock()
	s.docs[params.TextDocument.URI] = doc
	s.docsMu.Unlock()

	s.scheduleValidation(ctx, doc)
	return nil, nil
}

func (s *Server) handleDidChange(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, nil
	}

	s.docsMu.RLock()
	doc, ok := s.docs[params.TextDocument.URI]
	s.docsMu.RUnlock()
	if !ok {
		return nil, nil
	}

	if err := doc.Apply(params.ContentChanges, params.TextDocument.Version); err != nil {
		if s.logger != nil {
			s.logger.Warnf("textDocument/didChange %s: %v", params.TextDocument.URI, err)
		}
		return nil, nil
	}

	s.scheduleValidation(ctx, doc)
	return nil, nil
}

func (s *Server) handleDidClose(_ context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, nil
	}

	s.docsMu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.docsMu.Unlock()

	_ = s.Dispatcher.SendNotification("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil, nil
}

func (s *Server) handleDidSave(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, nil
	}
	s.docsMu.RLock()
	doc, ok := s.docs[params.TextDocument.URI]
	s.docsMu.RUnlock()
	if ok {
		s.scheduleValidation(ctx, doc)
	}
	return nil, nil
}

func (s *Server) handleDidRenameFiles(_ context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.RenameFilesParams
	if err := json.Unmarshal(rawParams, &params); err != nil {
		return nil, nil
	}

	s.docsMu.Lock()
	for _, rename := range params.Files {
		if doc, ok := s.docs[rename.OldURI]; ok {
			s.docs[rename.NewURI] = doc
			delete(s.docs, rename.OldURI)
		}
	}
	s.docsMu.Unlock()
	return nil, nil
}

func (s *Server) handleDidChangeConfiguration(_ context.Context, _ json.RawMessage) (any, error) {
	s.cfgMu.Lock()
	s.configs = make(map[string]json.RawMessage)
	s.cfgMu.Unlock()
	return nil, nil
}

func (s *Server) handleSetTrace(_ context.Context, rawParams json.RawMessage) (any, error) {
	var params protocol.SetTraceParams
	if err := json.Unmarshal(rawParams, &params); err == nil && s.logger != nil {
		level, parseErr := logging.ParseLevel(params.Value)
		if parseErr == nil {
			s.logger.SetLevel(level)
		}
	}
	return nil, nil
}

// scheduleValidation submits a validation task to the worker pool, per
// spec.md §7's "schedule a validation task on the worker pool, capture
// exceptions per-task" contract. A missing Validator is a silent no-op:
// validators are an external collaborator (spec.md §6), not a core
// requirement.
func (s *Server) scheduleValidation(ctx context.Context, doc *document.TextDocument) {
	if s.validator == nil {
		return
	}
	uri := doc.URI()
	path := doc.Path()
	text := doc.Text()
	version := doc.Version()

	s.workerPool.Execute(func(_ string, _ int) {
		issues, err := s.validator.Validate(ctx, path, text, nil)
		if err != nil {
			if s.logger != nil {
				s.logger.Errorf("validating %s: %v", uri, err)
			}
			return
		}
		s.publishDiagnostics(uri, version, issues)
	})
}

func (s *Server) publishDiagnostics(uri string, version int, issues []validator.Issue) {
	diagnostics := make([]protocol.Diagnostic, 0, len(issues))
	for _, issue := range issues {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range: protocol.Range{
				Start: protocol.Position{Line: issue.FirstLine - 1, Character: issue.FirstColumn - 1},
				End:   protocol.Position{Line: issue.LastLine - 1, Character: issue.LastColumn - 1},
			},
			Severity: validator.ToLSP(issue.Severity),
			Source:   issue.Source,
			Message:  issue.Message,
		})
	}

	v := version
	_ = s.Dispatcher.SendNotification("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     &v,
		Diagnostics: diagnostics,
	})
}
