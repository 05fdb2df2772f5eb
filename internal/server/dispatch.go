package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/WaylonWalker/lsp-core/internal/logging"
	"github.com/WaylonWalker/lsp-core/internal/protocol"
	"github.com/WaylonWalker/lsp-core/internal/queue"
)

// Handler processes one classified request or notification. ctx carries a
// cooperative cancellation signal (see Cancel). For requests, result and
// err become the outgoing response's result/error fields; for
// notifications both are ignored beyond logging.
type Handler func(ctx context.Context, params json.RawMessage) (result any, err error)

// Dispatcher classifies incoming JSON-RPC messages, gates them against
// the server's lifecycle state, routes requests/notifications to
// registered Handlers, serializes responses, and tracks outstanding
// server-initiated requests so their responses can be routed back to a
// waiting caller.
//
// Classification precedence (method present, else result, else error,
// else InvalidRequest) is grounded on
// _examples/original_source/src/lsp/lsp_language_server.cpp's handle().
type Dispatcher struct {
	logger *logging.Logger
	out    *queue.MessageQueue

	lifecycle *lifecycle

	handlersMu sync.RWMutex
	requests   map[string]Handler
	notifies   map[string]Handler

	// pending tracks outgoing (server-initiated) requests awaiting a
	// client response, keyed by the id this server assigned. Grounded on
	// spec.md §5's pending-outgoing-request callback table.
	pendingMu sync.Mutex
	pending   map[int64]pendingRequest
	nextID    atomic.Int64

	// cancellations tracks cooperative cancellation flags for in-flight
	// incoming requests, keyed by the request's own id as a string.
	// SPEC_FULL.md §12.2 grounds this on spec.md §5's cooperative-token
	// design for $/cancelRequest, since the original C++ source this
	// spec distills from never implements that notification itself.
	cancellations sync.Map // map[string]*atomic.Bool

	initMethod     string
	shutdownMethod string
	exitMethod     string
}

type pendingRequest struct {
	method   string
	callback func(result json.RawMessage, respErr *protocol.ResponseError)
}

// NewDispatcher constructs a Dispatcher writing responses onto out.
func NewDispatcher(out *queue.MessageQueue, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		logger:         logger,
		out:            out,
		lifecycle:      newLifecycle(),
		requests:       make(map[string]Handler),
		notifies:       make(map[string]Handler),
		pending:        make(map[int64]pendingRequest),
		initMethod:     "initialize",
		shutdownMethod: "shutdown",
		exitMethod:     "exit",
	}
}

// State returns the dispatcher's current lifecycle state.
func (d *Dispatcher) State() State {
	return d.lifecycle.State()
}

// HandleRequest registers the handler for an incoming request method.
func (d *Dispatcher) HandleRequest(method string, h Handler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.requests[method] = h
}

// HandleNotification registers the handler for an incoming notification
// method.
func (d *Dispatcher) HandleNotification(method string, h Handler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.notifies[method] = h
}

// Dispatch classifies and processes one raw JSON-RPC message. It never
// returns an error for malformed client input; malformed input instead
// produces a ParseError/InvalidParams/InvalidRequest response enqueued
// onto out, matching the original's catch-and-respond handle() body.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) {
	if !json.Valid(raw) {
		d.enqueueError(nil, protocol.ParseError("invalid JSON"))
		return
	}
	if !isJSONObject(raw) {
		// spec.md §4.5 step 2: reject anything that isn't a JSON object
		// (a batched array, a bare string/number/bool/null) with
		// InvalidParams, never ParseError — grounded on
		// _examples/original_source/src/lsp/lsp_language_server.cpp:51-65,
		// which throws INVALID_PARAMS for every non-object root.
		d.enqueueError(nil, protocol.InvalidParams("request must be a JSON object"))
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.enqueueError(nil, protocol.ParseError("%v", err))
		return
	}

	switch {
	case msg.Method != "":
		d.dispatchMethod(ctx, &msg)
	case msg.IsResponse():
		d.dispatchResponse(&msg)
	default:
		d.enqueueError(msg.ID, protocol.InvalidRequest("missing required attribute: method"))
	}
}

// isJSONObject reports whether raw's root value is a JSON object, i.e.
// its first non-whitespace byte is '{'. raw is assumed already json.Valid.
func isJSONObject(raw []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return false
	}
	delim, ok := tok.(json.Delim)
	return ok && delim == '{'
}

func (d *Dispatcher) dispatchMethod(ctx context.Context, msg *protocol.Message) {
	isRequest := msg.HasID()

	if msg.Method == d.exitMethod {
		if !d.lifecycle.isShuttingDown() && d.logger != nil {
			d.logger.Warnf("server exited before being notified to shutdown")
		}
		d.lifecycle.markExited()
		return
	}

	if msg.Method == "$/cancelRequest" {
		d.handleCancelRequest(msg)
		return
	}

	state := d.lifecycle.State()
	if state == StateShuttingDown {
		// Every request after shutdown fails with RequestFailed; the original
		// distinguishes "shutting down" from "not yet initialized" with a
		// different error code for exactly this case.
		if isRequest {
			d.enqueueError(msg.ID, protocol.RequestFailed("server has shut down and cannot accept new requests"))
		}
		return
	}

	if msg.Method == d.initMethod {
		if !d.lifecycle.beginInitialize() {
			d.enqueueError(msg.ID, protocol.InvalidRequest("server may be initialized only once"))
			return
		}
	} else if msg.Method == d.shutdownMethod {
		if !d.lifecycle.isInitialized() {
			d.enqueueError(msg.ID, protocol.ServerNotInitialized())
			return
		}
		d.lifecycle.beginShutdown()
	} else if !d.lifecycle.isInitialized() {
		if isRequest {
			d.enqueueError(msg.ID, protocol.ServerNotInitialized())
		}
		return
	}

	handler, ok := d.lookupHandler(msg.Method, isRequest)
	if !ok {
		if isRequest {
			d.enqueueError(msg.ID, protocol.MethodNotFound(msg.Method))
		}
		return
	}

	cancelCtx := ctx
	var cancelFlag *atomic.Bool
	if isRequest {
		cancelFlag = new(atomic.Bool)
		key := string(msg.ID)
		d.cancellations.Store(key, cancelFlag)
		defer d.cancellations.Delete(key)
		cancelCtx = withCancelFlag(ctx, cancelFlag)
	}

	result, err := d.invoke(handler, cancelCtx, msg.Method, msg.Params)

	if msg.Method == d.initMethod {
		if err == nil {
			d.lifecycle.finishInitialize()
		} else {
			// A failed initialize (e.g. malformed params) rolls the state
			// machine back to Uninitialized so the client can retry, per
			// spec.md §4.5's Initializing --[handler failure]--> Uninitialized
			// transition.
			d.lifecycle.rollbackInitialize()
		}
	}

	if !isRequest {
		if err != nil && d.logger != nil {
			d.logger.Errorf("notification %q: %v", msg.Method, err)
		}
		return
	}

	if err != nil {
		if _, ok := err.(*protocol.Error); !ok && d.logger != nil {
			// spec.md §7: an error that isn't a typed domain error is
			// wrapped as InternalError for the client, but the original
			// is still logged with its detail.
			d.logger.Errorf("request %q: %v", msg.Method, err)
		}
		d.enqueueError(msg.ID, err)
		return
	}
	d.enqueueResult(msg.ID, result)
}

func (d *Dispatcher) lookupHandler(method string, isRequest bool) (Handler, bool) {
	d.handlersMu.RLock()
	defer d.handlersMu.RUnlock()
	if isRequest {
		h, ok := d.requests[method]
		return h, ok
	}
	h, ok := d.notifies[method]
	return h, ok
}

// invoke recovers a panicking handler into an InternalError, matching the
// original's top-level catch(const std::exception&) fallback and this
// core's own ThreadPool.safeExecute discipline.
func (d *Dispatcher) invoke(h Handler, ctx context.Context, method string, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Errorf("handler %q panicked: %v", method, fmt.Errorf("%v", r))
			}
			err = protocol.InternalError("an unexpected error occurred handling %q", method)
		}
	}()
	return h(ctx, params)
}

func (d *Dispatcher) handleCancelRequest(msg *protocol.Message) {
	var params protocol.CancelParams
	if len(msg.Params) > 0 {
		_ = json.Unmarshal(msg.Params, &params)
	}
	key := string(params.ID)
	if v, ok := d.cancellations.Load(key); ok {
		v.(*atomic.Bool).Store(true)
	}
}

func (d *Dispatcher) dispatchResponse(msg *protocol.Message) {
	id, err := idToInt64(msg.ID)
	if err != nil {
		if d.logger != nil {
			d.logger.Warnf("response with unrecognized id %s: %v", msg.ID, err)
		}
		return
	}

	d.pendingMu.Lock()
	p, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.pendingMu.Unlock()

	if !ok {
		if d.logger != nil {
			d.logger.Warnf("response to unknown request id %d", id)
		}
		return
	}
	if p.callback != nil {
		p.callback(msg.Result, msg.Error)
	}
}

// SendRequest enqueues a server-initiated request and registers callback
// to run when (or if) the client responds. It returns immediately;
// callback runs on whatever goroutine later calls Dispatch with the
// matching response.
func (d *Dispatcher) SendRequest(method string, params any, callback func(result json.RawMessage, respErr *protocol.ResponseError)) error {
	id := d.nextID.Add(1)
	msg, err := protocol.NewRequestMessage(id, method, params)
	if err != nil {
		return err
	}

	d.pendingMu.Lock()
	d.pending[id] = pendingRequest{method: method, callback: callback}
	d.pendingMu.Unlock()

	return d.enqueueMessage(msg)
}

// SendNotification enqueues a server-initiated notification.
func (d *Dispatcher) SendNotification(method string, params any) error {
	msg := &protocol.Message{JSONRPC: protocol.Version, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		msg.Params = raw
	}
	return d.enqueueMessage(msg)
}

func (d *Dispatcher) enqueueResult(id json.RawMessage, result any) {
	msg := &protocol.Message{JSONRPC: protocol.Version, ID: id}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			d.enqueueError(id, protocol.InternalError("marshaling result: %v", err))
			return
		}
		msg.Result = raw
	} else {
		msg.Result = json.RawMessage("null")
	}
	_ = d.enqueueMessage(msg)
}

func (d *Dispatcher) enqueueError(id json.RawMessage, err error) {
	msg := &protocol.Message{
		JSONRPC: protocol.Version,
		ID:      id,
		Error:   protocol.ToResponseError(err),
	}
	_ = d.enqueueMessage(msg)
}

func (d *Dispatcher) enqueueMessage(msg *protocol.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if d.out != nil {
		d.out.Enqueue(string(raw))
	}
	return nil
}

func idToInt64(raw json.RawMessage) (int64, error) {
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, err
	}
	return id, nil
}

type cancelFlagKey struct{}

func withCancelFlag(ctx context.Context, flag *atomic.Bool) context.Context {
	return context.WithValue(ctx, cancelFlagKey{}, flag)
}

// IsCancelled reports whether the request carried in ctx has received a
// $/cancelRequest notification. Handlers that want to honor cancellation
// should check this between units of work, per spec.md §5's cooperative
// (not preemptive) cancellation model.
func IsCancelled(ctx context.Context) bool {
	flag, ok := ctx.Value(cancelFlagKey{}).(*atomic.Bool)
	return ok && flag.Load()
}
