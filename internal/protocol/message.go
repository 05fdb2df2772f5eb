// Package protocol defines the JSON-RPC 2.0 / LSP wire types this host
// parses and emits, and the closed set of error codes it can return.
//
// Field names and JSON tags are grounded on
// _examples/WaylonWalker-markata-go/pkg/lsp/{server.go,types.go}; the error
// code set is expanded to the full list spec.md §6 enumerates.
package protocol

import "encoding/json"

// Version is the literal JSON-RPC version string every message carries.
const Version = "2.0"

// Message is the envelope for a JSON-RPC request, notification, or
// response. Exactly one of the Request/Notification/Response shapes is
// populated on any given value, distinguished by the presence of Method,
// Result, or Error per spec.md §4.5's dispatch precedence.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC 2.0 error payload.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// HasID reports whether the message carries a non-null id, i.e. whether it
// is a request (or a response) rather than a notification.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// IsResponse reports whether the message carries a result or an error,
// i.e. it is a response to a server-initiated request.
func (m *Message) IsResponse() bool {
	return m.Result != nil || m.Error != nil
}

// NewRequestMessage builds a server-initiated outgoing request.
func NewRequestMessage(id int64, method string, params any) (*Message, error) {
	msg := &Message{JSONRPC: Version, ID: json.RawMessage(itoa(id)), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		msg.Params = raw
	}
	return msg, nil
}

func itoa(id int64) []byte {
	b, _ := json.Marshal(id)
	return b
}
