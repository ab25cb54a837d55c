package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the only protocol version this server speaks.
const Version = "2.0"

// Request is a JSON-RPC 2.0 Request. ID is kept as raw JSON so that an
// absent id (a notification) stays distinguishable from id null, and so
// the response can echo the id byte-for-byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  map[string]any  `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// must never receive a response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 Response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// MarshalJSON emits exactly one of result/error. The id field is always
// present (null when the request id could not be recovered).
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *Error          `json:"error"`
		}{r.JSONRPC, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{r.JSONRPC, id, r.Result})
}

// Error is a JSON-RPC 2.0 Error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC 2.0 standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// HandlerError is the server-defined code for any failure raised while a
// registered method handler runs. The message is the failure's text and is
// meant for display, not for programmatic matching.
const HandlerError = -32000

// Decode parses a single JSON-RPC message. It fails when the bytes are not
// a JSON object, when the jsonrpc field is not "2.0", when method is not
// a string, or when params is present but not structured. Callers decide
// the failure policy: transports over HTTP answer 400, stdio drops the
// line.
func Decode(data []byte) (*Request, error) {
	var probe struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  any             `json:"method"`
		Params  any             `json:"params"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC message: %w", err)
	}
	if probe.JSONRPC != Version {
		return nil, fmt.Errorf("invalid JSON-RPC message: jsonrpc must be %q", Version)
	}
	method, ok := probe.Method.(string)
	if !ok || method == "" {
		return nil, fmt.Errorf("invalid JSON-RPC message: method must be a string")
	}

	var params map[string]any
	switch p := probe.Params.(type) {
	case nil:
	case map[string]any:
		params = p
	case []any:
		// Positional params are structurally valid; no method here takes
		// them, so they dispatch with no named arguments.
	default:
		return nil, fmt.Errorf("invalid JSON-RPC message: params must be an object or array")
	}

	return &Request{
		JSONRPC: probe.JSONRPC,
		ID:      probe.ID,
		Method:  method,
		Params:  params,
	}, nil
}
