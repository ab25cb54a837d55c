package jsonrpc

import "context"

// Handler processes the params of one method call and returns its result.
// Any returned error becomes a HandlerError response when the request has
// an id, and is swallowed when it does not.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Router is the transport-agnostic JSON-RPC dispatcher. One instance is
// shared by every transport; the method table is populated once at startup
// and read-only afterwards, so Handle takes no lock.
type Router struct {
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register stores one handler per method. Registering the same method twice
// replaces the earlier handler.
func (r *Router) Register(method string, h Handler) {
	r.handlers[method] = h
}

// Handle dispatches a single decoded message and returns the response to
// send, or nil when nothing must be sent (every notification branch,
// including handler failure, returns nil).
func (r *Router) Handle(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != Version || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return &Response{
			JSONRPC: Version,
			ID:      req.ID,
			Error:   &Error{Code: InvalidRequest, Message: "Invalid Request"},
		}
	}

	h, ok := r.handlers[req.Method]
	if !ok {
		if req.IsNotification() {
			return nil
		}
		return &Response{
			JSONRPC: Version,
			ID:      req.ID,
			Error:   &Error{Code: MethodNotFound, Message: "Method not found"},
		}
	}

	params := req.Params
	if params == nil {
		params = map[string]any{}
	}

	result, err := h(ctx, params)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return &Response{
			JSONRPC: Version,
			ID:      req.ID,
			Error:   &Error{Code: HandlerError, Message: err.Error()},
		}
	}
	return &Response{JSONRPC: Version, ID: req.ID, Result: result}
}
