// Package chaintest provides an in-memory chain.Provider for tests.
package chaintest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/blackmichael/onchain-posts/internal/chain"
)

// Handler answers one JSON-RPC method. Its return value is JSON encoded and
// decoded into the caller's result, like a real transport would.
type Handler func(args []json.RawMessage) (any, error)

// Call is a recorded request.
type Call struct {
	Method string
	Args   []json.RawMessage
}

// Error is a JSON-RPC error with a code, as returned by wallet providers.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string  { return fmt.Sprintf("%s (code %d)", e.Message, e.Code) }
func (e *Error) ErrorCode() int { return e.Code }

// Rejected is the error a provider returns when the user dismisses a prompt.
func Rejected() error {
	return &Error{Code: chain.UserRejectedCode, Message: "User rejected the request."}
}

// Provider routes calls to registered handlers and records them.
type Provider struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

func New() *Provider {
	return &Provider{handlers: make(map[string]Handler)}
}

// Handle registers h for method, replacing any previous handler.
func (p *Provider) Handle(method string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method] = h
}

// Calls returns the recorded calls for method.
func (p *Provider) Calls(method string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (p *Provider) CallContext(ctx context.Context, result any, method string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal arg %d: %w", i, err)
		}
		raw[i] = b
	}

	p.mu.Lock()
	p.calls = append(p.calls, Call{Method: method, Args: raw})
	h, ok := p.handlers[method]
	p.mu.Unlock()

	if !ok {
		return &Error{Code: -32601, Message: "the method " + method + " does not exist/is not available"}
	}

	v, err := h(raw)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return json.Unmarshal(b, result)
}
