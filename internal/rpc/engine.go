// Package rpc implements the correlation engine of §4.4: it mints request
// identifiers, tracks one outstanding entry per in-flight call, and routes
// each child reply to the caller waiting on its id.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/INQUIRELAB/mcp-bridge-api/internal/codec"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/metrics"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/resolver"
)

const callTimeout = 10 * time.Second

var ErrServerNotFound = errors.New("server not found or not connected")

// Server is everything the correlation engine needs from a registered
// child. internal/registry's ServerRecord satisfies it; the engine itself
// never imports the registry, so the two packages can evolve without a
// cycle.
type Server interface {
	ID() string
	Codec() *codec.Codec
	Done() <-chan struct{}
	ExitCode() int
	Risk() resolver.RiskClass
	ViaDocker() bool
	ContainerImage() string
}

// ConfirmationGate is the subset of the confirmation ledger the engine
// calls into when a Medium-risk tools/call arrives without a bypass token.
type ConfirmationGate interface {
	Defer(serverID, method string, params interface{}) (json.RawMessage, error)
}

type reply struct {
	result  json.RawMessage
	errRaw  json.RawMessage
	failErr error
}

// Engine is the correlation engine. It is safe for concurrent use by many
// callers issuing requests against many children.
type Engine struct {
	mu      sync.Mutex
	tables  map[string]map[string]chan reply
	confirm ConfirmationGate
	lookup  func(serverID string) (Server, bool)
}

// NewEngine builds a correlation engine. gate may be nil if no Medium-risk
// server will ever be registered, but in practice the bridge always wires
// a real confirmation ledger.
func NewEngine(gate ConfirmationGate) *Engine {
	return &Engine{tables: map[string]map[string]chan reply{}, confirm: gate}
}

// SetConfirmationGate wires the ledger after both it and the engine have
// been constructed, breaking the construction-order cycle between an
// engine that calls into a ledger and a ledger that replays through the
// engine.
func (e *Engine) SetConfirmationGate(gate ConfirmationGate) {
	e.confirm = gate
}

// SetLookup wires the server-identifier-to-Server resolver the engine needs
// to satisfy internal/confirm.Caller via CallByID. The bridge facade calls
// this once with the registry's Get method, after both are constructed,
// keeping this package free of any import on internal/registry.
func (e *Engine) SetLookup(lookup func(serverID string) (Server, bool)) {
	e.lookup = lookup
}

// CallByID resolves serverID through the injected lookup and calls through
// to Call. It exists so internal/confirm's Ledger can replay a committed
// invocation knowing only a server's logical identifier, per §3's
// ownership rule that the ledger never holds a direct handle to a child.
func (e *Engine) CallByID(serverID, method string, params interface{}, bypassHandle string) (json.RawMessage, error) {
	if e.lookup == nil {
		return nil, ErrServerNotFound
	}
	server, ok := e.lookup(serverID)
	if !ok {
		return nil, ErrServerNotFound
	}
	return e.Call(server, method, params, bypassHandle)
}

// Call implements the algorithm of §4.4. bypassHandle, when non-empty,
// skips the confirmation gate regardless of risk class — the engine checks
// only its presence, never its value, per the Open Question in §9: this is
// a marker, not a credential.
func (e *Engine) Call(server Server, method string, params interface{}, bypassHandle string) (json.RawMessage, error) {
	if server == nil {
		return nil, ErrServerNotFound
	}

	if server.Risk() == resolver.RiskMedium && method == "tools/call" && bypassHandle == "" {
		if e.confirm == nil {
			return nil, errors.New("confirmation required but no confirmation ledger is configured")
		}
		return e.confirm.Defer(server.ID(), method, params)
	}

	id := uuid.NewString()
	ch := e.register(server.ID(), id)
	defer e.deregister(server.ID(), id)

	req := codec.Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := server.Codec().Write(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case r := <-ch:
		if r.failErr != nil {
			return nil, r.failErr
		}
		if len(r.errRaw) > 0 && string(r.errRaw) != "null" {
			var rpcErr struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(r.errRaw, &rpcErr)
			if rpcErr.Message == "" {
				rpcErr.Message = string(r.errRaw)
			}
			return nil, errors.New(rpcErr.Message)
		}
		if server.Risk() == resolver.RiskHigh {
			return wrapExecutionEnvironment(r.result, server)
		}
		return r.result, nil
	case <-time.After(callTimeout):
		metrics.IncRequestTimeout(server.ID(), method)
		return nil, errors.New("request timed out after 10 seconds")
	case <-server.Done():
		return nil, fmt.Errorf("child exited with code %d", server.ExitCode())
	}
}

// Route dispatches a parsed reply to the waiter registered for its id, if
// any. Replies for ids with no waiter — late replies after a timeout, or
// replies for requests this engine never sent — are silently discarded.
func (e *Engine) Route(serverID string, msg codec.Message) {
	var id string
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		return
	}
	ch := e.take(serverID, id)
	if ch == nil {
		return
	}
	ch <- reply{result: msg.Result, errRaw: msg.Error}
}

// FailAll resolves every outstanding request for serverID with failure.
// Called by the registry when a child's termination event fires, per the
// invariant that no OutstandingRequest may survive its child.
func (e *Engine) FailAll(serverID string, err error) {
	e.mu.Lock()
	t := e.tables[serverID]
	delete(e.tables, serverID)
	e.mu.Unlock()
	for _, ch := range t {
		ch <- reply{failErr: err}
	}
}

func (e *Engine) register(serverID, id string) chan reply {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[serverID]
	if !ok {
		t = map[string]chan reply{}
		e.tables[serverID] = t
	}
	ch := make(chan reply, 1)
	t[id] = ch
	return ch
}

func (e *Engine) deregister(serverID, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.tables[serverID]; ok {
		delete(t, id)
	}
}

func (e *Engine) take(serverID, id string) chan reply {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[serverID]
	if !ok {
		return nil
	}
	ch, ok := t[id]
	if !ok {
		return nil
	}
	delete(t, id)
	return ch
}

func wrapExecutionEnvironment(result json.RawMessage, server Server) (json.RawMessage, error) {
	var wrapped map[string]interface{}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &wrapped); err != nil || wrapped == nil {
			wrapped = map[string]interface{}{"result": json.RawMessage(result)}
		}
	} else {
		wrapped = map[string]interface{}{}
	}
	wrapped["execution_environment"] = map[string]interface{}{
		"risk_level": int(server.Risk()),
		"container":  server.ViaDocker(),
		"image":      server.ContainerImage(),
	}
	return json.Marshal(wrapped)
}
