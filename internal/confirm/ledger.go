// Package confirm implements the deferred-confirmation workflow of §4.6: a
// Medium-risk tool invocation is parked as a PendingInvocation and handed
// back to the caller as a handle, rather than run immediately; a later
// explicit commit or abandon resolves it.
package confirm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/INQUIRELAB/mcp-bridge-api/internal/metrics"
)

// ttl is the bounded lifetime of a PendingInvocation, per §3 and §4.6.
const ttl = 10 * time.Minute

var (
	ErrNotFound = errors.New("confirmation not found or expired")
	ErrExpired  = errors.New("confirmation has expired")
)

// Caller is the subset of the correlation engine the ledger replays a
// committed invocation through. internal/rpc.Engine satisfies it; the
// ledger depends only on this interface and never imports internal/rpc's
// concrete Engine type.
type Caller interface {
	CallByID(serverID, method string, params interface{}, bypassHandle string) (json.RawMessage, error)
}

type pending struct {
	serverID  string
	method    string
	params    interface{}
	riskLevel int
	toolName  string
	createdAt time.Time
}

// Ledger is the confirmation ledger: a table of PendingInvocations keyed by
// handle, each a Pending state in the Pending→{Committed,Abandoned,Expired}
// machine of §9's design note.
type Ledger struct {
	mu      sync.Mutex
	pending map[string]*pending
	caller  Caller
}

// New builds a ledger. caller replays a committed invocation by server
// identifier alone — the ledger never holds a direct handle to the child,
// per §3's ownership rule.
func New(caller Caller) *Ledger {
	return &Ledger{pending: map[string]*pending{}, caller: caller}
}

// Defer implements the defer(server, method, params) operation: it mints a
// handle, stores a PendingInvocation, and returns the structured deferral
// response described in §4.6.
func (l *Ledger) Defer(serverID, method string, params interface{}) (json.RawMessage, error) {
	handle := uuid.NewString()
	toolName := toolNameFromParams(params)

	l.mu.Lock()
	l.pending[handle] = &pending{
		serverID:  serverID,
		method:    method,
		params:    params,
		riskLevel: 2,
		toolName:  toolName,
		createdAt: time.Now(),
	}
	l.mu.Unlock()
	metrics.SetConfirmationsPending(l.PendingCount())

	resp := map[string]interface{}{
		"requires_confirmation": true,
		"confirmation_id":       handle,
		"risk_level":            2,
		"risk_description":      "Medium risk: confirmation required before tool calls",
		"server_id":             serverID,
		"method":                method,
		"tool_name":             toolName,
		"expires_at":            time.Now().Add(ttl).UTC().Format(time.RFC3339),
	}
	return json.Marshal(resp)
}

// Resolve implements resolve(handle, commit?): it validates the handle's
// existence and freshness, removes it, and either rejects or replays it
// through the correlation engine.
func (l *Ledger) Resolve(handle string, commit bool) (json.RawMessage, error) {
	l.mu.Lock()
	p, ok := l.pending[handle]
	if !ok {
		l.mu.Unlock()
		return nil, ErrNotFound
	}
	if time.Since(p.createdAt) > ttl {
		delete(l.pending, handle)
		l.mu.Unlock()
		metrics.SetConfirmationsPending(l.PendingCount())
		metrics.IncConfirmationOutcome("expired")
		return nil, ErrExpired
	}
	delete(l.pending, handle)
	l.mu.Unlock()
	metrics.SetConfirmationsPending(l.PendingCount())

	if !commit {
		metrics.IncConfirmationOutcome("abandoned")
		resp := map[string]interface{}{
			"status":  "rejected",
			"message": fmt.Sprintf("confirmation %s was abandoned by the caller", handle),
		}
		return json.Marshal(resp)
	}

	metrics.IncConfirmationOutcome("committed")
	return l.caller.CallByID(p.serverID, p.method, p.params, handle)
}

// PendingCount reports the number of unresolved PendingInvocations, for
// the confirmation.pending gauge.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func toolNameFromParams(params interface{}) string {
	m, ok := params.(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := m["name"].(string)
	return name
}
