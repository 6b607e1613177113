// Package registry is the supervisor registry of §4.5: it indexes live
// children by logical identifier and handles start, stop, crash detection,
// and enumeration.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/INQUIRELAB/mcp-bridge-api/internal/child"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/codec"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/metrics"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/resolver"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/rpc"
)

var (
	ErrAlreadyExists = errors.New("server already registered")
	ErrNotFound      = errors.New("server not found")
)

// initializationDelay is the coarse synchronization of §4.2: the supervisor
// waits this long after spawn before sending initialize, giving the child
// time to open its pipes. §9 acknowledges this as an approximation.
const initializationDelay = 1 * time.Second

const (
	protocolVersion  = "0.3.0"
	clientName       = "mcp-bridge"
	clientVersion    = "1.0.0"
)

// LaunchSpec is everything the registry needs to start one child.
type LaunchSpec struct {
	Command string
	Args    []string
	Env     []string
	Risk    resolver.RiskClass
	Docker  *resolver.DockerSpec
	WorkDir string
}

// ServerRecord is one registered child. It satisfies rpc.Server so the
// correlation engine can operate on it without importing this package.
type ServerRecord struct {
	id        string
	handle    *child.Handle
	codec     *codec.Codec
	risk      resolver.RiskClass
	viaDocker bool
	image     string
	downgrade string
}

func (r *ServerRecord) ID() string                 { return r.id }
func (r *ServerRecord) Codec() *codec.Codec         { return r.codec }
func (r *ServerRecord) Done() <-chan struct{}       { return r.handle.Done() }
func (r *ServerRecord) ExitCode() int               { return r.handle.ExitCode() }
func (r *ServerRecord) Risk() resolver.RiskClass    { return r.risk }
func (r *ServerRecord) ViaDocker() bool             { return r.viaDocker }
func (r *ServerRecord) ContainerImage() string      { return r.image }
func (r *ServerRecord) PID() int                    { return r.handle.PID() }
func (r *ServerRecord) DowngradeWarning() string    { return r.downgrade }

// Registry indexes every live child by its logical identifier.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*ServerRecord
	engine  *rpc.Engine
	logger  *slog.Logger
}

func New(engine *rpc.Engine, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{servers: map[string]*ServerRecord{}, engine: engine, logger: logger}
}

// Start resolves and spawns a new child under identifier id. It fails with
// ErrAlreadyExists without touching the host if id is already registered;
// on any resolution or spawn failure it leaves the registry unchanged.
func (r *Registry) Start(id string, spec LaunchSpec) (*ServerRecord, error) {
	r.mu.Lock()
	if _, exists := r.servers[id]; exists {
		r.mu.Unlock()
		return nil, ErrAlreadyExists
	}
	r.mu.Unlock()

	resolved, err := resolver.Resolve(resolver.Spec{
		Command: spec.Command,
		Args:    spec.Args,
		Env:     spec.Env,
		Risk:    spec.Risk,
		Docker:  spec.Docker,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve command: %w", err)
	}
	if resolved.DowngradeWarn != "" {
		r.logger.Warn("downgrading server risk class", "server", id, "reason", resolved.DowngradeWarn)
	}

	handle, err := child.Spawn(resolved, spec.Env, spec.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("spawn: %w", err)
	}

	cdc := codec.New(handle.Stdout, handle.Stdin, r.logger, id)
	handle.StartStderrLogger(r.logger, id)

	image := ""
	if spec.Docker != nil {
		image = spec.Docker.Image
	}
	rec := &ServerRecord{
		id:        id,
		handle:    handle,
		codec:     cdc,
		risk:      resolved.EffRisk,
		viaDocker: resolved.ViaDocker,
		image:     image,
		downgrade: resolved.DowngradeWarn,
	}

	// Insertion must happen-before the exit-watcher goroutine starts: if the
	// child crashes before this line runs, watchExit still sees Done already
	// closed once it starts, finds this record (cur == rec) and removes it,
	// so the removal is always ordered after the insertion and no ghost
	// entry is left behind. See §9's third open question.
	r.mu.Lock()
	r.servers[id] = rec
	r.mu.Unlock()

	go r.routeMessages(rec)
	go r.watchExit(rec)
	go r.sendInitialize(rec)

	metrics.IncServerStart(id)
	metrics.SetRunningServers(r.Count())
	return rec, nil
}

// Stop signals the child and removes its record immediately, without
// waiting for the exit event; the exit-watcher's own removal is written to
// be idempotent against this.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	rec, ok := r.servers[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.servers, id)
	r.mu.Unlock()

	err := rec.handle.Terminate()
	r.engine.FailAll(id, errors.New("server stopped"))
	metrics.IncServerStop(id, "stopped")
	metrics.SetRunningServers(r.Count())
	return err
}

// Get returns the record for id, if any.
func (r *Registry) Get(id string) (*ServerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.servers[id]
	return rec, ok
}

// Info is the enumerable shape of one registered server for GET /servers.
type Info struct {
	ID        string
	PID       int
	Risk      resolver.RiskClass
	RiskSet   bool
	ViaDocker bool
}

// List returns a snapshot of every registered server.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.servers))
	for _, rec := range r.servers {
		out = append(out, Info{
			ID:        rec.id,
			PID:       rec.handle.PID(),
			Risk:      rec.risk,
			RiskSet:   rec.risk != resolver.RiskUnspecified,
			ViaDocker: rec.viaDocker,
		})
	}
	return out
}

// Count returns the number of currently registered servers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}

// StopAll runs Stop for every registered child, for use during the
// bridge's own termination handling. Like Stop, it does not wait for the
// children to exit.
func (r *Registry) StopAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.servers))
	for id := range r.servers {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		_ = r.Stop(id)
	}
}

func (r *Registry) routeMessages(rec *ServerRecord) {
	for msg := range rec.codec.Messages {
		r.engine.Route(rec.id, msg)
	}
}

// watchExit removes rec once its child exits without an explicit Stop, and
// fails every OutstandingRequest still registered for it, per the
// invariant that no request may outlive its child.
func (r *Registry) watchExit(rec *ServerRecord) {
	<-rec.handle.Done()

	removed := false
	r.mu.Lock()
	if cur, ok := r.servers[rec.id]; ok && cur == rec {
		delete(r.servers, rec.id)
		removed = true
	}
	r.mu.Unlock()

	r.engine.FailAll(rec.id, fmt.Errorf("child exited with code %d", rec.handle.ExitCode()))
	r.logger.Info("child exited", "server", rec.id, "exit_code", rec.handle.ExitCode(), "pid", rec.handle.PID())
	if removed {
		metrics.IncServerStop(rec.id, "crashed")
	}
	metrics.SetRunningServers(r.Count())
}

// sendInitialize implements the startup protocol of §4.2: one second after
// spawn, fire a single initialize request and move on without awaiting its
// reply.
func (r *Registry) sendInitialize(rec *ServerRecord) {
	time.Sleep(initializationDelay)
	req := codec.Request{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": protocolVersion,
			"clientInfo": map[string]string{
				"name":    clientName,
				"version": clientVersion,
			},
			"capabilities": map[string]interface{}{},
		},
	}
	if err := rec.codec.Write(req); err != nil {
		r.logger.Warn("failed to send initialize", "server", rec.id, "error", err)
	}
}
