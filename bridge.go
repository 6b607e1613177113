// Package bridge wires the supervisor registry, correlation engine,
// confirmation ledger, and HTTP surface into a single embeddable facade,
// mirroring the teacher's public-API-surface pattern.
package bridge

import (
	"fmt"
	"log/slog"
	"net/http"

	cfg "github.com/INQUIRELAB/mcp-bridge-api/internal/config"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/confirm"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/httpapi"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/metrics"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/registry"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/resolver"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

// Bridge is a fully wired instance of the three supervising subsystems
// plus their HTTP surface.
type Bridge struct {
	Registry *registry.Registry
	Engine   *rpc.Engine
	Ledger   *confirm.Ledger
	router   *httpapi.Router
	logger   *slog.Logger
}

// New constructs a Bridge with an empty fleet. logger may be nil, in which
// case slog.Default() is used.
func New(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	engine := rpc.NewEngine(nil)
	reg := registry.New(engine, logger)
	engine.SetLookup(func(id string) (rpc.Server, bool) { return reg.Get(id) })

	ledger := confirm.New(engine)
	engine.SetConfirmationGate(ledger)

	return &Bridge{
		Registry: reg,
		Engine:   engine,
		Ledger:   ledger,
		router:   httpapi.New(reg, engine, ledger),
		logger:   logger,
	}
}

// Handler returns the bridge's complete HTTP/JSON surface, per §6.
func (b *Bridge) Handler() http.Handler {
	return b.router.Handler()
}

// RegisterMetrics registers the bridge's Prometheus collectors with r. It
// is safe to call multiple times.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// RegisterMetricsDefault registers with prometheus.DefaultRegisterer.
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

// LoadFleet starts every server named in the config file and environment
// overrides at path (per internal/config's search order when path is
// empty). Configuration errors are logged and the offending server is
// skipped, never fatal to the bridge — per §7's configuration-error
// taxonomy.
func (b *Bridge) LoadFleet(path string) error {
	servers, err := cfg.LoadFleet(path)
	if err != nil {
		return fmt.Errorf("load fleet: %w", err)
	}
	for id, sc := range servers {
		spec, err := toLaunchSpec(sc)
		if err != nil {
			b.logger.Warn("skipping misconfigured server", "server", id, "error", err)
			continue
		}
		if _, err := b.Registry.Start(id, spec); err != nil {
			b.logger.Warn("failed to start configured server", "server", id, "error", err)
			continue
		}
		b.logger.Info("started configured server", "server", id)
	}
	return nil
}

func toLaunchSpec(sc cfg.ServerConfig) (registry.LaunchSpec, error) {
	if sc.Command == "" {
		return registry.LaunchSpec{}, fmt.Errorf("missing command")
	}

	var risk resolver.RiskClass
	switch sc.RiskLevel {
	case cfg.RiskUnspecified:
		risk = resolver.RiskUnspecified
	case cfg.RiskLow:
		risk = resolver.RiskLow
	case cfg.RiskMedium:
		risk = resolver.RiskMedium
	case cfg.RiskHigh:
		risk = resolver.RiskHigh
	default:
		return registry.LaunchSpec{}, fmt.Errorf("invalid risk level %d", sc.RiskLevel)
	}

	env := make([]string, 0, len(sc.Env))
	for k, v := range sc.Env {
		env = append(env, k+"="+v)
	}

	var docker *resolver.DockerSpec
	if sc.DockerConfig != nil {
		docker = &resolver.DockerSpec{
			Image:   sc.DockerConfig.Image,
			Volumes: sc.DockerConfig.Volumes,
			Network: sc.DockerConfig.Network,
		}
	}

	return registry.LaunchSpec{
		Command: sc.Command,
		Args:    sc.Args,
		Env:     env,
		Risk:    risk,
		Docker:  docker,
	}, nil
}

// Shutdown signals every registered child to stop and returns once every
// stop operation has been issued, per §7's graceful-termination behavior.
func (b *Bridge) Shutdown() {
	b.Registry.StopAll()
}
