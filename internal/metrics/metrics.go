package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_bridge",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of successful child server starts.",
		}, []string{"server"},
	)
	serverStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_bridge",
			Subsystem: "server",
			Name:      "stops_total",
			Help:      "Number of child server stops, by reason.",
		}, []string{"server", "reason"},
	)
	runningServers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcp_bridge",
			Subsystem: "server",
			Name:      "running",
			Help:      "Current number of running child servers.",
		},
	)

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_bridge",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Number of JSON-RPC calls dispatched to children, by outcome.",
		}, []string{"server", "method", "outcome"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp_bridge",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Observed round-trip duration for JSON-RPC calls to children.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server", "method"},
	)
	requestTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_bridge",
			Subsystem: "rpc",
			Name:      "request_timeouts_total",
			Help:      "Number of JSON-RPC calls that exceeded the deadline without a reply.",
		}, []string{"server", "method"},
	)

	confirmationsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcp_bridge",
			Subsystem: "confirmation",
			Name:      "pending",
			Help:      "Current number of deferred tool calls awaiting confirmation.",
		},
	)
	confirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_bridge",
			Subsystem: "confirmation",
			Name:      "total",
			Help:      "Number of confirmation ledger entries resolved, by outcome.",
		}, []string{"outcome"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serverStarts, serverStops, runningServers,
		requestsTotal, requestDuration, requestTimeouts,
		confirmationsPending, confirmationsTotal,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncServerStart(server string) {
	if regOK.Load() {
		serverStarts.WithLabelValues(server).Inc()
	}
}

func IncServerStop(server, reason string) {
	if regOK.Load() {
		serverStops.WithLabelValues(server, reason).Inc()
	}
}

func SetRunningServers(n int) {
	if regOK.Load() {
		runningServers.Set(float64(n))
	}
}

func IncRequest(server, method, outcome string) {
	if regOK.Load() {
		requestsTotal.WithLabelValues(server, method, outcome).Inc()
	}
}

func ObserveRequestDuration(server, method string, seconds float64) {
	if regOK.Load() {
		requestDuration.WithLabelValues(server, method).Observe(seconds)
	}
}

func IncRequestTimeout(server, method string) {
	if regOK.Load() {
		requestTimeouts.WithLabelValues(server, method).Inc()
	}
}

func SetConfirmationsPending(n int) {
	if regOK.Load() {
		confirmationsPending.Set(float64(n))
	}
}

func IncConfirmationOutcome(outcome string) {
	if regOK.Load() {
		confirmationsTotal.WithLabelValues(outcome).Inc()
	}
}
