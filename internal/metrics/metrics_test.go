package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg), "first register")
	require.NoError(t, Register(reg), "second register")

	IncServerStart("demo")
	IncServerStart("demo")
	IncServerStop("demo", "stopped")
	SetRunningServers(2)
	IncRequest("demo", "tools/call", "ok")
	ObserveRequestDuration("demo", "tools/call", 0.2)
	IncRequestTimeout("demo", "tools/call")
	SetConfirmationsPending(1)
	IncConfirmationOutcome("committed")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	wantNames := map[string]bool{
		"mcp_bridge_server_starts_total":          false,
		"mcp_bridge_server_stops_total":           false,
		"mcp_bridge_server_running":                false,
		"mcp_bridge_rpc_requests_total":            false,
		"mcp_bridge_rpc_request_duration_seconds":  false,
		"mcp_bridge_rpc_request_timeouts_total":    false,
		"mcp_bridge_confirmation_pending":          false,
		"mcp_bridge_confirmation_total":            false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			require.NotEmpty(t, mf.GetMetric(), "metric %s has no samples", n)
		}
	}
	for n, ok := range wantNames {
		require.True(t, ok, "expected to find metric %s", n)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	require.NoError(t, Register(prometheus.DefaultRegisterer))

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncServerStart("x")

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	s := string(b)
	require.True(t, strings.Contains(s, "mcp_bridge_server_starts_total"), "metrics output missing starts_total: %s", s[:min(200, len(s))])
}

func TestConcurrentIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncServerStart("c")
			IncRequest("c", "tools/call", "ok")
			IncServerStop("c", "stopped")
		}()
	}
	wg.Wait()

	_, err := reg.Gather()
	require.NoError(t, err)
}

func TestMetricsBeforeRegister(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	IncServerStart("test")
	IncServerStop("test", "stopped")
	SetRunningServers(0)
	IncRequest("test", "tools/call", "timeout")
	ObserveRequestDuration("test", "tools/call", 1.0)
	IncRequestTimeout("test", "tools/call")
	SetConfirmationsPending(0)
	IncConfirmationOutcome("expired")

	// No crash means success.
}

func TestRegisterError(t *testing.T) {
	errorRegisterer := &errorRegisterer{shouldError: true}

	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	err := Register(errorRegisterer)
	require.Error(t, err)
	require.Equal(t, "test registration error", err.Error())
}

type errorRegisterer struct {
	shouldError bool
}

func (e *errorRegisterer) Register(prometheus.Collector) error {
	if e.shouldError {
		return errors.New("test registration error")
	}
	return nil
}

func (e *errorRegisterer) MustRegister(...prometheus.Collector) {}
func (e *errorRegisterer) Unregister(prometheus.Collector) bool { return false }
