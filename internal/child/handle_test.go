package child

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/INQUIRELAB/mcp-bridge-api/internal/resolver"
)

func TestSpawnEchoRoundTrip(t *testing.T) {
	h, err := Spawn(resolver.Resolved{Path: "/bin/cat"}, nil, "")
	require.NoError(t, err)
	defer func() { _ = h.Terminate() }()

	require.Greater(t, h.PID(), 0)

	_, err = h.Stdin.Write([]byte("hello\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(h.Stdout).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "hello\n", line)
}

func TestTerminateFiresDoneChannel(t *testing.T) {
	h, err := Spawn(resolver.Resolved{Path: "/bin/sleep", Args: []string{"30"}}, nil, "")
	require.NoError(t, err)

	require.NoError(t, h.Terminate())

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("expected Done to fire after Terminate")
	}
}
