package child

import (
	"bufio"
	"log/slog"
)

// StartStderrLogger drains the child's error stream line by line and logs
// it at warn level. Per §4.3 the error stream is never parsed as JSON-RPC;
// it exists purely as a diagnostic channel.
func (h *Handle) StartStderrLogger(logger *slog.Logger, serverID string) {
	go func() {
		scanner := bufio.NewScanner(h.Stderr)
		for scanner.Scan() {
			logger.Warn("child stderr", "server", serverID, "line", scanner.Text())
		}
	}()
}
