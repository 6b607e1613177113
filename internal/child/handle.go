// Package child owns one running subprocess: its argv, environment,
// standard streams, and exit status. It does not understand JSON-RPC —
// that framing lives in internal/codec, which wraps the raw stdio streams
// this package exposes.
package child

import (
	"os"
	"os/exec"
	"sync"

	"github.com/INQUIRELAB/mcp-bridge-api/internal/env"
	"github.com/INQUIRELAB/mcp-bridge-api/internal/resolver"
)

// Handle is one spawned child. Stdin/Stdout are exposed for internal/codec
// to wrap; Stderr is drained independently by StartStderrLogger.
type Handle struct {
	cmd    *exec.Cmd
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	pid int

	mu       sync.Mutex
	exitCode int
	exitErr  error
	done     chan struct{}
}

// Spawn starts a child from an already-resolved command and extra
// environment, merging the bridge's own environment underneath per §4.2.
// It returns once the OS has accepted the spawn; the termination event
// fires later on its own goroutine.
func Spawn(resolved resolver.Resolved, extraEnv []string, workDir string) (*Handle, error) {
	cmd := exec.Command(resolved.Path, resolved.Args...)
	cmd.Dir = workDir
	cmd.Env = env.Merge(os.Environ(), extraEnv)
	configureSysProcAttr(cmd)

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = stdinR.Close()
		_ = stdinW.Close()
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		_ = stderrR.Close()
		_ = stderrW.Close()
		return nil, err
	}
	_ = stdinR.Close()
	_ = stdoutW.Close()
	_ = stderrW.Close()

	h := &Handle{
		cmd:    cmd,
		Stdin:  stdinW,
		Stdout: stdoutR,
		Stderr: stderrR,
		pid:    cmd.Process.Pid,
		done:   make(chan struct{}),
	}
	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	code := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
		} else {
			code = -1
		}
	}
	h.mu.Lock()
	h.exitCode = code
	h.exitErr = err
	h.mu.Unlock()
	close(h.done)
}

// PID returns the numeric process identifier.
func (h *Handle) PID() int { return h.pid }

// Done fires exactly once when the OS reports the child has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode is only meaningful after Done has fired.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// ExitErr is the raw error from cmd.Wait, if any.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Terminate sends the OS default termination signal. The caller is
// responsible for removing the registry record; Terminate does not wait
// for the exit event.
func (h *Handle) Terminate() error {
	return terminate(h.cmd)
}
