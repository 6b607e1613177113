//go:build !windows

package resolver

// probeWindowsShim is a no-op on non-Windows hosts; locateShim
// falls through to exec.LookPath for the shell's own which-equivalent.
func probeWindowsShim(command string) string {
	return ""
}
