//go:build windows

package resolver

import (
	"fmt"
	"os"
	"path/filepath"
)

// probeWindowsShim checks the three well-known locations a Node package
// runner installs its .cmd launcher, per §4.1 rule 2, returning the first
// that exists.
func probeWindowsShim(command string) string {
	candidates := []string{
		filepath.Join(os.Getenv("APPDATA"), "npm", fmt.Sprintf("%s.cmd", command)),
		filepath.Join(os.Getenv("ProgramFiles"), "nodejs", fmt.Sprintf("%s.cmd", command)),
		fmt.Sprintf(`C:\Program Files\nodejs\%s.cmd`, command),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
