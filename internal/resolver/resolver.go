// Package resolver turns a launch specification into a concrete argv ready
// for the OS spawn primitive, applying the platform-specific indirection a
// configured command may require: container isolation for High-risk
// servers, package-runner shim lookup, and Windows .cmd rewriting.
package resolver

import (
	"errors"
	"os/exec"
	"runtime"
)

// RiskClass mirrors the three-tier classification from the configuration
// layer. Unspecified is distinct from Low: it carries no risk_* fields on
// the wire, but resolves identically to Low.
type RiskClass int

const (
	RiskUnspecified RiskClass = 0
	RiskLow         RiskClass = 1
	RiskMedium      RiskClass = 2
	RiskHigh        RiskClass = 3
)

// DockerSpec is the container launcher configuration required when Risk is
// High.
type DockerSpec struct {
	Image   string
	Volumes []string
	Network string
}

// Spec is the resolver's input: everything known about a server before its
// executable path and argv are pinned down.
type Spec struct {
	Command string
	Args    []string
	Env     []string
	Risk    RiskClass
	Docker  *DockerSpec
}

// Resolved is the resolver's output: a concrete triple ready to hand to
// os/exec.
type Resolved struct {
	Path       string
	Args       []string
	UseShell   bool
	ViaDocker  bool
	EffRisk    RiskClass
	DowngradeWarn string
}

var ErrHighRiskWithoutImage = errors.New("resolver: high risk level requires a docker image")

const containerLauncher = "docker"

var packageRunnerShims = map[string]bool{"npm": true, "npx": true}

// Resolve applies the three ordered rules from §4.1: container substitution
// for High risk, package-runner shim lookup, and Windows .cmd rewriting.
// When a High-risk server lacks a usable container image, Resolve does not
// fail outright — it returns a Medium-risk resolution and a diagnostic, so
// the supervisor can downgrade the server rather than refuse to start it.
func Resolve(spec Spec) (Resolved, error) {
	if spec.Risk == RiskHigh {
		if spec.Docker == nil || spec.Docker.Image == "" {
			downgraded := spec
			downgraded.Risk = RiskMedium
			downgraded.Docker = nil
			r, err := resolveNonContainer(downgraded)
			if err != nil {
				return Resolved{}, err
			}
			r.EffRisk = RiskMedium
			r.DowngradeWarn = ErrHighRiskWithoutImage.Error()
			return r, nil
		}
		return resolveContainer(spec), nil
	}
	return resolveNonContainer(spec)
}

func resolveContainer(spec Spec) Resolved {
	argv := []string{"run", "--rm"}
	for _, kv := range spec.Env {
		argv = append(argv, "-e", kv)
	}
	for _, v := range spec.Docker.Volumes {
		argv = append(argv, "-v", v)
	}
	if spec.Docker.Network != "" {
		argv = append(argv, "--network", spec.Docker.Network)
	}
	argv = append(argv, spec.Docker.Image)
	if !packageRunnerShims[spec.Command] {
		argv = append(argv, spec.Command)
		argv = append(argv, spec.Args...)
	}
	return Resolved{
		Path:      containerLauncher,
		Args:      argv,
		ViaDocker: true,
		EffRisk:   RiskHigh,
	}
}

func resolveNonContainer(spec Spec) (Resolved, error) {
	path := spec.Command
	if packageRunnerShims[spec.Command] {
		if found := locateShim(spec.Command); found != "" {
			path = found
		}
	}

	if runtime.GOOS == "windows" && hasCmdSuffix(path) {
		args := append([]string{"/c", path}, spec.Args...)
		return Resolved{Path: "cmd", Args: args, EffRisk: spec.Risk}, nil
	}

	useShell := runtime.GOOS != "windows" || !hasCmdSuffix(path)
	return Resolved{Path: path, Args: spec.Args, UseShell: useShell, EffRisk: spec.Risk}, nil
}

func hasCmdSuffix(path string) bool {
	return len(path) >= 4 && path[len(path)-4:] == ".cmd"
}

// locateShim finds a concrete path for a package-runner command, per §4.1
// rule 2. It never errors: an unresolved shim falls back to the bare name
// so the spawn primitive can still try PATH.
func locateShim(command string) string {
	if p := probeWindowsShim(command); p != "" {
		return p
	}
	if p, err := exec.LookPath(command); err == nil {
		return p
	}
	return ""
}
