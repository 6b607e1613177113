// Package config loads the bridge's fleet definition: which child servers
// to supervise, how to launch them, and at what risk level. The canonical
// source is a JSON file keyed by mcpServers, per spec §6; entries can be
// added or overridden from the process environment without a file at all.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// RiskLevel mirrors the bridge's three-tier classification. The zero value
// is distinct from Low: an unset risk level in a server entry stays
// RiskUnspecified, and Load reports exactly what was declared.
type RiskLevel int

const (
	RiskUnspecified RiskLevel = 0
	RiskLow         RiskLevel = 1
	RiskMedium      RiskLevel = 2
	RiskHigh        RiskLevel = 3
)

// DockerConfig describes the container launcher argv for High-risk servers.
type DockerConfig struct {
	Image   string   `json:"image" mapstructure:"image"`
	Volumes []string `json:"volumes" mapstructure:"volumes"`
	Network string   `json:"network" mapstructure:"network"`
}

// ServerConfig is one entry under mcpServers: the launch spec for a single
// child process.
type ServerConfig struct {
	Command      string            `json:"command" mapstructure:"command"`
	Args         []string          `json:"args" mapstructure:"args"`
	Env          map[string]string `json:"env" mapstructure:"env"`
	RiskLevel    RiskLevel         `json:"riskLevel" mapstructure:"riskLevel"`
	DockerConfig *DockerConfig     `json:"docker" mapstructure:"docker"`
}

// FileConfig is the top-level shape of the JSON config file.
type FileConfig struct {
	McpServers map[string]ServerConfig `json:"mcpServers" mapstructure:"mcpServers"`
}

const defaultConfigFileName = "mcp_config.json"

// ResolvePath implements the search order from spec §6: MCP_CONFIG_PATH
// when set, otherwise mcp_config.json in the working directory.
func ResolvePath() string {
	if p := os.Getenv("MCP_CONFIG_PATH"); p != "" {
		return p
	}
	return defaultConfigFileName
}

// Load reads the fleet definition. A missing file at the resolved path is
// not an error: the fleet may be defined entirely through environment
// overrides, so Load returns an empty FileConfig in that case.
func Load(path string) (FileConfig, error) {
	var fc FileConfig
	fc.McpServers = map[string]ServerConfig{}

	if path == "" {
		path = ResolvePath()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fc, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&fc); err != nil {
		return fc, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if fc.McpServers == nil {
		fc.McpServers = map[string]ServerConfig{}
	}
	return fc, nil
}

var envServerPattern = regexp.MustCompile(`^MCP_SERVER_([A-Za-z0-9_]+)_(COMMAND|ARGS|ENV|RISK_LEVEL|DOCKER_CONFIG)$`)

// ApplyEnvOverrides synthesizes or overrides server entries from
// MCP_SERVER_<NAME>_* variables in environ, per spec §6. ARGS is
// comma-separated; ENV and DOCKER_CONFIG are JSON-encoded. Entries already
// present in servers are updated field-by-field rather than replaced
// wholesale. A malformed JSON companion is ignored rather than rejecting
// the whole override, per §7's "configuration errors are never fatal".
func ApplyEnvOverrides(servers map[string]ServerConfig, environ []string) {
	for _, kv := range environ {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		key, val := kv[:i], kv[i+1:]
		m := envServerPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		field := m[2]

		sc := servers[name]
		switch field {
		case "COMMAND":
			sc.Command = val
		case "ARGS":
			sc.Args = parseArgsList(val)
		case "ENV":
			var env map[string]string
			if err := json.Unmarshal([]byte(val), &env); err == nil {
				sc.Env = env
			}
		case "RISK_LEVEL":
			if n, err := strconv.Atoi(val); err == nil {
				sc.RiskLevel = RiskLevel(n)
			}
		case "DOCKER_CONFIG":
			var dc DockerConfig
			if err := json.Unmarshal([]byte(val), &dc); err == nil {
				sc.DockerConfig = &dc
			}
		}
		servers[name] = sc
	}
}

func parseArgsList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// LoadFleet combines the file config with environment overrides, the way
// the bridge assembles its runtime fleet at startup.
func LoadFleet(path string) (map[string]ServerConfig, error) {
	fc, err := Load(path)
	if err != nil {
		return nil, err
	}
	ApplyEnvOverrides(fc.McpServers, os.Environ())
	return fc.McpServers, nil
}
