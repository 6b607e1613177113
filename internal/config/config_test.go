package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyFleet(t *testing.T) {
	fc, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Empty(t, fc.McpServers)
}

func TestLoadParsesMcpServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp_config.json")
	body := `{
		"mcpServers": {
			"filesystem": {
				"command": "npx",
				"args": ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"],
				"riskLevel": 2
			},
			"sandboxed": {
				"command": "python3",
				"args": ["server.py"],
				"riskLevel": 3,
				"docker": {"image": "mcp/sandbox:latest"}
			}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	fc, err := Load(path)
	require.NoError(t, err)
	require.Len(t, fc.McpServers, 2)

	fs := fc.McpServers["filesystem"]
	require.Equal(t, "npx", fs.Command)
	require.Equal(t, RiskMedium, fs.RiskLevel)

	sb := fc.McpServers["sandboxed"]
	require.Equal(t, RiskHigh, sb.RiskLevel)
	require.NotNil(t, sb.DockerConfig)
	require.Equal(t, "mcp/sandbox:latest", sb.DockerConfig.Image)
}

func TestResolvePathPrefersEnvVar(t *testing.T) {
	t.Setenv("MCP_CONFIG_PATH", "/custom/path.json")
	require.Equal(t, "/custom/path.json", ResolvePath())
}

func TestResolvePathDefaultsToWellKnownName(t *testing.T) {
	t.Setenv("MCP_CONFIG_PATH", "")
	require.Equal(t, defaultConfigFileName, ResolvePath())
}

func TestApplyEnvOverridesSynthesizesNewServer(t *testing.T) {
	servers := map[string]ServerConfig{}
	environ := []string{
		"MCP_SERVER_WEATHER_COMMAND=node",
		"MCP_SERVER_WEATHER_ARGS=server.js,--port,8080",
		`MCP_SERVER_WEATHER_ENV={"API_KEY":"abc","REGION":"us-east"}`,
		"MCP_SERVER_WEATHER_RISK_LEVEL=3",
		`MCP_SERVER_WEATHER_DOCKER_CONFIG={"image":"mcp/weather:1.0"}`,
		"UNRELATED=ignored",
	}
	ApplyEnvOverrides(servers, environ)

	sc, ok := servers["weather"]
	require.True(t, ok, "expected weather server to be synthesized")
	require.Equal(t, "node", sc.Command)
	require.Equal(t, []string{"server.js", "--port", "8080"}, sc.Args)
	require.Equal(t, "abc", sc.Env["API_KEY"])
	require.Equal(t, "us-east", sc.Env["REGION"])
	require.Equal(t, RiskHigh, sc.RiskLevel)
	require.NotNil(t, sc.DockerConfig)
	require.Equal(t, "mcp/weather:1.0", sc.DockerConfig.Image)
}

func TestApplyEnvOverridesUpdatesExistingServer(t *testing.T) {
	servers := map[string]ServerConfig{
		"filesystem": {Command: "npx", RiskLevel: RiskLow},
	}
	ApplyEnvOverrides(servers, []string{"MCP_SERVER_FILESYSTEM_RISK_LEVEL=2"})

	sc := servers["filesystem"]
	require.Equal(t, "npx", sc.Command, "expected command to survive untouched")
	require.Equal(t, RiskMedium, sc.RiskLevel)
}

func TestLoadFleetMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers":{"a":{"command":"a-bin"}}}`), 0o644))
	t.Setenv("MCP_SERVER_B_COMMAND", "b-bin")

	fleet, err := LoadFleet(path)
	require.NoError(t, err)
	require.Equal(t, "a-bin", fleet["a"].Command)
	require.Equal(t, "b-bin", fleet["b"].Command)
}
