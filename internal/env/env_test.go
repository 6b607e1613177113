package env

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeExtraWinsOnConflict(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root"}
	extra := []string{"PATH=/opt/bin", "FOO=bar"}
	out := Merge(base, extra)

	got := map[string]string{}
	for _, kv := range out {
		k, v, ok := split(kv)
		require.True(t, ok, "malformed entry: %q", kv)
		got[k] = v
	}
	require.Equal(t, "/opt/bin", got["PATH"], "extra should win for PATH")
	require.Equal(t, "/root", got["HOME"], "inherited HOME should survive")
	require.Equal(t, "bar", got["FOO"])
}

func TestMergeExpandsVariables(t *testing.T) {
	base := []string{"ROOT=/srv"}
	extra := []string{"DATA_DIR=${ROOT}/data"}
	out := Merge(base, extra)
	for _, kv := range out {
		k, v, _ := split(kv)
		if k == "DATA_DIR" {
			require.Equal(t, "/srv/data", v)
		}
	}
}

func TestMergeIgnoresMalformedEntries(t *testing.T) {
	out := Merge(nil, []string{"NOEQUALS", "=emptykey", "OK=1"})
	require.Equal(t, []string{"OK=1"}, out)
}
