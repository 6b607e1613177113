// Package env merges a child's extra environment variables over the
// bridge's own inherited environment, per spec §4.2: "The inherited
// environment is merged with any extras from the launch specification;
// extras win on conflict."
package env

import "strings"

// Merge composes the final "KEY=VALUE" slice for a child process: it starts
// from the bridge's own process environment and applies extra on top,
// extra entries winning on key collision. ${VAR} references inside an
// extra value are expanded against the composed map before the result is
// built, so a launch spec can refer to an inherited variable.
func Merge(osEnviron []string, extra []string) []string {
	m := make(map[string]string, len(osEnviron)+len(extra))
	for _, kv := range osEnviron {
		if k, v, ok := split(kv); ok {
			m[k] = v
		}
	}
	extraKeys := make(map[string]bool, len(extra))
	for _, kv := range extra {
		if k, v, ok := split(kv); ok {
			m[k] = v
			extraKeys[k] = true
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		if extraKeys[k] {
			v = expand(v, m)
		}
		out = append(out, k+"="+v)
	}
	return out
}

func split(kv string) (key, value string, ok bool) {
	i := strings.IndexByte(kv, '=')
	if i < 0 {
		return "", "", false
	}
	key = kv[:i]
	if key == "" {
		return "", "", false
	}
	return key, kv[i+1:], true
}

func expand(s string, m map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	out := s
	for k, v := range m {
		out = strings.ReplaceAll(out, "${"+k+"}", v)
	}
	return out
}
