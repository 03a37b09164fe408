package config

import (
	"os"
	"regexp"
)

var envRefRE = regexp.MustCompile(`\$ENV\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv walks tree recursively, replacing every occurrence of
// $ENV{NAME} in every string with the process environment value of NAME, or
// leaving it unchanged if NAME is unset (§4.H).
func substituteEnv(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = substituteEnv(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = substituteEnv(val)
		}
		return out
	case string:
		return envRefRE.ReplaceAllStringFunc(t, func(match string) string {
			name := envRefRE.FindStringSubmatch(match)[1]
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			return match
		})
	default:
		return v
	}
}
