package config

import (
	"fmt"

	"github.com/TransportDebuger/filterservice/internal/fserrors"
)

// validate checks the structural rules of §4.H against a substituted raw
// tree. It is intentionally permissive about unknown keys — only the
// documented required shape is enforced.
func validate(tree map[string]interface{}) error {
	defaults, ok := tree["defaults"].(map[string]interface{})
	if !ok || len(defaults) == 0 {
		return cfgErr("defaults section missing or empty")
	}
	if _, ok := tree["environments"].(map[string]interface{}); !ok {
		// environments may legitimately be empty, but the key must be a map
		if tree["environments"] != nil {
			return cfgErr("environments section must be an object")
		}
	}

	if err := validateSources(defaults["sources"]); err != nil {
		return err
	}
	envs, _ := tree["environments"].(map[string]interface{})
	for name, raw := range envs {
		block, ok := raw.(map[string]interface{})
		if !ok {
			return cfgErr(fmt.Sprintf("environments.%s must be an object", name))
		}
		if err := validateSources(block["sources"]); err != nil {
			return err
		}
		if err := validateLogging(block["logging"]); err != nil {
			return err
		}
	}
	return validateLogging(defaults["logging"])
}

func validateSources(raw interface{}) error {
	if raw == nil {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return cfgErr("sources must be an array")
	}
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return cfgErr(fmt.Sprintf("sources[%d] must be an object", i))
		}
		for _, field := range []string{"name", "kind", "location", "file_mask", "processed_dir"} {
			v, present := m[field]
			if !present {
				return cfgErr(fmt.Sprintf("sources[%d] missing required field %q", i, field))
			}
			if _, isStr := v.(string); !isStr {
				return cfgErr(fmt.Sprintf("sources[%d].%s must be a string", i, field))
			}
		}
		kind, _ := m["kind"].(string)
		params, _ := m["params"].(map[string]interface{})
		switch kind {
		case "SMB":
			if !hasStringParam(params, "username") {
				return cfgErr(fmt.Sprintf("sources[%d]: SMB source requires params.username", i))
			}
		case "FTP", "SFTP":
			if !hasStringParam(params, "username") || !hasStringParam(params, "password") {
				return cfgErr(fmt.Sprintf("sources[%d]: %s source requires params.username and params.password", i, kind))
			}
		}
	}
	return nil
}

func hasStringParam(params map[string]interface{}, key string) bool {
	if params == nil {
		return false
	}
	v, ok := params[key]
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s != ""
}

var validSinkTypes = map[string]bool{"console": true, "sync_file": true, "async_file": true}

func validateLogging(raw interface{}) error {
	if raw == nil {
		return nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return cfgErr("logging must be an array")
	}
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return cfgErr(fmt.Sprintf("logging[%d] must be an object", i))
		}
		typ, _ := m["type"].(string)
		if !validSinkTypes[typ] {
			return cfgErr(fmt.Sprintf("logging[%d].type must be one of console|sync_file|async_file", i))
		}
		if typ == "sync_file" || typ == "async_file" {
			if _, ok := m["path"].(string); !ok {
				return cfgErr(fmt.Sprintf("logging[%d]: %s sink requires path", i, typ))
			}
		}
	}
	return nil
}

func cfgErr(msg string) error {
	return fserrors.New(fserrors.KindConfig, "config.validate", "", fmt.Errorf(msg))
}
