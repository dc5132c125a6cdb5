package workflow

import "github.com/sigreer/phoenixforge/internal/ferr"

func stringParam(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func requireString(params map[string]interface{}, action, key string) (string, error) {
	s, ok := stringParam(params, key)
	if !ok || s == "" {
		return "", ferr.Newf(ferr.Precondition, "%s: missing required param %q", action, key)
	}
	return s, nil
}

func boolParam(params map[string]interface{}, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func intParam(params map[string]interface{}, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
