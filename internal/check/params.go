package check

import (
	"fmt"
	"strconv"
)

// Param extraction for the map[string]interface{} a YAML check spec
// carries. YAML hands integers as int, JSON as float64; both are accepted.

func requireString(params map[string]interface{}, key string) (string, error) {
	val, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required param %q", key)
	}
	str, ok := val.(string)
	if !ok || str == "" {
		return "", fmt.Errorf("param %q must be a non-empty string", key)
	}
	return str, nil
}

func optionalString(params map[string]interface{}, key, defaultVal string) string {
	if val, ok := params[key].(string); ok && val != "" {
		return val
	}
	return defaultVal
}

func optionalInt(params map[string]interface{}, key string, defaultVal int) int {
	switch val := params[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultVal
}

func hasParam(params map[string]interface{}, key string) bool {
	_, ok := params[key]
	return ok
}

func optionalBool(params map[string]interface{}, key string, defaultVal bool) bool {
	if val, ok := params[key].(bool); ok {
		return val
	}
	return defaultVal
}

// stringValue renders any scalar param as its string form, so a profile
// can write value: 0 or value: "0" interchangeably
func stringValue(params map[string]interface{}, key string) (string, bool) {
	val, ok := params[key]
	if !ok {
		return "", false
	}
	switch v := val.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// requireStringValue is stringValue with a missing-param error
func requireStringValue(params map[string]interface{}, key string) (string, error) {
	s, ok := stringValue(params, key)
	if !ok {
		return "", fmt.Errorf("missing required param %q", key)
	}
	if s == "" {
		return "", fmt.Errorf("param %q must not be empty", key)
	}
	return s, nil
}

// stringSlice accepts either a single string or a list of strings
func stringSlice(params map[string]interface{}, key string) ([]string, error) {
	val, ok := params[key]
	if !ok {
		return nil, fmt.Errorf("missing required param %q", key)
	}
	switch v := val.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("param %q must not be empty", key)
		}
		return []string{v}, nil
	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("param %q must not be empty", key)
		}
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("param %q: element %d is not a string", key, i)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("param %q must be a string or list of strings", key)
	}
}
