package adapters

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ReadString returns the trimmed string stored under key.
func ReadString(config map[string]any, key string) (string, bool) {
	value, ok := config[key]
	if !ok {
		return "", false
	}
	switch cast := value.(type) {
	case string:
		trimmed := strings.TrimSpace(cast)
		return trimmed, trimmed != ""
	case json.Number:
		return cast.String(), true
	default:
		return "", false
	}
}

// RequireString is ReadString for mandatory keys.
func RequireString(config map[string]any, key string) (string, error) {
	value, ok := ReadString(config, key)
	if !ok {
		return "", missingKey(key)
	}
	return value, nil
}

// ReadStrings accepts a list, a single string, or a comma separated string.
func ReadStrings(config map[string]any, key string) []string {
	var raw []string
	switch cast := config[key].(type) {
	case string:
		raw = strings.Split(cast, ",")
	case []string:
		raw = cast
	case []any:
		for _, item := range cast {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func ReadBool(config map[string]any, key string) bool {
	switch cast := config[key].(type) {
	case bool:
		return cast
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(cast))
		return err == nil && parsed
	}
	return false
}

func ReadInt(config map[string]any, key string, fallback int64) int64 {
	switch cast := config[key].(type) {
	case int:
		return int64(cast)
	case int64:
		return cast
	case float64:
		return int64(cast)
	case json.Number:
		if parsed, err := cast.Int64(); err == nil {
			return parsed
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(cast), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
