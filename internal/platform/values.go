package platform

import (
	"strconv"

	"rankitopixel/internal/pkg/money"
)

// dig walks nested map[string]any values; any miss returns nil.
func dig(v any, path ...string) any {
	current := v
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// digMap returns a nested map, or nil.
func digMap(v any, path ...string) map[string]any {
	m, _ := dig(v, path...).(map[string]any)
	return m
}

// digString returns a nested string, or empty.
func digString(v any, path ...string) string {
	s, _ := dig(v, path...).(string)
	return s
}

// toFloat coerces JSON-ish numeric values. Strings go through the
// localized price parser so "1.234,56" still resolves.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
		return money.ParseAmount(n)
	default:
		return 0, false
	}
}

// toInt coerces JSON-ish numeric values to int.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
