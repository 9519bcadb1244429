package update

import (
	"encoding/json"
	"math"
	"strings"

	null "gopkg.in/guregu/null.v3"
)

// Extract navigates nested mappings along a dotted path ("a.b.c")
// and returns the value found at the end of it.
// def is returned as soon as a segment is missing or an intermediate
// value is not a mapping.
func Extract(data map[string]interface{}, path string, def interface{}) interface{} {
	if data == nil {
		return def
	}

	segment, rest, nested := strings.Cut(path, ".")
	value, ok := data[segment]
	if !ok {
		return def
	}

	if !nested {
		return value
	}

	next, ok := value.(map[string]interface{})
	if !ok {
		return def
	}

	return Extract(next, rest, def)
}

// ExtractInt extracts an integer value. Non-integer values yield an invalid null.Int.
func ExtractInt(data map[string]interface{}, path string) null.Int {
	if value, ok := Int64(Extract(data, path, nil)); ok {
		return null.IntFrom(value)
	}

	return null.Int{}
}

// ExtractString extracts a string value. Non-string values yield an invalid null.String.
func ExtractString(data map[string]interface{}, path string) null.String {
	if value, ok := Extract(data, path, nil).(string); ok {
		return null.StringFrom(value)
	}

	return null.String{}
}

// ExtractMap extracts a nested mapping, nil if absent.
func ExtractMap(data map[string]interface{}, path string) map[string]interface{} {
	value, _ := Extract(data, path, nil).(map[string]interface{})
	return value
}

// Int64 converts the numeric representations produced by JSON decoding
// (with or without UseNumber) into an int64.
func Int64(value interface{}) (int64, bool) {
	switch value := value.(type) {
	case json.Number:
		n, err := value.Int64()
		return n, err == nil
	case float64:
		if value != math.Trunc(value) || math.IsInf(value, 0) {
			return 0, false
		}

		return int64(value), true
	case int:
		return int64(value), true
	case int64:
		return value, true
	case int32:
		return int64(value), true
	default:
		return 0, false
	}
}
