package osm

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Record is one raw entry of a document's "elements" array, as produced by a
// JSON decoder. Numeric fields may arrive as JSON numbers or as strings.
type Record map[string]any

// intValue converts a loosely typed scalar to an int64.
func intValue(v any) (int64, bool) {
	switch x := v.(type) {
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	case json.Number:
		if n, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return n, true
		}
		// 7.0 and 1e3 are still whole numbers
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		return intValue(f)
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

// floatValue converts a loosely typed scalar to a float64.
func floatValue(v any) (float64, bool) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// textValue renders a scalar as text. Strings pass through unchanged, numbers
// and booleans keep their JSON spelling.
func textValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return string(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// intOr returns the integer stored under key, or def when the field is absent
// or unparsable. The second result reports whether def was taken.
func (r Record) intOr(key string, def int64) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return def, true
	}
	n, ok := intValue(v)
	if !ok {
		return def, true
	}
	return n, false
}

// timestampOr returns the parsed timestamp stored under key, or def when the
// field is absent or malformed.
func (r Record) timestampOr(key string, def int64) (int64, bool) {
	s, ok := r[key].(string)
	if !ok {
		return def, true
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return def, true
	}
	return ts, false
}

// requireInt returns the integer stored under key.
func (r Record) requireInt(key string) (int64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return intValue(v)
}

// requireFloat returns the float stored under key.
func (r Record) requireFloat(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return floatValue(v)
}

// typeName returns the record's "type" string, or "" if it has none.
func (r Record) typeName() string {
	s, _ := r["type"].(string)
	return s
}
