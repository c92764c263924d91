package tool

import (
	"encoding/json"
	"math"
	"strings"
)

// Args are the untyped arguments of one invocation, as decoded from JSON.
// A nil Args means the caller supplied no argument object at all.
type Args map[string]interface{}

// Has reports whether key is present, even with a null value.
func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// String returns the value at key if it is a string.
func (a Args) String(key string) (string, bool) {
	s, ok := a[key].(string)
	return s, ok
}

// TrimmedString returns the whitespace-trimmed string at key, or "" when the
// value is missing or not a string.
func (a Args) TrimmedString(key string) string {
	s, _ := a.String(key)
	return strings.TrimSpace(s)
}

// Int returns the value at key as an int. JSON numbers decode as float64, so
// whole floats and json.Number values are accepted; fractional values are not.
func (a Args) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.Abs(v) >= math.MaxInt {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Float returns the value at key as a float64.
func (a Args) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Bool returns the value at key if it is a bool.
func (a Args) Bool(key string) (bool, bool) {
	b, ok := a[key].(bool)
	return b, ok
}

// List returns the value at key if it is a JSON array.
func (a Args) List(key string) ([]interface{}, bool) {
	l, ok := a[key].([]interface{})
	return l, ok
}

// Map returns the value at key if it is a JSON object.
func (a Args) Map(key string) (map[string]interface{}, bool) {
	switch v := a[key].(type) {
	case map[string]interface{}:
		return v, true
	case Args:
		return v, true
	}
	return nil, false
}

// Clone returns a shallow copy. Cloning nil yields nil.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
