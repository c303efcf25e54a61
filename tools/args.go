package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cast"
)

// Kind tags the JSON shape of an argument value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is a loosely typed argument as decoded from the model's JSON payload
type Value struct {
	raw any
}

// ValueOf wraps a decoded JSON value
func ValueOf(v any) Value {
	return Value{raw: v}
}

func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return KindNumber
	case bool:
		return KindBool
	case []any, []string:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindString
	}
}

// Raw returns the underlying decoded value
func (v Value) Raw() any { return v.raw }

// ArgError reports a missing or malformed argument
type ArgError struct {
	Param  string
	Reason string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Param, e.Reason)
}

// Args holds the named arguments of one tool call
type Args map[string]any

// Get returns the value for name and whether it was supplied (a JSON null counts as absent)
func (a Args) Get(name string) (Value, bool) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return Value{}, false
	}
	return ValueOf(raw), true
}

func (a Args) require(name string) (Value, error) {
	v, ok := a.Get(name)
	if !ok {
		return Value{}, &ArgError{Param: name, Reason: "required"}
	}
	return v, nil
}

// String returns a string argument; numbers and booleans are rendered as text
func (a Args) String(name string) (string, error) {
	v, err := a.require(name)
	if err != nil {
		return "", err
	}
	switch v.Kind() {
	case KindArray, KindObject:
		return "", &ArgError{Param: name, Reason: "expected string, got " + v.Kind().String()}
	}
	s, err := cast.ToStringE(v.raw)
	if err != nil {
		return "", &ArgError{Param: name, Reason: err.Error()}
	}
	return s, nil
}

// StringOr returns the string argument or def when absent
func (a Args) StringOr(name, def string) (string, error) {
	if _, ok := a.Get(name); !ok {
		return def, nil
	}
	return a.String(name)
}

// Int returns an integer argument. Numeric strings are accepted, fractional numbers are not.
func (a Args) Int(name string) (int64, error) {
	v, err := a.require(name)
	if err != nil {
		return 0, err
	}
	switch v.Kind() {
	case KindNumber, KindString:
	default:
		return 0, &ArgError{Param: name, Reason: "expected integer, got " + v.Kind().String()}
	}
	switch n := v.raw.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := cast.ToFloat64E(v.raw)
	if err != nil {
		return 0, &ArgError{Param: name, Reason: "expected integer: " + err.Error()}
	}
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, &ArgError{Param: name, Reason: fmt.Sprintf("expected integer, got %v", f)}
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, &ArgError{Param: name, Reason: fmt.Sprintf("integer out of range: %v", f)}
	}
	return int64(f), nil
}

// IntOr returns the integer argument or def when absent
func (a Args) IntOr(name string, def int64) (int64, error) {
	if _, ok := a.Get(name); !ok {
		return def, nil
	}
	return a.Int(name)
}

// Float returns a numeric argument
func (a Args) Float(name string) (float64, error) {
	v, err := a.require(name)
	if err != nil {
		return 0, err
	}
	switch v.Kind() {
	case KindNumber, KindString:
	default:
		return 0, &ArgError{Param: name, Reason: "expected number, got " + v.Kind().String()}
	}
	f, err := cast.ToFloat64E(v.raw)
	if err != nil {
		return 0, &ArgError{Param: name, Reason: "expected number: " + err.Error()}
	}
	return f, nil
}

// Bool returns a boolean argument; "true"/"false" strings are accepted
func (a Args) Bool(name string) (bool, error) {
	v, err := a.require(name)
	if err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(v.raw)
	if err != nil {
		return false, &ArgError{Param: name, Reason: "expected boolean: " + err.Error()}
	}
	return b, nil
}

// Strings returns an array argument as strings.
// A bare string is accepted as a one-element list.
func (a Args) Strings(name string) ([]string, error) {
	v, err := a.require(name)
	if err != nil {
		return nil, err
	}
	switch v.Kind() {
	case KindString:
		return []string{v.raw.(string)}, nil
	case KindArray:
	default:
		return nil, &ArgError{Param: name, Reason: "expected array, got " + v.Kind().String()}
	}
	out, err := cast.ToStringSliceE(v.raw)
	if err != nil {
		return nil, &ArgError{Param: name, Reason: err.Error()}
	}
	return out, nil
}
