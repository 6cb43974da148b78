// Package field reads typed values out of a generic decoded JSON tree and
// reports structural problems with the full path of the offending field.
package field

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Error is a structural decode error: a required field is missing or has the
// wrong shape.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("field %s: %s", e.Path, e.Reason)
}

// Object is a JSON object together with its path from the document root.
type Object struct {
	path string
	m    map[string]any
}

// Root wraps the top-level value of a document. It fails when the document
// is not a JSON object.
func Root(v any) (Object, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Object{}, &Error{Path: "$", Reason: fmt.Sprintf("expected object, got %s", kind(v))}
	}
	return Object{path: "", m: m}, nil
}

// Path returns the location of the object inside the document.
func (o Object) Path() string {
	if o.path == "" {
		return "$"
	}
	return o.path
}

func (o Object) join(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

// Has reports whether key is present, even if its value is null.
func (o Object) Has(key string) bool {
	_, ok := o.m[key]
	return ok
}

// Wrap attaches the path of key to err. It is used for errors produced by
// value decoders that know nothing about the document structure.
func (o Object) Wrap(key string, err error) error {
	return fmt.Errorf("field %s: %w", o.join(key), err)
}

// Fail builds a structural error for key.
func (o Object) Fail(key, format string, args ...any) error {
	return &Error{Path: o.join(key), Reason: fmt.Sprintf(format, args...)}
}

func (o Object) get(key string) (any, error) {
	v, ok := o.m[key]
	if !ok || v == nil {
		return nil, &Error{Path: o.join(key), Reason: "missing required field"}
	}
	return v, nil
}

// String returns a required string field.
func (o Object) String(key string) (string, error) {
	v, err := o.get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", o.Fail(key, "expected string, got %s", kind(v))
	}
	return s, nil
}

// OptString returns a string field or def when it is absent.
func (o Object) OptString(key, def string) (string, error) {
	if v, ok := o.m[key]; !ok || v == nil {
		return def, nil
	}
	return o.String(key)
}

// Float returns a required numeric field.
func (o Object) Float(key string) (float64, error) {
	v, err := o.get(key)
	if err != nil {
		return 0, err
	}
	f, ok := number(v)
	if !ok {
		return 0, o.Fail(key, "expected number, got %s", kind(v))
	}
	return f, nil
}

// OptFloat returns a numeric field and whether it was present.
func (o Object) OptFloat(key string) (float64, bool, error) {
	if v, ok := o.m[key]; !ok || v == nil {
		return 0, false, nil
	}
	f, err := o.Float(key)
	return f, err == nil, err
}

// Int returns a required integral field. Numbers written with a fractional
// zero, such as 3.0, are accepted.
func (o Object) Int(key string) (int, error) {
	v, err := o.get(key)
	if err != nil {
		return 0, err
	}
	if n, ok := v.(json.Number); ok {
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return int(i), nil
		}
	}
	f, ok := number(v)
	if !ok {
		return 0, o.Fail(key, "expected integer, got %s", kind(v))
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, o.Fail(key, "expected integer, got %v", f)
	}
	return int(f), nil
}

// Array returns a required array field.
func (o Object) Array(key string) ([]any, error) {
	v, err := o.get(key)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]any)
	if !ok {
		return nil, o.Fail(key, "expected array, got %s", kind(v))
	}
	return a, nil
}

// OptArray returns an array field, or nil when it is absent.
func (o Object) OptArray(key string) ([]any, error) {
	if v, ok := o.m[key]; !ok || v == nil {
		return nil, nil
	}
	return o.Array(key)
}

// OptObject returns a nested object field and whether it was present.
func (o Object) OptObject(key string) (Object, bool, error) {
	v, ok := o.m[key]
	if !ok || v == nil {
		return Object{}, false, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Object{}, false, o.Fail(key, "expected object, got %s", kind(v))
	}
	return Object{path: o.join(key), m: m}, true, nil
}

// Objects converts the elements of an array field into Objects. Every
// element must be a JSON object.
func (o Object) Objects(key string, items []any) ([]Object, error) {
	out := make([]Object, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("%s[%d]", o.join(key), i)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &Error{Path: path, Reason: fmt.Sprintf("expected object, got %s", kind(item))}
		}
		out = append(out, Object{path: path, m: m})
	}
	return out, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		if _, ok := number(v); ok {
			return "number"
		}
		return fmt.Sprintf("%T", v)
	}
}
