// Package schema detects the dialect of a beatmap document and routes it to
// the matching adapter.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/sabers-go/sabers/internal/schema/field"
	v2 "github.com/sabers-go/sabers/internal/schema/v2"
	v3 "github.com/sabers-go/sabers/internal/schema/v3"
)

const (
	versionKey       = "version"
	legacyVersionKey = "_version"

	unknownVersion = "unknown"
)

// UnsupportedVersionError is returned when a document has no version marker
// or its major version has no adapter.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return "unsupported version: " + e.Version
}

// DecodeFunc decodes raw bytes into a generic tree of maps, slices, and
// scalars. Numbers may be json.Number or float64.
type DecodeFunc func(data []byte) (any, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDecoder replaces the default encoding/json decoder.
func WithDecoder(fn DecodeFunc) Option {
	return func(d *Dispatcher) {
		d.decode = fn
	}
}

// Dispatcher detects document dialects and adapts them. It is read-only after
// construction and safe for concurrent use.
type Dispatcher struct {
	decode  DecodeFunc
	sniffer *regexp.Regexp
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		decode:  DecodeJSON,
		sniffer: regexp.MustCompile(`"(_?version)"\s*:\s*"([^"\\]*)"`),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeJSON is the default DecodeFunc. Numbers are kept as json.Number so
// integer fields can be told apart from fractional ones.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

// Parse decodes and adapts a raw document.
func (d *Dispatcher) Parse(data []byte) (Document, error) {
	tree, err := d.decode(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding document: %w", err)
	}
	return d.Adapt(tree)
}

// Adapt detects the dialect of an already decoded tree and adapts it. The
// version marker alone decides the dialect.
func (d *Dispatcher) Adapt(tree any) (Document, error) {
	root, err := field.Root(tree)
	if err != nil {
		return nil, err
	}

	version, ok := DetectVersion(tree)
	if !ok {
		return nil, &UnsupportedVersionError{Version: unknownVersion}
	}

	switch Major(version) {
	case "2":
		bm, err := v2.Adapt(root)
		if err != nil {
			return nil, err
		}
		return LegacyDocument{Map: bm}, nil
	case "3":
		bm, err := v3.Adapt(root)
		if err != nil {
			return nil, err
		}
		return CurrentDocument{Map: bm}, nil
	default:
		return nil, &UnsupportedVersionError{Version: version}
	}
}

// Sniff finds the version marker in raw text without decoding it. As in
// DetectVersion, a "version" marker takes precedence over "_version".
func (d *Dispatcher) Sniff(data []byte) (string, bool) {
	var legacy string
	found := false
	for _, m := range d.sniffer.FindAllSubmatch(data, -1) {
		if string(m[1]) == versionKey {
			return string(m[2]), true
		}
		if !found {
			legacy, found = string(m[2]), true
		}
	}
	return legacy, found
}

// DetectVersion reads the version marker of a decoded document. The current
// dialect's "version" takes precedence over the legacy "_version".
func DetectVersion(tree any) (string, bool) {
	m, ok := tree.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{versionKey, legacyVersionKey} {
		if v, ok := m[key].(string); ok {
			return v, true
		}
	}
	return "", false
}

// Major returns the major component of a dotted version string.
func Major(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major
}
