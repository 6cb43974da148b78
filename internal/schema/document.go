package schema

import (
	v2 "github.com/sabers-go/sabers/internal/schema/v2"
	v3 "github.com/sabers-go/sabers/internal/schema/v3"
)

// Dialect identifies a family of beatmap document schemas.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectLegacy
	DialectCurrent
)

func (d Dialect) String() string {
	switch d {
	case DialectLegacy:
		return "legacy"
	case DialectCurrent:
		return "current"
	default:
		return "unknown"
	}
}

// Document is an adapted beatmap in one of the supported dialects. The set of
// implementations is closed: LegacyDocument and CurrentDocument.
type Document interface {
	Dialect() Dialect
	// Version is the literal version marker of the source document.
	Version() string

	sealed()
}

// LegacyDocument wraps a document in the "_version" 2.x dialect.
type LegacyDocument struct {
	Map *v2.Beatmap
}

func (LegacyDocument) Dialect() Dialect  { return DialectLegacy }
func (d LegacyDocument) Version() string { return d.Map.Version }
func (LegacyDocument) sealed()           {}

// CurrentDocument wraps a document in the "version" 3.x dialect.
type CurrentDocument struct {
	Map *v3.Beatmap
}

func (CurrentDocument) Dialect() Dialect  { return DialectCurrent }
func (d CurrentDocument) Version() string { return d.Map.Version }
func (CurrentDocument) sealed()           {}
