package storage

import (
	"context"

	"github.com/sabers-go/sabers/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(ctx context.Context, run *core.IngestRun) error
	EndRun(ctx context.Context, run *core.IngestRun) error

	// HasMap reports whether a map set with the given content hash is stored.
	HasMap(ctx context.Context, hash string) (bool, error)

	// SaveMap stores a loaded map set. source is the directory or archive it
	// was read from.
	SaveMap(ctx context.Context, info *core.MapInfo, source string) error

	// SaveReplay stores a decoded replay read from source.
	SaveReplay(ctx context.Context, replay *core.Replay, source string) error
}

// Exporter is an optional interface for storage backends that write files.
type Exporter interface {
	ExportedFiles() []string
}
