// Package memory implements the storage.Backend interface by exporting every
// saved map set and replay to its own JSON or YAML file, optionally gzipped.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/pkg/core"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Backend keeps an index of exported map hashes and writes one file per save
type Backend struct {
	cfg config.MemoryConfig
	run *core.IngestRun

	hashes   map[string]struct{}
	exported []string

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	return &Backend{
		cfg:    cfg,
		hashes: make(map[string]struct{}),
	}
}

// Init validates the format, creates the output directory and indexes the
// map sets already exported there.
func (b *Backend) Init() error {
	if b.cfg.Format != FormatJSON && b.cfg.Format != FormatYAML {
		return fmt.Errorf("unknown export format: %s", b.cfg.Format)
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	entries, err := os.ReadDir(b.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		if hash, ok := hashFromFilename(e.Name()); ok {
			b.hashes[hash] = struct{}{}
		}
	}
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins a new ingest run
func (b *Backend) StartRun(_ context.Context, run *core.IngestRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	return nil
}

// EndRun writes the run summary
func (b *Backend) EndRun(_ context.Context, run *core.IngestRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = nil
	return b.export("run_"+sanitize(run.ID), run)
}

// HasMap reports whether the hash was exported by this backend or found in
// the output directory at Init.
func (b *Backend) HasMap(_ context.Context, hash string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.hashes[strings.ToUpper(hash)]
	return ok, nil
}

// SaveMap exports a map set
func (b *Backend) SaveMap(_ context.Context, info *core.MapInfo, source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	export := buildMapExport(info, source, b.runID())
	name := fmt.Sprintf("%s_%s", sanitize(info.Song.Title), strings.ToUpper(info.Hash))
	if err := b.export(name, export); err != nil {
		return err
	}

	b.hashes[strings.ToUpper(info.Hash)] = struct{}{}
	return nil
}

// SaveReplay exports a replay
func (b *Backend) SaveReplay(_ context.Context, replay *core.Replay, source string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	export := buildReplayExport(replay, source, b.runID())
	name := fmt.Sprintf("replay_%s_%s_%s_%s",
		sanitize(replay.Info.PlayerName),
		sanitize(replay.Info.SongHash),
		sanitize(replay.Info.Difficulty),
		sanitize(replay.Info.Timestamp),
	)
	return b.export(name, export)
}

// ExportedFiles returns the paths written so far, in order.
func (b *Backend) ExportedFiles() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.exported))
	copy(out, b.exported)
	return out
}

func (b *Backend) runID() string {
	if b.run == nil {
		return ""
	}
	return b.run.ID
}

// hashFromFilename extracts the trailing 40-digit hex hash of an exported
// map file name.
func hashFromFilename(name string) (string, bool) {
	base, _, _ := strings.Cut(name, ".")
	i := strings.LastIndexByte(base, '_')
	if i < 0 || strings.HasPrefix(base, "replay_") || strings.HasPrefix(base, "run_") {
		return "", false
	}
	hash := base[i+1:]
	if len(hash) != 40 {
		return "", false
	}
	for _, c := range hash {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			return "", false
		}
	}
	return hash, true
}

// sanitize makes s safe to use in a file name.
func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	r := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_", ".", "_")
	return r.Replace(s)
}

func (b *Backend) path(name string) string {
	ext := "." + b.cfg.Format
	if b.cfg.CompressOutput {
		ext += ".gz"
	}
	return filepath.Join(b.cfg.OutputDir, name+ext)
}
