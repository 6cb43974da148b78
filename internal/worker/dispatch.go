package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sabers-go/sabers/internal/bsor"
	"github.com/sabers-go/sabers/internal/dispatcher"
	"github.com/sabers-go/sabers/internal/mapfs"
	"github.com/sabers-go/sabers/internal/mapinfo"
)

// RegisterHandlers registers the map and replay handlers with the dispatcher.
// opts are applied to both, e.g. dispatcher.Buffered for watch mode.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher, opts ...dispatcher.Option) {
	opts = append(opts, dispatcher.Logged())
	d.Register(CommandMap, m.handleMap, opts...)
	d.Register(CommandReplay, m.handleReplay, opts...)
}

func (m *Manager) handleMap(e dispatcher.Event) (any, error) {
	return m.IngestMap(context.Background(), e.Path)
}

func (m *Manager) handleReplay(e dispatcher.Event) (any, error) {
	return nil, m.IngestReplay(context.Background(), e.Path)
}

// IngestMap loads the map set at path (directory or zip) and stores it.
// Maps whose content hash is already known are skipped when duplicates
// are skipped.
func (m *Manager) IngestMap(ctx context.Context, path string) (Outcome, error) {
	fsys, err := mapfs.Open(path)
	if err != nil {
		return Failed, m.fail(CommandMap, path, fmt.Errorf("failed to open map: %w", err))
	}
	defer fsys.Close()

	if m.deps.SkipDuplicates {
		hash, err := mapinfo.Hash(fsys)
		if err != nil {
			return Failed, m.fail(CommandMap, path, fmt.Errorf("failed to hash map: %w", err))
		}
		if dup, err := m.known(ctx, hash); err != nil {
			return Failed, m.fail(CommandMap, path, err)
		} else if dup {
			m.skipped.Inc()
			m.logger().Debug("Skipping known map", "path", path, "hash", hash)
			return Skipped, nil
		}
	}

	info, err := m.deps.Loader.Load(ctx, fsys)
	if err != nil {
		return Failed, m.fail(CommandMap, path, fmt.Errorf("failed to load map: %w", err))
	}
	if !m.deps.HashCache.TryAdd(info.Hash) && m.deps.SkipDuplicates {
		m.skipped.Inc()
		return Skipped, nil
	}

	if err := m.backend.SaveMap(ctx, info, path); err != nil {
		return Failed, m.fail(CommandMap, path, fmt.Errorf("failed to save map: %w", err))
	}
	m.maps.Inc()

	if m.deps.Influx != nil {
		if err := m.deps.Influx.WriteMap(info, m.RunID(), time.Now()); err != nil {
			m.logger().Warn("Failed to write map metrics", "path", path, "error", err)
		}
	}

	for _, f := range info.Failures {
		m.logger().Warn("Difficulty skipped",
			"path", path, "characteristic", f.Characteristic, "difficulty", f.Difficulty, "error", f.Err)
	}
	m.logger().Info("Stored map", "path", path, "hash", info.Hash,
		"title", info.Song.Title, "difficulties", len(info.Maps))
	return Stored, nil
}

// known reports whether hash was handled by this process or is in the backend.
func (m *Manager) known(ctx context.Context, hash string) (bool, error) {
	if m.deps.HashCache.Seen(hash) {
		return true, nil
	}
	ok, err := m.backend.HasMap(ctx, hash)
	if err != nil {
		return false, fmt.Errorf("failed to look up map %s: %w", hash, err)
	}
	if ok {
		m.deps.HashCache.Add(hash)
	}
	return ok, nil
}

// IngestReplay decodes the replay at path and stores it.
func (m *Manager) IngestReplay(ctx context.Context, path string) error {
	replay, err := bsor.ReadFile(path)
	if err != nil {
		return m.fail(CommandReplay, path, fmt.Errorf("failed to read replay: %w", err))
	}

	if err := m.backend.SaveReplay(ctx, replay, path); err != nil {
		return m.fail(CommandReplay, path, fmt.Errorf("failed to save replay: %w", err))
	}
	m.replays.Inc()

	if m.deps.Influx != nil {
		if err := m.deps.Influx.WriteReplay(replay, m.RunID(), time.Now()); err != nil {
			m.logger().Warn("Failed to write replay metrics", "path", path, "error", err)
		}
	}

	m.logger().Info("Stored replay", "path", path,
		"player", replay.Info.PlayerName, "song", replay.Info.SongName, "frames", len(replay.Frames))
	return nil
}
