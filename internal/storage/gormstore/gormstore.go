// Package gormstore implements the storage.Backend interface on a GORM
// database: Postgres, a SQLite file, or an in-memory SQLite database
// periodically dumped to disk via VACUUM INTO.
package gormstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sabers-go/sabers/internal/database"
	"github.com/sabers-go/sabers/internal/logging"
	"github.com/sabers-go/sabers/internal/model"
	"github.com/sabers-go/sabers/internal/model/convert"
	"github.com/sabers-go/sabers/pkg/core"
)

// Config holds configuration for periodic dumps of an in-memory database.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for VACUUM INTO dumps
}

// Dependencies holds the connected database and logging.
type Dependencies struct {
	Manager    *database.Manager
	LogManager *logging.SlogManager
}

// Backend stores map sets and replays as GORM models.
type Backend struct {
	db  *database.Manager
	cfg Config
	log *logging.SlogManager

	mu    sync.RWMutex
	runID string

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(cfg Config, deps Dependencies) *Backend {
	return &Backend{
		db:       deps.Manager,
		cfg:      cfg,
		log:      deps.LogManager,
		stopChan: make(chan struct{}),
	}
}

// Init migrates the schema and starts the dump goroutine for in-memory databases.
func (b *Backend) Init() error {
	if err := b.db.Setup(); err != nil {
		return err
	}

	if b.shouldDump() && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()

	if b.shouldDump() && b.db.IsValid {
		if err := b.db.DumpMemoryToDisk(b.cfg.DumpPath); err != nil {
			b.log.WriteLog("gormstore:Close", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
		}
	}
	return b.db.Close()
}

func (b *Backend) shouldDump() bool {
	return b.db.InMemory && b.cfg.DumpPath != ""
}

// StartRun records the start of an ingest run.
func (b *Backend) StartRun(ctx context.Context, run *core.IngestRun) error {
	row := model.IngestRun{
		RunID:     run.ID,
		StartedAt: run.StartedAt,
	}
	if err := b.db.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error creating ingest run %s: %w", run.ID, err)
	}

	b.mu.Lock()
	b.runID = run.ID
	b.mu.Unlock()
	return nil
}

// EndRun records the counters and finish time of an ingest run.
func (b *Backend) EndRun(ctx context.Context, run *core.IngestRun) error {
	b.mu.Lock()
	b.runID = ""
	b.mu.Unlock()

	res := b.db.DB.WithContext(ctx).Model(&model.IngestRun{}).
		Where("run_id = ?", run.ID).
		Updates(map[string]any{
			"finished_at": sql.NullTime{Time: run.FinishedAt, Valid: !run.FinishedAt.IsZero()},
			"maps":        run.Maps,
			"replays":     run.Replays,
			"skipped":     run.Skipped,
			"failures":    run.Failures,
		})
	if res.Error != nil {
		return fmt.Errorf("error updating ingest run %s: %w", run.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("ingest run %s not started", run.ID)
	}
	return nil
}

// HasMap reports whether a map set with the given hash is stored.
func (b *Backend) HasMap(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := b.db.DB.WithContext(ctx).Model(&model.BeatmapSet{}).
		Where("hash = ?", hash).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error looking up map %s: %w", hash, err)
	}
	return count > 0, nil
}

// SaveMap stores a map set with its difficulties and failures. A set whose
// hash is already stored is left untouched.
func (b *Backend) SaveMap(ctx context.Context, info *core.MapInfo, source string) error {
	set, err := convert.CoreToBeatmapSet(*info, b.currentRun(), source)
	if err != nil {
		return err
	}

	created, err := set.GetOrInsert(b.db.DB.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("error saving map %s: %w", info.Hash, err)
	}
	if !created {
		b.log.WriteLog("gormstore:SaveMap", fmt.Sprintf("Map %s already stored as %d", info.Hash, set.ID), "DEBUG")
	}
	return nil
}

// SaveReplay stores a replay header.
func (b *Backend) SaveReplay(ctx context.Context, replay *core.Replay, source string) error {
	row := convert.CoreToReplay(*replay, b.currentRun(), source)
	if err := b.db.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error saving replay %s: %w", source, err)
	}
	return nil
}

func (b *Backend) currentRun() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.runID
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.db.DumpMemoryToDisk(b.cfg.DumpPath); err != nil {
				b.log.WriteLog("gormstore:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			} else {
				b.log.WriteLog("gormstore:dumpLoop", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
			}
		}
	}
}
