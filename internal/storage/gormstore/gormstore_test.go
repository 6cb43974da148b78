package gormstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sabers-go/sabers/internal/database"
	"github.com/sabers-go/sabers/internal/logging"
	"github.com/sabers-go/sabers/internal/model"
	"github.com/sabers-go/sabers/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, cfg Config) *Backend {
	t.Helper()

	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSQLite(""))

	b := New(cfg, Dependencies{Manager: m, LogManager: logging.NewSlogManager()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func sampleInfo(hash string) *core.MapInfo {
	return &core.MapInfo{
		Hash:  hash,
		Song:  core.SongMeta{Title: "x=1/0", LevelAuthor: "mapper"},
		Audio: core.AudioMeta{BPM: 128},
		Maps: []core.DifficultyMap{
			{
				Difficulty:     core.DifficultyHard,
				Characteristic: core.CharacteristicStandard,
				Filename:       "Hard.dat",
				Version:        "3.0.0",
				Map:            core.Beatmap{ColorNotes: []core.ColorNote{{Beat: 1, Time: 0.46875}}},
			},
			{
				Difficulty:     core.DifficultyExpert,
				Characteristic: core.CharacteristicOneSaber,
				Filename:       "Expert.dat",
				Version:        "2.0.0",
			},
		},
		Failures: []core.DifficultyFailure{{Characteristic: "Standard", Difficulty: "Easy", Err: errors.New("truncated")}},
	}
}

func TestSaveMap_AndHasMap(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Config{})

	has, err := b.HasMap(ctx, "AAAA")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, b.StartRun(ctx, &core.IngestRun{ID: "run-1", StartedAt: time.Now()}))
	require.NoError(t, b.SaveMap(ctx, sampleInfo("AAAA"), "/maps/a"))

	has, err = b.HasMap(ctx, "AAAA")
	require.NoError(t, err)
	assert.True(t, has)

	var set model.BeatmapSet
	require.NoError(t, b.db.DB.Preload("Difficulties").Preload("Failures").
		Where("hash = ?", "AAAA").First(&set).Error)
	assert.Equal(t, "run-1", set.RunID)
	assert.Equal(t, "/maps/a", set.SourcePath)
	assert.Len(t, set.Difficulties, 2)
	require.Len(t, set.Failures, 1)
	assert.Equal(t, "truncated", set.Failures[0].Error)
}

func TestSaveMap_Duplicate(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Config{})

	require.NoError(t, b.SaveMap(ctx, sampleInfo("BBBB"), "first"))
	require.NoError(t, b.SaveMap(ctx, sampleInfo("BBBB"), "second"))

	var sets []model.BeatmapSet
	require.NoError(t, b.db.DB.Find(&sets).Error)
	require.Len(t, sets, 1)
	assert.Equal(t, "first", sets[0].SourcePath)

	var difficulties int64
	require.NoError(t, b.db.DB.Model(&model.Difficulty{}).Count(&difficulties).Error)
	assert.Equal(t, int64(2), difficulties)
}

func TestSaveReplay(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Config{})

	replay := &core.Replay{
		Info:   core.ReplayInfo{PlayerName: "Reddek", SongHash: "389BC", Score: 1000, Modifiers: []string{"NF"}},
		Frames: []core.ReplayFrame{{Time: 2.5}},
	}
	require.NoError(t, b.SaveReplay(ctx, replay, "r.bsor"))

	var got model.Replay
	require.NoError(t, b.db.DB.First(&got).Error)
	assert.Equal(t, "Reddek", got.PlayerName)
	assert.Equal(t, int32(1000), got.Score)
	assert.Equal(t, uint(1), got.FrameCount)
	assert.Empty(t, got.RunID)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t, Config{})

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := &core.IngestRun{ID: "run-2", StartedAt: start}
	require.NoError(t, b.StartRun(ctx, run))
	assert.Equal(t, "run-2", b.currentRun())

	run.Maps, run.Replays, run.Skipped, run.Failures = 5, 2, 1, 1
	run.FinishedAt = start.Add(90 * time.Second)
	require.NoError(t, b.EndRun(ctx, run))
	assert.Empty(t, b.currentRun())

	var got model.IngestRun
	require.NoError(t, b.db.DB.Where("run_id = ?", "run-2").First(&got).Error)
	assert.Equal(t, uint(5), got.Maps)
	assert.Equal(t, uint(2), got.Replays)
	assert.Equal(t, uint(1), got.Skipped)
	assert.Equal(t, uint(1), got.Failures)
	require.True(t, got.FinishedAt.Valid)
	assert.True(t, got.FinishedAt.Time.Equal(run.FinishedAt))

	assert.Error(t, b.EndRun(ctx, &core.IngestRun{ID: "never-started"}))
}

func TestClose_DumpsInMemoryDB(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sabers.db")

	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSQLite(""))
	b := New(Config{DumpInterval: time.Hour, DumpPath: path}, Dependencies{Manager: m, LogManager: logging.NewSlogManager()})
	require.NoError(t, b.Init())
	require.NoError(t, b.SaveMap(ctx, sampleInfo("CCCC"), "c"))

	require.NoError(t, b.Close())
	_, err := os.Stat(path)
	require.NoError(t, err)

	disk := database.NewManager(zerolog.Nop())
	require.NoError(t, disk.ConnectSQLite(path))
	t.Cleanup(func() { disk.Close() })

	var count int64
	require.NoError(t, disk.DB.Model(&model.BeatmapSet{}).Where("hash = ?", "CCCC").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b := newTestBackend(t, Config{DumpInterval: 10 * time.Millisecond, DumpPath: path})

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Close())
}
