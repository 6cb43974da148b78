package memory

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testHash = "0123456789ABCDEF0123456789ABCDEF01234567"

func sampleInfo() *core.MapInfo {
	return &core.MapInfo{
		Hash:        testHash,
		Song:        core.SongMeta{Title: "x=1/0: remix", Author: "author", LevelAuthor: "mapper"},
		Audio:       core.AudioMeta{BPM: 120, AudioPath: "song.egg"},
		Environment: "DefaultEnvironment",
		Maps: []core.DifficultyMap{{
			Difficulty:     core.DifficultyExpert,
			Characteristic: core.CharacteristicStandard,
			Filename:       "Expert.dat",
			Version:        "2.6.0",
			Map: core.Beatmap{
				ColorNotes: []core.ColorNote{{Beat: 2, Time: 1}, {Beat: 4, Time: 2}},
			},
		}},
		Failures: []core.DifficultyFailure{
			{Characteristic: "Lawless", Difficulty: "Hard", Filename: "Hard.dat", Err: errors.New("bad note")},
		},
	}
}

func newBackend(t *testing.T, cfg config.MemoryConfig) *Backend {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	b := New(cfg)
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func readExport(t *testing.T, path string, compressed bool) []byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		r = gz
	}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestNew_DefaultsToJSON(t *testing.T) {
	b := New(config.MemoryConfig{})
	assert.Equal(t, FormatJSON, b.cfg.Format)
	assert.Empty(t, b.ExportedFiles())
}

func TestInit_UnknownFormat(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir(), Format: "toml"})
	assert.Error(t, b.Init())
}

func TestSaveMap_JSON(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, config.MemoryConfig{})

	require.NoError(t, b.StartRun(ctx, &core.IngestRun{ID: "run-1"}))
	require.NoError(t, b.SaveMap(ctx, sampleInfo(), "/maps/1a2b.zip"))

	files := b.ExportedFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "x=1_0__remix_"+testHash+".json", filepath.Base(files[0]))

	var got MapExport
	require.NoError(t, json.Unmarshal(readExport(t, files[0], false), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "/maps/1a2b.zip", got.Source)
	assert.Equal(t, testHash, got.Hash)
	require.Len(t, got.Maps, 1)
	assert.Equal(t, core.DifficultyExpert, got.Maps[0].Difficulty)
	assert.Equal(t, 2.0, got.Maps[0].Length)
	assert.Equal(t, 1.0, got.Maps[0].NPS)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "bad note", got.Failures[0].Error)

	has, err := b.HasMap(ctx, strings.ToLower(testHash))
	require.NoError(t, err)
	assert.True(t, has)

	has, err = b.HasMap(ctx, "FFFF")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSaveMap_CompressedYAML(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, config.MemoryConfig{CompressOutput: true, Format: FormatYAML})

	require.NoError(t, b.SaveMap(ctx, sampleInfo(), "maps/a"))

	files := b.ExportedFiles()
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], ".yaml.gz"))

	var got MapExport
	require.NoError(t, yaml.Unmarshal(readExport(t, files[0], true), &got))
	assert.Empty(t, got.RunID)
	assert.Equal(t, "x=1/0: remix", got.Song.Title)
	require.Len(t, got.Maps, 1)
	assert.Equal(t, "Expert.dat", got.Maps[0].Filename)
	assert.Len(t, got.Maps[0].Map.ColorNotes, 2)
}

func TestInit_IndexesExistingExports(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newBackend(t, config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, first.SaveMap(ctx, sampleInfo(), "a"))

	second := newBackend(t, config.MemoryConfig{OutputDir: dir})
	has, err := second.HasMap(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestSaveReplay(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, config.MemoryConfig{})

	replay := &core.Replay{
		Info: core.ReplayInfo{
			PlayerName: "Reddek",
			SongHash:   "389BC",
			Difficulty: "ExpertPlus",
			Timestamp:  "1683565284",
			Modifiers:  []string{"FS"},
		},
		Frames: []core.ReplayFrame{{Time: 0.5, FPS: 90}, {Time: 1.5, FPS: 90}},
	}
	require.NoError(t, b.SaveReplay(ctx, replay, "r.bsor"))

	files := b.ExportedFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "replay_Reddek_389BC_ExpertPlus_1683565284.json", filepath.Base(files[0]))

	var got ReplayExport
	require.NoError(t, json.Unmarshal(readExport(t, files[0], false), &got))
	assert.Equal(t, 2, got.FrameCount)
	assert.Equal(t, float32(1.5), got.Duration)
	assert.Equal(t, []string{"FS"}, got.Info.Modifiers)

	has, err := b.HasMap(ctx, "389BC")
	require.NoError(t, err)
	assert.False(t, has, "replays are not indexed as maps")
}

func TestEndRun_WritesSummary(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, config.MemoryConfig{})

	run := &core.IngestRun{ID: "run-9", StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Maps: 3, Failures: 1}
	require.NoError(t, b.StartRun(ctx, run))
	run.FinishedAt = run.StartedAt.Add(time.Minute)
	require.NoError(t, b.EndRun(ctx, run))

	files := b.ExportedFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "run_run-9.json", filepath.Base(files[0]))

	var got core.IngestRun
	require.NoError(t, json.Unmarshal(readExport(t, files[0], false), &got))
	assert.Equal(t, *run, got)
	assert.Empty(t, b.runID())
}

func TestHashFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"Song_" + testHash + ".json", testHash, true},
		{"Song_with_underscores_" + testHash + ".yaml.gz", testHash, true},
		{"Song_" + strings.ToLower(testHash) + ".json", "", false},
		{"Song_ABC.json", "", false},
		{"replay_a_" + testHash + ".json", "", false},
		{"run_" + testHash + ".json", "", false},
		{"nounderscore.json", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := hashFromFilename(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "unknown", sanitize(""))
	assert.Equal(t, "a_b_c_d_e_f", sanitize("a b:c/d\\e.f"))
}
