package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabers-go/sabers/internal/bsor"
	"github.com/sabers-go/sabers/internal/config"
	"github.com/sabers-go/sabers/internal/dispatcher"
	"github.com/sabers-go/sabers/internal/worker"
	"github.com/sabers-go/sabers/pkg/core"
)

const testInfo = `{
	"_version": "2.0.0",
	"_songName": "x=1/0",
	"_songAuthorName": "Alpha Cancri",
	"_levelAuthorName": "mapper",
	"_beatsPerMinute": 120,
	"_songFilename": "song.egg",
	"_coverImageFilename": "cover.jpg",
	"_environmentName": "DefaultEnvironment",
	"_difficultyBeatmapSets": [{
		"_beatmapCharacteristicName": "Standard",
		"_difficultyBeatmaps": [
			{"_difficulty": "Expert", "_difficultyRank": 7, "_beatmapFilename": "Expert.dat", "_noteJumpMovementSpeed": 16, "_noteJumpStartBeatOffset": 0}
		]
	}]
}`

const testExpert = `{"version": "3.2.0", "colorNotes": [{"b": 2, "x": 1, "y": 0, "c": 0, "d": 1}, {"b": 4, "x": 2, "y": 0, "c": 1, "d": 1}]}`

// testEnv writes a config file pointing logs and exports into temp dirs.
func testEnv(t *testing.T) (configDir, outputDir string) {
	t.Helper()
	configDir = t.TempDir()
	outputDir = t.TempDir()
	cfg := map[string]any{
		"logsDir": filepath.Join(configDir, "logs"),
		"storage": map[string]any{
			"type": "memory",
			"memory": map[string]any{
				"outputDir":      outputDir,
				"compressOutput": false,
				"format":         "json",
			},
		},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(configDir, config.FileName), data, 0o644))
	t.Cleanup(viper.Reset)
	return configDir, outputDir
}

func runCmd(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--config", configDir))
	defer shutdown()
	err := root.Execute()
	return out.String(), err
}

func writeMapDir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Info.dat"), []byte(testInfo), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Expert.dat"), []byte(testExpert), 0o644))
	return dir
}

func writeMapZip(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{"info.dat": testInfo, "Expert.dat": testExpert} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func writeReplay(t *testing.T, path string) {
	t.Helper()
	data, err := bsor.Serialize(&core.Replay{
		Info: core.ReplayInfo{
			PlayerName: "Reddek",
			PlayerID:   "76561198000000000",
			SongHash:   "389BC",
			SongName:   "x=1/0",
			Difficulty: "Expert",
			Mode:       "Standard",
			Score:      912345,
			Modifiers:  []string{"FS"},
		},
		Frames: []core.ReplayFrame{{Time: 0.5, FPS: 90}, {Time: 1.25, FPS: 90}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestMapCmd(t *testing.T) {
	configDir, _ := testEnv(t)
	dir := writeMapDir(t, t.TempDir(), "map")

	t.Run("json", func(t *testing.T) {
		out, err := runCmd(t, configDir, "map", dir, "--format", "json")
		require.NoError(t, err)

		var info core.MapInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Len(t, info.Hash, 40)
		assert.Equal(t, "x=1/0", info.Song.Title)
		require.Len(t, info.Maps, 1)
		assert.Equal(t, core.DifficultyExpert, info.Maps[0].Difficulty)
		assert.Len(t, info.Maps[0].Map.ColorNotes, 2)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := runCmd(t, configDir, "map", dir, "--format", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "title: x=1/0")
		assert.Contains(t, out, "difficulty: Expert")
	})

	t.Run("text", func(t *testing.T) {
		out, err := runCmd(t, configDir, "map", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "x=1/0 by Alpha Cancri, mapped by mapper")
		assert.Contains(t, out, "Standard")
		assert.Contains(t, out, "Expert")
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := runCmd(t, configDir, "map", dir, "--format", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})

	t.Run("missing map", func(t *testing.T) {
		_, err := runCmd(t, configDir, "map", filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}

func TestProbeCmd(t *testing.T) {
	configDir, _ := testEnv(t)

	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "legacy",
			doc:  `{"_version": "2.6.0", "_notes": [], "_obstacles": []}`,
			want: []string{"marker:  2.6.0", "dialect: legacy"},
		},
		{
			name: "legacy marker wins over current keys",
			doc:  `{"_version": "2.0.0", "_notes": [], "_obstacles": [], "colorNotes": []}`,
			want: []string{"dialect: legacy"},
		},
		{
			name: "current",
			doc:  `{"version": "3.3.0", "colorNotes": []}`,
			want: []string{"marker:  3.3.0", "dialect: current"},
		},
		{
			name: "unsupported",
			doc:  `{"version": "9.0.0"}`,
			want: []string{"dialect: unsupported (9.0.0)"},
		},
		{
			name: "no marker",
			doc:  `{"notes": []}`,
			want: []string{"marker:  none", "dialect: unsupported (unknown)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Expert.dat")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o644))

			out, err := runCmd(t, configDir, "probe", path)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestReplayCmd(t *testing.T) {
	configDir, _ := testEnv(t)
	path := filepath.Join(t.TempDir(), "play.bsor")
	writeReplay(t, path)

	out, err := runCmd(t, configDir, "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Reddek")
	assert.Contains(t, out, "frames:     2 over 1.25s")

	out, err = runCmd(t, configDir, "replay", path, "--format", "json")
	require.NoError(t, err)
	var summary replaySummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.FrameCount)
	assert.Equal(t, int32(912345), summary.Info.Score)

	bad := filepath.Join(t.TempDir(), "bad.bsor")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	_, err = runCmd(t, configDir, "replay", bad)
	assert.ErrorIs(t, err, bsor.ErrBadMagic)
}

func TestIngestCmd(t *testing.T) {
	configDir, outputDir := testEnv(t)

	src := t.TempDir()
	writeMapDir(t, src, "first")
	writeMapDir(t, filepath.Join(src, "nested"), "copy")
	writeReplay(t, filepath.Join(src, "play.bsor"))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("ignored"), 0o644))
	broken := filepath.Join(src, "broken")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "Info.dat"), []byte("{"), 0o644))

	out, err := runCmd(t, configDir, "ingest", src, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "maps:     1")
	assert.Contains(t, out, "replays:  1")
	assert.Contains(t, out, "skipped:  1")
	assert.Contains(t, out, "failures: 1")
	assert.Contains(t, out, broken)

	files, err := filepath.Glob(filepath.Join(outputDir, "*.json"))
	require.NoError(t, err)
	// map, replay and run summary
	assert.Len(t, files, 3)

	// a second run finds the stored hash and skips the map
	out, err = runCmd(t, configDir, "ingest", filepath.Join(src, "first"))
	require.NoError(t, err)
	assert.Contains(t, out, "maps:     0")
	assert.Contains(t, out, "skipped:  1")
}

func TestCollectTargets(t *testing.T) {
	src := t.TempDir()
	mapDir := writeMapDir(t, src, "a")
	nested := writeMapDir(t, filepath.Join(src, "deep", "er"), "b")
	zipPath := filepath.Join(src, "c.ZIP")
	writeMapZip(t, zipPath)
	replay := filepath.Join(src, "deep", "r.bsor")
	writeReplay(t, replay)
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.md"), nil, 0o644))

	targets, err := collectTargets([]string{src})
	require.NoError(t, err)

	got := map[string]string{}
	for _, tg := range targets {
		got[tg.Path] = tg.Command
	}
	assert.Equal(t, map[string]string{
		mapDir:  worker.CommandMap,
		nested:  worker.CommandMap,
		zipPath: worker.CommandMap,
		replay:  worker.CommandReplay,
	}, got)

	_, err = collectTargets([]string{filepath.Join(src, "missing")})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	src := t.TempDir()
	mapDir := writeMapDir(t, src, "map")
	empty := filepath.Join(src, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o755))

	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{name: "map directory", path: mapDir, want: worker.CommandMap, wantOK: true},
		{name: "plain directory", path: empty},
		{name: "missing", path: filepath.Join(src, "nope.bsor")},
		{name: "info file itself", path: filepath.Join(mapDir, "Info.dat")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirWatcher(t *testing.T) {
	root := t.TempDir()
	events := make(chan dispatcher.Event, 10)

	w, err := newDirWatcher(root, 50*time.Millisecond, func(e dispatcher.Event) (any, error) {
		events <- e
		return nil, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	next := func() dispatcher.Event {
		t.Helper()
		select {
		case e := <-events:
			return e
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
			return dispatcher.Event{}
		}
	}

	replay := filepath.Join(root, "play.bsor")
	writeReplay(t, replay)
	e := next()
	assert.Equal(t, worker.CommandReplay, e.Command)
	assert.Equal(t, replay, e.Path)

	mapDir := writeMapDir(t, root, "song")
	e = next()
	assert.Equal(t, worker.CommandMap, e.Command)
	assert.Equal(t, mapDir, e.Path)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDirWatcher_MissingRoot(t *testing.T) {
	_, err := newDirWatcher(filepath.Join(t.TempDir(), "missing"), time.Second, nil)
	assert.Error(t, err)
}
