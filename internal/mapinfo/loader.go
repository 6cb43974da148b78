package mapinfo

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/sabers-go/sabers/internal/mapfs"
	"github.com/sabers-go/sabers/internal/normalize"
	"github.com/sabers-go/sabers/pkg/core"
)

// InfoFilename is the metadata document name, matched case-insensitively.
const InfoFilename = "Info.dat"

// ErrMissingInfo is returned when a map has no metadata document.
var ErrMissingInfo = errors.New("missing " + InfoFilename)

// DifficultyError describes a difficulty that failed to load.
type DifficultyError struct {
	Characteristic core.Characteristic
	Difficulty     string
	Filename       string
	Err            error
}

func (e *DifficultyError) Error() string {
	return fmt.Sprintf("difficulty %s/%s (%s): %v", e.Characteristic, e.Difficulty, e.Filename, e.Err)
}

func (e *DifficultyError) Unwrap() error {
	return e.Err
}

// Loader reads a map and normalizes each of its difficulties.
type Loader struct {
	logger   *slog.Logger
	pipeline *normalize.Pipeline

	// Strict aborts on the first difficulty that fails; otherwise failures
	// are recorded on the MapInfo and loading continues.
	Strict bool
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger, pipeline *normalize.Pipeline, strict bool) *Loader {
	return &Loader{logger: logger, pipeline: pipeline, Strict: strict}
}

// Load reads the metadata document and every referenced difficulty. Hash is
// computed over the metadata bytes followed by each difficulty file that
// could be read, in declared order.
func (l *Loader) Load(ctx context.Context, fsys mapfs.FileSystem) (*core.MapInfo, error) {
	m, err := open(fsys)
	if err != nil {
		return nil, err
	}

	out := &core.MapInfo{
		Song: core.SongMeta{
			Title:          m.info.SongName,
			Subtitle:       m.info.SongSubName,
			Author:         m.info.SongAuthorName,
			LevelAuthor:    m.info.LevelAuthorName,
			CoverImagePath: m.info.CoverImageFilename,
		},
		Audio: core.AudioMeta{
			BPM:             m.info.BPM,
			SongTimeOffset:  m.info.SongTimeOffset,
			AudioPath:       m.info.SongFilename,
			PreviewStart:    m.info.PreviewStartTime,
			PreviewDuration: m.info.PreviewDuration,
		},
		Environment: m.info.EnvironmentName,
		Maps:        []core.DifficultyMap{},
	}

	for _, set := range m.info.Sets {
		characteristic := core.Characteristic(set.Characteristic)
		if !characteristic.IsKnown() {
			l.logger.Debug("unknown characteristic", "characteristic", set.Characteristic)
		}

		for _, entry := range set.Difficulties {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			dm, err := l.loadDifficulty(m, characteristic, entry)
			if err == nil {
				out.Maps = append(out.Maps, dm)
				continue
			}

			derr := &DifficultyError{
				Characteristic: characteristic,
				Difficulty:     entry.Difficulty,
				Filename:       entry.Filename,
				Err:            err,
			}
			if l.Strict {
				return nil, derr
			}
			l.logger.Warn("skipping difficulty", "error", derr)
			out.Failures = append(out.Failures, core.DifficultyFailure{
				Characteristic: characteristic,
				Difficulty:     entry.Difficulty,
				Filename:       entry.Filename,
				Err:            err,
			})
		}
	}

	out.Hash = m.digest()
	return out, nil
}

func (l *Loader) loadDifficulty(m *mapFiles, characteristic core.Characteristic, entry DifficultyEntry) (core.DifficultyMap, error) {
	data, err := m.read(entry.Filename)
	if err != nil {
		return core.DifficultyMap{}, err
	}

	difficulty, err := core.ParseDifficulty(entry.Difficulty)
	if err != nil {
		return core.DifficultyMap{}, err
	}
	if rank, ok := core.DifficultyFromRank(uint8(entry.Rank)); !ok || rank != difficulty {
		l.logger.Debug("difficulty rank does not match name",
			"difficulty", entry.Difficulty, "rank", entry.Rank)
	}

	bm, version, err := l.pipeline.Parse(data, m.info.BPM)
	if err != nil {
		return core.DifficultyMap{}, err
	}

	return core.DifficultyMap{
		Difficulty:     difficulty,
		Characteristic: characteristic,
		Filename:       entry.Filename,
		Version:        version.Marker,
		NJS:            entry.NJS,
		NJSOffset:      entry.NJSOffset,
		Map:            bm,
	}, nil
}

// Hash computes the content hash of a map without normalizing it. Like
// Load, difficulty files that are missing or unreadable contribute nothing,
// so both always agree on a map's identity.
func Hash(fsys mapfs.FileSystem) (string, error) {
	m, err := open(fsys)
	if err != nil {
		return "", err
	}
	for _, name := range m.info.Filenames() {
		// unreadable files are reported by Load
		_, _ = m.read(name)
	}
	return m.digest(), nil
}

// mapFiles resolves names case-insensitively and feeds every file it reads
// into the content hash.
type mapFiles struct {
	fsys  mapfs.FileSystem
	names map[string]string
	info  *Info
	hash  hash.Hash
}

func open(fsys mapfs.FileSystem) (*mapFiles, error) {
	listed, err := fsys.List()
	if err != nil {
		return nil, fmt.Errorf("error listing map files: %w", err)
	}

	m := &mapFiles{
		fsys:  fsys,
		names: make(map[string]string, len(listed)),
		hash:  sha1.New(),
	}
	for _, n := range listed {
		key := strings.ToLower(n)
		if _, ok := m.names[key]; !ok {
			m.names[key] = n
		}
	}

	name, ok := m.names[strings.ToLower(InfoFilename)]
	if !ok {
		return nil, ErrMissingInfo
	}
	data, err := fsys.Read(name)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", name, err)
	}
	m.hash.Write(data)

	if m.info, err = ParseInfo(data); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *mapFiles) read(name string) ([]byte, error) {
	actual, ok := m.names[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("error reading %s: %w", name, fs.ErrNotExist)
	}
	data, err := m.fsys.Read(actual)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", name, err)
	}
	m.hash.Write(data)
	return data, nil
}

func (m *mapFiles) digest() string {
	return strings.ToUpper(hex.EncodeToString(m.hash.Sum(nil)))
}
