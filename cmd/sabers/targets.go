package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sabers-go/sabers/internal/mapfs"
	"github.com/sabers-go/sabers/internal/mapinfo"
	"github.com/sabers-go/sabers/internal/worker"
)

const replayExt = ".bsor"

// target is one map or replay to ingest.
type target struct {
	Command string
	Path    string
}

// classify returns the ingest command for a single path: directories holding
// Info.dat and zip archives are maps, .bsor files are replays.
func classify(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if hasInfo(path) {
			return worker.CommandMap, true
		}
		return "", false
	}
	switch {
	case mapfs.IsArchive(path):
		return worker.CommandMap, true
	case strings.EqualFold(filepath.Ext(path), replayExt):
		return worker.CommandReplay, true
	default:
		return "", false
	}
}

func hasInfo(dir string) bool {
	_, err := mapfs.Find(mapfs.NewDir(dir), mapinfo.InfoFilename)
	return err == nil
}

// collectTargets walks paths and returns every map and replay below them.
// Map directories are not descended into.
func collectTargets(paths []string) ([]target, error) {
	var targets []target
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			command, ok := classify(path)
			if !ok {
				return nil
			}
			targets = append(targets, target{Command: command, Path: path})
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return targets, nil
}
