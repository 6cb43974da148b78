// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/sabers-go/sabers/internal/model"
	"github.com/sabers-go/sabers/pkg/core"
	"gorm.io/datatypes"
)

// stringsToJSON converts a []string to datatypes.JSON for DB storage.
func stringsToJSON(values []string) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}

// CoreToBeatmapSet converts a core.MapInfo to a GORM model.BeatmapSet,
// including its difficulties and failures.
func CoreToBeatmapSet(info core.MapInfo, runID, sourcePath string) (model.BeatmapSet, error) {
	set := model.BeatmapSet{
		Hash:            info.Hash,
		RunID:           runID,
		SourcePath:      sourcePath,
		Title:           info.Song.Title,
		Subtitle:        info.Song.Subtitle,
		Author:          info.Song.Author,
		LevelAuthor:     info.Song.LevelAuthor,
		CoverImagePath:  info.Song.CoverImagePath,
		Environment:     info.Environment,
		BPM:             info.Audio.BPM,
		SongTimeOffset:  info.Audio.SongTimeOffset,
		AudioPath:       info.Audio.AudioPath,
		PreviewStart:    info.Audio.PreviewStart,
		PreviewDuration: info.Audio.PreviewDuration,
	}

	set.Difficulties = make([]model.Difficulty, 0, len(info.Maps))
	for _, m := range info.Maps {
		d, err := CoreToDifficulty(m)
		if err != nil {
			return model.BeatmapSet{}, err
		}
		set.Difficulties = append(set.Difficulties, d)
	}

	set.Failures = make([]model.DifficultyFailure, 0, len(info.Failures))
	for _, f := range info.Failures {
		set.Failures = append(set.Failures, CoreToDifficultyFailure(f))
	}
	return set, nil
}

// CoreToDifficulty converts a core.DifficultyMap to a GORM model.Difficulty.
// The normalized entities are stored as JSON.
func CoreToDifficulty(m core.DifficultyMap) (model.Difficulty, error) {
	entities, err := json.Marshal(m.Map)
	if err != nil {
		return model.Difficulty{}, fmt.Errorf("error marshaling entities for %s %s: %w", m.Characteristic, m.Difficulty, err)
	}

	return model.Difficulty{
		Characteristic: string(m.Characteristic),
		Difficulty:     m.Difficulty.String(),
		Rank:           m.Difficulty.Rank(),
		Filename:       m.Filename,
		Version:        m.Version,
		NJS:            m.NJS,
		NJSOffset:      m.NJSOffset,
		ColorNotes:     uint(len(m.Map.ColorNotes)),
		BombNotes:      uint(len(m.Map.BombNotes)),
		Obstacles:      uint(len(m.Map.Obstacles)),
		Chains:         uint(len(m.Map.Chains)),
		Length:         m.Map.Length(),
		NPS:            m.Map.NotesPerSecond(),
		Entities:       datatypes.JSON(entities),
	}, nil
}

// CoreToDifficultyFailure converts a core.DifficultyFailure to a GORM model.DifficultyFailure.
func CoreToDifficultyFailure(f core.DifficultyFailure) model.DifficultyFailure {
	var msg string
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return model.DifficultyFailure{
		Characteristic: string(f.Characteristic),
		Difficulty:     f.Difficulty,
		Filename:       f.Filename,
		Error:          msg,
	}
}

// DifficultyToCore rebuilds a core.DifficultyMap from a stored model.Difficulty.
func DifficultyToCore(d model.Difficulty) (core.DifficultyMap, error) {
	diff, ok := core.DifficultyFromRank(d.Rank)
	if !ok {
		return core.DifficultyMap{}, fmt.Errorf("difficulty %d: unknown rank %d", d.ID, d.Rank)
	}

	out := core.DifficultyMap{
		Difficulty:     diff,
		Characteristic: core.Characteristic(d.Characteristic),
		Filename:       d.Filename,
		Version:        d.Version,
		NJS:            d.NJS,
		NJSOffset:      d.NJSOffset,
	}
	if len(d.Entities) > 0 {
		if err := json.Unmarshal(d.Entities, &out.Map); err != nil {
			return core.DifficultyMap{}, fmt.Errorf("error unmarshaling entities for difficulty %d: %w", d.ID, err)
		}
	}
	return out, nil
}

// CoreToReplay converts a core.Replay header to a GORM model.Replay.
// Frames are summarized, not stored.
func CoreToReplay(r core.Replay, runID, sourcePath string) model.Replay {
	info := r.Info
	return model.Replay{
		RunID:          runID,
		SourcePath:     sourcePath,
		Version:        info.Version,
		GameVersion:    info.GameVersion,
		PlayedAt:       info.Timestamp,
		PlayerID:       info.PlayerID,
		PlayerName:     info.PlayerName,
		Platform:       info.Platform,
		TrackingSystem: info.TrackingSystem,
		HMD:            info.HMD,
		Controller:     info.Controller,
		SongHash:       info.SongHash,
		SongName:       info.SongName,
		Mapper:         info.Mapper,
		Difficulty:     info.Difficulty,
		Mode:           info.Mode,
		Environment:    info.Environment,
		Score:          info.Score,
		Modifiers:      stringsToJSON(info.Modifiers),
		JumpDistance:   info.JumpDistance,
		LeftHanded:     info.LeftHanded,
		Height:         info.Height,
		StartTime:      info.StartTime,
		FailTime:       info.FailTime,
		Speed:          info.Speed,
		FrameCount:     uint(len(r.Frames)),
		Duration:       r.Duration(),
	}
}
