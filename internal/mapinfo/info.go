// Package mapinfo reads map metadata documents and loads every difficulty of
// a map through the normalization pipeline.
package mapinfo

import (
	"encoding/json"
	"fmt"

	"github.com/sabers-go/sabers/internal/schema"
)

// Info is a map metadata document ("Info.dat") in the 2.x layout.
type Info struct {
	Version            string          `json:"_version"`
	SongName           string          `json:"_songName"`
	SongSubName        string          `json:"_songSubName"`
	SongAuthorName     string          `json:"_songAuthorName"`
	LevelAuthorName    string          `json:"_levelAuthorName"`
	BPM                float64         `json:"_beatsPerMinute"`
	Shuffle            float64         `json:"_shuffle"`
	ShufflePeriod      float64         `json:"_shufflePeriod"`
	PreviewStartTime   float64         `json:"_previewStartTime"`
	PreviewDuration    float64         `json:"_previewDuration"`
	SongFilename       string          `json:"_songFilename"`
	CoverImageFilename string          `json:"_coverImageFilename"`
	EnvironmentName    string          `json:"_environmentName"`
	SongTimeOffset     float64         `json:"_songTimeOffset"`
	Sets               []DifficultySet `json:"_difficultyBeatmapSets"`
}

// DifficultySet groups the difficulties of one characteristic.
type DifficultySet struct {
	Characteristic string            `json:"_beatmapCharacteristicName"`
	Difficulties   []DifficultyEntry `json:"_difficultyBeatmaps"`
}

// DifficultyEntry references one difficulty document.
type DifficultyEntry struct {
	Difficulty string  `json:"_difficulty"`
	Rank       int     `json:"_difficultyRank"`
	Filename   string  `json:"_beatmapFilename"`
	NJS        float64 `json:"_noteJumpMovementSpeed"`
	NJSOffset  float64 `json:"_noteJumpStartBeatOffset"`
}

// Filenames returns every referenced difficulty file in declared order.
func (i *Info) Filenames() []string {
	var names []string
	for _, set := range i.Sets {
		for _, d := range set.Difficulties {
			names = append(names, d.Filename)
		}
	}
	return names
}

// ParseInfo decodes a metadata document. Only the 2.x layout is supported.
func ParseInfo(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("error parsing map info: %w", err)
	}
	if info.Version == "" {
		return nil, fmt.Errorf("error parsing map info: %w", &schema.UnsupportedVersionError{Version: "unknown"})
	}
	if schema.Major(info.Version) != "2" {
		return nil, fmt.Errorf("error parsing map info: %w", &schema.UnsupportedVersionError{Version: info.Version})
	}
	return &info, nil
}
