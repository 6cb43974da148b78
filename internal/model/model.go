package model

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&IngestRun{},
	&BeatmapSet{},
	&Difficulty{},
	&DifficultyFailure{},
	&Replay{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// IngestRun records one invocation of the ingest or watch command
type IngestRun struct {
	gorm.Model
	RunID      string       `json:"runId" gorm:"size:36;uniqueIndex"`
	StartedAt  time.Time    `json:"startedAt" gorm:"index:idx_ingest_run_started_at"`
	FinishedAt sql.NullTime `json:"finishedAt"`
	Maps       uint         `json:"maps"`
	Replays    uint         `json:"replays"`
	Skipped    uint         `json:"skipped"`
	Failures   uint         `json:"failures"`
}

func (*IngestRun) TableName() string {
	return "ingest_runs"
}

////////////////////////
// MAP MODELS
////////////////////////

// BeatmapSet is a map identified by its content hash
type BeatmapSet struct {
	gorm.Model
	Hash            string  `json:"hash" gorm:"size:40;uniqueIndex"`
	RunID           string  `json:"runId" gorm:"size:36;index:idx_beatmap_set_run_id"`
	SourcePath      string  `json:"sourcePath" gorm:"size:1024"`
	Title           string  `json:"title" gorm:"size:255"`
	Subtitle        string  `json:"subtitle" gorm:"size:255"`
	Author          string  `json:"author" gorm:"size:255"`
	LevelAuthor     string  `json:"levelAuthor" gorm:"size:255"`
	CoverImagePath  string  `json:"coverImagePath" gorm:"size:255"`
	Environment     string  `json:"environment" gorm:"size:127"`
	BPM             float64 `json:"bpm"`
	SongTimeOffset  float64 `json:"songTimeOffset"`
	AudioPath       string  `json:"audioPath" gorm:"size:255"`
	PreviewStart    float64 `json:"previewStart"`
	PreviewDuration float64 `json:"previewDuration"`

	Difficulties []Difficulty        `json:"difficulties" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Failures     []DifficultyFailure `json:"failures" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*BeatmapSet) TableName() string {
	return "beatmap_sets"
}

// GetOrInsert loads the set with the same hash, or inserts s with its
// difficulties when there is none.
func (s *BeatmapSet) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existing BeatmapSet
	err = db.Where("hash = ?", s.Hash).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// insert
			err = db.Create(s).Error
			return err == nil, err
		}
		return false, err
	}
	// overwrite with db record if found
	*s = existing
	return false, nil
}

// Difficulty is one normalized difficulty of a BeatmapSet. Entities holds
// the normalized notes, bombs, obstacles and chains as JSON.
type Difficulty struct {
	gorm.Model
	BeatmapSetID   uint           `json:"beatmapSetId" gorm:"index:idx_difficulty_beatmap_set_id"`
	Characteristic string         `json:"characteristic" gorm:"size:64"`
	Difficulty     string         `json:"difficulty" gorm:"size:16"`
	Rank           uint8          `json:"rank"`
	Filename       string         `json:"filename" gorm:"size:255"`
	Version        string         `json:"version" gorm:"size:16"`
	NJS            float64        `json:"njs"`
	NJSOffset      float64        `json:"njsOffset"`
	ColorNotes     uint           `json:"colorNotes"`
	BombNotes      uint           `json:"bombNotes"`
	Obstacles      uint           `json:"obstacles"`
	Chains         uint           `json:"chains"`
	Length         float64        `json:"length"`
	NPS            float64        `json:"nps"`
	Entities       datatypes.JSON `json:"entities"`
}

func (*Difficulty) TableName() string {
	return "difficulties"
}

// DifficultyFailure is a difficulty that could not be loaded
type DifficultyFailure struct {
	gorm.Model
	BeatmapSetID   uint   `json:"beatmapSetId" gorm:"index:idx_difficulty_failure_beatmap_set_id"`
	Characteristic string `json:"characteristic" gorm:"size:64"`
	Difficulty     string `json:"difficulty" gorm:"size:16"`
	Filename       string `json:"filename" gorm:"size:255"`
	Error          string `json:"error" gorm:"size:2000"`
}

func (*DifficultyFailure) TableName() string {
	return "difficulty_failures"
}

////////////////////////
// REPLAY MODELS
////////////////////////

// Replay is the header of an ingested replay
type Replay struct {
	gorm.Model
	RunID          string         `json:"runId" gorm:"size:36;index:idx_replay_run_id"`
	SourcePath     string         `json:"sourcePath" gorm:"size:1024"`
	Version        string         `json:"version" gorm:"size:16"`
	GameVersion    string         `json:"gameVersion" gorm:"size:32"`
	PlayedAt       string         `json:"playedAt" gorm:"size:32"`
	PlayerID       string         `json:"playerId" gorm:"size:64;index:idx_replay_player_id"`
	PlayerName     string         `json:"playerName" gorm:"size:127"`
	Platform       string         `json:"platform" gorm:"size:32"`
	TrackingSystem string         `json:"trackingSystem" gorm:"size:64"`
	HMD            string         `json:"hmd" gorm:"size:64"`
	Controller     string         `json:"controller" gorm:"size:64"`
	SongHash       string         `json:"songHash" gorm:"size:64;index:idx_replay_song_hash"`
	SongName       string         `json:"songName" gorm:"size:255"`
	Mapper         string         `json:"mapper" gorm:"size:255"`
	Difficulty     string         `json:"difficulty" gorm:"size:16"`
	Mode           string         `json:"mode" gorm:"size:64"`
	Environment    string         `json:"environment" gorm:"size:127"`
	Score          int32          `json:"score"`
	Modifiers      datatypes.JSON `json:"modifiers"`
	JumpDistance   float32        `json:"jumpDistance"`
	LeftHanded     bool           `json:"leftHanded"`
	Height         float32        `json:"height"`
	StartTime      float32        `json:"startTime"`
	FailTime       float32        `json:"failTime"`
	Speed          float32        `json:"speed"`
	FrameCount     uint           `json:"frameCount"`
	Duration       float32        `json:"duration"`
}

func (*Replay) TableName() string {
	return "replays"
}
