package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sabers-go/sabers/pkg/core"
	"gopkg.in/yaml.v3"
)

// MapExport is the file layout of an exported map set
type MapExport struct {
	RunID       string             `json:"runId,omitempty" yaml:"runId,omitempty"`
	Source      string             `json:"source" yaml:"source"`
	Hash        string             `json:"hash" yaml:"hash"`
	Song        core.SongMeta      `json:"song" yaml:"song"`
	Audio       core.AudioMeta     `json:"audio" yaml:"audio"`
	Environment string             `json:"environment" yaml:"environment"`
	Maps        []DifficultyExport `json:"maps" yaml:"maps"`
	Failures    []FailureExport    `json:"failures" yaml:"failures"`
}

// DifficultyExport is one normalized difficulty with its statistics
type DifficultyExport struct {
	core.DifficultyMap `yaml:",inline"`
	Length             float64 `json:"length" yaml:"length"`
	NPS                float64 `json:"nps" yaml:"nps"`
}

// FailureExport is a difficulty that could not be loaded
type FailureExport struct {
	Characteristic string `json:"characteristic" yaml:"characteristic"`
	Difficulty     string `json:"difficulty" yaml:"difficulty"`
	Filename       string `json:"filename" yaml:"filename"`
	Error          string `json:"error" yaml:"error"`
}

// ReplayExport is the file layout of an exported replay
type ReplayExport struct {
	RunID      string             `json:"runId,omitempty" yaml:"runId,omitempty"`
	Source     string             `json:"source" yaml:"source"`
	Info       core.ReplayInfo    `json:"info" yaml:"info"`
	FrameCount int                `json:"frameCount" yaml:"frameCount"`
	Duration   float32            `json:"duration" yaml:"duration"`
	Frames     []core.ReplayFrame `json:"frames" yaml:"frames"`
}

func buildMapExport(info *core.MapInfo, source, runID string) MapExport {
	export := MapExport{
		RunID:       runID,
		Source:      source,
		Hash:        info.Hash,
		Song:        info.Song,
		Audio:       info.Audio,
		Environment: info.Environment,
		Maps:        make([]DifficultyExport, 0, len(info.Maps)),
		Failures:    make([]FailureExport, 0, len(info.Failures)),
	}

	for _, m := range info.Maps {
		export.Maps = append(export.Maps, DifficultyExport{
			DifficultyMap: m,
			Length:        m.Map.Length(),
			NPS:           m.Map.NotesPerSecond(),
		})
	}
	for _, f := range info.Failures {
		fe := FailureExport{
			Characteristic: string(f.Characteristic),
			Difficulty:     f.Difficulty,
			Filename:       f.Filename,
		}
		if f.Err != nil {
			fe.Error = f.Err.Error()
		}
		export.Failures = append(export.Failures, fe)
	}
	return export
}

func buildReplayExport(replay *core.Replay, source, runID string) ReplayExport {
	frames := replay.Frames
	if frames == nil {
		frames = []core.ReplayFrame{}
	}
	return ReplayExport{
		RunID:      runID,
		Source:     source,
		Info:       replay.Info,
		FrameCount: len(replay.Frames),
		Duration:   replay.Duration(),
		Frames:     frames,
	}
}

// export writes data to the named file in the configured format
func (b *Backend) export(name string, data any) error {
	outputPath := b.path(name)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if b.cfg.CompressOutput {
		err = b.writeGzip(f, data)
	} else {
		err = b.encode(f, data)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	b.exported = append(b.exported, outputPath)
	return nil
}

func (b *Backend) writeGzip(w io.Writer, data any) error {
	gzWriter := gzip.NewWriter(w)
	if err := b.encode(gzWriter, data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}

func (b *Backend) encode(w io.Writer, data any) error {
	switch b.cfg.Format {
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return json.NewEncoder(w).Encode(data)
	}
}
