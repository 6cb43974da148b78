package core

import "time"

// IngestRun summarizes one batch of ingested maps and replays.
type IngestRun struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty" yaml:"finishedAt,omitempty"`
	Maps       uint      `json:"maps" yaml:"maps"`
	Replays    uint      `json:"replays" yaml:"replays"`
	Skipped    uint      `json:"skipped" yaml:"skipped"`
	Failures   uint      `json:"failures" yaml:"failures"`
}
