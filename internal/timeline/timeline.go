// Package timeline maps musical beats to elapsed seconds through a piecewise
// constant tempo map.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrUnordered is returned when tempo events are not in beat order.
	ErrUnordered = errors.New("tempo events are not in beat order")
	// ErrInvalidTempo is returned for zero, negative, or non-finite tempos.
	ErrInvalidTempo = errors.New("invalid tempo")
)

// Event is a tempo change that takes effect at Beat.
type Event struct {
	Beat float64 `json:"beat" yaml:"beat"`
	BPM  float64 `json:"bpm" yaml:"bpm"`
}

// Segment is an interval of constant tempo starting at Beat, which is Time
// seconds into the map.
type Segment struct {
	Beat float64
	Time float64
	BPM  float64
}

// Timeline converts beats into seconds. It is immutable after construction
// and safe for concurrent use.
type Timeline struct {
	baseBPM  float64
	segments []Segment
}

// New builds a timeline from a base tempo and tempo changes in beat order.
// An event at beat 0 replaces the base tempo; otherwise the base tempo
// governs every beat before the first event.
func New(baseBPM float64, events []Event) (*Timeline, error) {
	if len(events) > 0 && events[0].Beat == 0 {
		baseBPM = events[0].BPM
		events = events[1:]
	}
	if !validTempo(baseBPM) {
		return nil, fmt.Errorf("%w: base tempo %v", ErrInvalidTempo, baseBPM)
	}

	segments := make([]Segment, 1, len(events)+1)
	segments[0] = Segment{Beat: 0, Time: 0, BPM: baseBPM}

	for i, e := range events {
		prev := segments[len(segments)-1]
		if e.Beat < prev.Beat || math.IsNaN(e.Beat) {
			return nil, fmt.Errorf("%w: event %d at beat %v follows beat %v", ErrUnordered, i, e.Beat, prev.Beat)
		}
		if !validTempo(e.BPM) {
			return nil, fmt.Errorf("%w: event %d at beat %v sets %v", ErrInvalidTempo, i, e.Beat, e.BPM)
		}
		segments = append(segments, Segment{
			Beat: e.Beat,
			Time: prev.at(e.Beat),
			BPM:  e.BPM,
		})
	}

	return &Timeline{baseBPM: baseBPM, segments: segments}, nil
}

// Constant returns a timeline with a single tempo.
func Constant(bpm float64) (*Timeline, error) {
	return New(bpm, nil)
}

func validTempo(bpm float64) bool {
	return bpm > 0 && !math.IsInf(bpm, 0) && !math.IsNaN(bpm)
}

func (s Segment) at(beat float64) float64 {
	return s.Time + (beat-s.Beat)/s.BPM*60
}

// BeatToSeconds returns the elapsed time at beat. Beats before the first
// segment are extrapolated from it.
func (t *Timeline) BeatToSeconds(beat float64) float64 {
	i := sort.Search(len(t.segments), func(i int) bool {
		return t.segments[i].Beat > beat
	}) - 1
	if i < 0 {
		i = 0
	}
	return t.segments[i].at(beat)
}

// BaseBPM returns the tempo in effect at beat 0.
func (t *Timeline) BaseBPM() float64 {
	return t.baseBPM
}

// Segments returns a copy of the tempo segments in beat order.
func (t *Timeline) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}
