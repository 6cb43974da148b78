// Package normalize turns adapted beatmap documents of any dialect into the
// version-independent core model with every beat resolved to seconds.
package normalize

import (
	"fmt"

	"github.com/sabers-go/sabers/internal/decode"
	"github.com/sabers-go/sabers/internal/schema"
	v2 "github.com/sabers-go/sabers/internal/schema/v2"
	v3 "github.com/sabers-go/sabers/internal/schema/v3"
	"github.com/sabers-go/sabers/internal/timeline"
	"github.com/sabers-go/sabers/pkg/core"
)

// Normalize converts an adapted document into a Beatmap. bpm is the tempo
// declared by the map metadata; a tempo change at beat 0 overrides it.
func Normalize(doc schema.Document, bpm float64) (core.Beatmap, error) {
	switch d := doc.(type) {
	case schema.LegacyDocument:
		return normalizeLegacy(d.Map, bpm)
	case schema.CurrentDocument:
		return normalizeCurrent(d.Map, bpm)
	default:
		return core.Beatmap{}, fmt.Errorf("unsupported document type %T", doc)
	}
}

func normalizeLegacy(m *v2.Beatmap, bpm float64) (core.Beatmap, error) {
	tl, err := timeline.New(bpm, m.TempoChanges)
	if err != nil {
		return core.Beatmap{}, fmt.Errorf("error building timeline: %w", err)
	}

	out := core.Beatmap{
		ColorNotes: []core.ColorNote{},
		BombNotes:  []core.BombNote{},
		Obstacles:  make([]core.Obstacle, 0, len(m.Obstacles)),
		Chains:     []core.Chain{},
	}

	for i, n := range m.Notes {
		if n.Type == v2.NoteBomb {
			out.BombNotes = append(out.BombNotes, core.BombNote{
				Beat: n.Beat,
				Time: tl.BeatToSeconds(n.Beat),
				X:    n.X,
				Y:    n.Y,
			})
			continue
		}

		color, err := legacyColor(n.Type)
		if err != nil {
			return core.Beatmap{}, fmt.Errorf("note %d: %w", i, err)
		}
		dir, err := direction(n.Direction)
		if err != nil {
			return core.Beatmap{}, fmt.Errorf("note %d: %w", i, err)
		}
		out.ColorNotes = append(out.ColorNotes, core.ColorNote{
			Beat:        n.Beat,
			Time:        tl.BeatToSeconds(n.Beat),
			X:           n.X,
			Y:           n.Y,
			AngleOffset: copyFloat(n.AngleOffset),
			Color:       color,
			Direction:   dir,
		})
	}

	for _, o := range m.Obstacles {
		out.Obstacles = append(out.Obstacles, obstacle(tl, o.Beat, o.Duration, o.X, o.Y, o.Width, o.Height))
	}

	return out, nil
}

func normalizeCurrent(m *v3.Beatmap, bpm float64) (core.Beatmap, error) {
	tl, err := timeline.New(bpm, m.TempoChanges)
	if err != nil {
		return core.Beatmap{}, fmt.Errorf("error building timeline: %w", err)
	}

	out := core.Beatmap{
		ColorNotes: make([]core.ColorNote, 0, len(m.ColorNotes)),
		BombNotes:  make([]core.BombNote, 0, len(m.BombNotes)),
		Obstacles:  make([]core.Obstacle, 0, len(m.Obstacles)),
		Chains:     make([]core.Chain, 0, len(m.BurstSliders)),
	}

	for i, n := range m.ColorNotes {
		color, err := currentColor(n.Color)
		if err != nil {
			return core.Beatmap{}, fmt.Errorf("color note %d: %w", i, err)
		}
		dir, err := direction(n.Direction)
		if err != nil {
			return core.Beatmap{}, fmt.Errorf("color note %d: %w", i, err)
		}
		out.ColorNotes = append(out.ColorNotes, core.ColorNote{
			Beat:        n.Beat,
			Time:        tl.BeatToSeconds(n.Beat),
			X:           n.X,
			Y:           n.Y,
			AngleOffset: copyFloat(n.AngleOffset),
			Color:       color,
			Direction:   dir,
		})
	}

	for _, n := range m.BombNotes {
		out.BombNotes = append(out.BombNotes, core.BombNote{
			Beat: n.Beat,
			Time: tl.BeatToSeconds(n.Beat),
			X:    n.X,
			Y:    n.Y,
		})
	}

	for _, o := range m.Obstacles {
		out.Obstacles = append(out.Obstacles, obstacle(tl, o.Beat, o.Duration, o.X, o.Y, o.Width, o.Height))
	}

	for i, s := range m.BurstSliders {
		color, err := currentColor(s.Color)
		if err != nil {
			return core.Beatmap{}, fmt.Errorf("burst slider %d: %w", i, err)
		}
		dir, err := direction(s.Direction)
		if err != nil {
			return core.Beatmap{}, fmt.Errorf("burst slider %d: %w", i, err)
		}
		out.Chains = append(out.Chains, core.Chain{
			Beat:         s.Beat,
			Time:         tl.BeatToSeconds(s.Beat),
			X:            s.X,
			Y:            s.Y,
			Color:        color,
			Direction:    dir,
			TailBeat:     s.TailBeat,
			TailTime:     tl.BeatToSeconds(s.TailBeat),
			TailX:        s.TailX,
			TailY:        s.TailY,
			NumSlices:    s.SliceCount,
			SquishFactor: s.SquishFactor,
		})
	}

	return out, nil
}

// obstacle maps both ends of the wall through the timeline, since the tempo
// may change while it is active.
func obstacle(tl *timeline.Timeline, beat, duration, x, y, width, height float64) core.Obstacle {
	start := tl.BeatToSeconds(beat)
	end := tl.BeatToSeconds(beat + duration)
	return core.Obstacle{
		Beat:     beat,
		Time:     start,
		EndTime:  end,
		Duration: end - start,
		X:        x,
		Y:        y,
		Width:    width,
		Height:   height,
	}
}

func legacyColor(t v2.NoteType) (core.NoteColor, error) {
	switch t {
	case v2.NoteRed:
		return core.ColorRed, nil
	case v2.NoteBlue:
		return core.ColorBlue, nil
	default:
		return 0, fmt.Errorf("note type %d has no color", t)
	}
}

func currentColor(c v3.NoteColor) (core.NoteColor, error) {
	switch c {
	case v3.ColorRed:
		return core.ColorRed, nil
	case v3.ColorBlue:
		return core.ColorBlue, nil
	default:
		return 0, fmt.Errorf("unknown note color %d", c)
	}
}

func direction(code int) (core.NoteDirection, error) {
	switch code {
	case decode.DirUp:
		return core.DirectionUp, nil
	case decode.DirDown:
		return core.DirectionDown, nil
	case decode.DirLeft:
		return core.DirectionLeft, nil
	case decode.DirRight:
		return core.DirectionRight, nil
	case decode.DirUpLeft:
		return core.DirectionUpLeft, nil
	case decode.DirUpRight:
		return core.DirectionUpRight, nil
	case decode.DirDownLeft:
		return core.DirectionDownLeft, nil
	case decode.DirDownRight:
		return core.DirectionDownRight, nil
	case decode.DirAny:
		return core.DirectionAny, nil
	default:
		return 0, &decode.DomainError{Value: code}
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
