// Package v3 adapts beatmap documents written in the current dialect, marked
// by a "version" field with major version 3.
package v3

import (
	"github.com/sabers-go/sabers/internal/decode"
	"github.com/sabers-go/sabers/internal/schema/field"
	"github.com/sabers-go/sabers/internal/timeline"
)

// NoteColor is the raw color code of a note or chain.
type NoteColor int

const (
	ColorRed  NoteColor = 0
	ColorBlue NoteColor = 1
)

// ColorNote is a colored note. Direction holds a nominal code.
type ColorNote struct {
	Beat        float64
	X           float64
	Y           float64
	Color       NoteColor
	Direction   int
	AngleOffset *float64
}

// BombNote is a bomb.
type BombNote struct {
	Beat float64
	X    float64
	Y    float64
}

// Obstacle is a wall. Duration is in beats.
type Obstacle struct {
	Beat     float64
	Duration float64
	X        float64
	Y        float64
	Width    float64
	Height   float64
}

// BurstSlider is a chain of slices from a head note to a tail position.
type BurstSlider struct {
	Beat         float64
	X            float64
	Y            float64
	Color        NoteColor
	Direction    int
	TailBeat     float64
	TailX        float64
	TailY        float64
	SliceCount   int
	SquishFactor float64
}

// Beatmap is an adapted current-dialect document.
type Beatmap struct {
	Version      string
	ColorNotes   []ColorNote
	BombNotes    []BombNote
	Obstacles    []Obstacle
	BurstSliders []BurstSlider
	TempoChanges []timeline.Event
}

// Adapt decodes a current-dialect document from its generic tree.
func Adapt(root field.Object) (*Beatmap, error) {
	version, err := root.String("version")
	if err != nil {
		return nil, err
	}
	bm := &Beatmap{Version: version}

	if bm.ColorNotes, err = collect(root, "colorNotes", true, adaptColorNote); err != nil {
		return nil, err
	}
	if bm.BombNotes, err = collect(root, "bombNotes", false, adaptBombNote); err != nil {
		return nil, err
	}
	if bm.Obstacles, err = collect(root, "obstacles", false, adaptObstacle); err != nil {
		return nil, err
	}
	if bm.BurstSliders, err = collect(root, "burstSliders", false, adaptBurstSlider); err != nil {
		return nil, err
	}
	if bm.TempoChanges, err = collect(root, "bpmEvents", false, adaptBPMEvent); err != nil {
		return nil, err
	}
	return bm, nil
}

// collect adapts every element of an array field. Optional fields that are
// absent produce an empty, non-nil slice.
func collect[T any](root field.Object, key string, required bool, adapt func(field.Object) (T, error)) ([]T, error) {
	var items []any
	var err error
	if required {
		items, err = root.Array(key)
	} else {
		items, err = root.OptArray(key)
	}
	if err != nil {
		return nil, err
	}
	objs, err := root.Objects(key, items)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(objs))
	for _, o := range objs {
		v, err := adapt(o)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func adaptColorNote(o field.Object) (ColorNote, error) {
	var n ColorNote
	var err error

	if n.Beat, err = o.Float("b"); err != nil {
		return n, err
	}
	if n.X, err = precision(o, "x"); err != nil {
		return n, err
	}
	if n.Y, err = precision(o, "y"); err != nil {
		return n, err
	}
	if n.Color, err = color(o, "c"); err != nil {
		return n, err
	}
	if n.Direction, err = direction(o, "d"); err != nil {
		return n, err
	}
	if a, ok, err := o.OptFloat("a"); err != nil {
		return n, err
	} else if ok {
		n.AngleOffset = &a
	}
	return n, nil
}

func adaptBombNote(o field.Object) (BombNote, error) {
	var n BombNote
	var err error

	if n.Beat, err = o.Float("b"); err != nil {
		return n, err
	}
	if n.X, err = precision(o, "x"); err != nil {
		return n, err
	}
	if n.Y, err = precision(o, "y"); err != nil {
		return n, err
	}
	return n, nil
}

func adaptObstacle(o field.Object) (Obstacle, error) {
	var ob Obstacle
	var err error

	if ob.Beat, err = o.Float("b"); err != nil {
		return ob, err
	}
	if ob.X, err = precision(o, "x"); err != nil {
		return ob, err
	}
	if ob.Y, err = precision(o, "y"); err != nil {
		return ob, err
	}
	if ob.Duration, err = o.Float("d"); err != nil {
		return ob, err
	}
	if ob.Duration < 0 {
		return ob, o.Fail("d", "negative duration %v", ob.Duration)
	}
	if ob.Width, err = precision(o, "w"); err != nil {
		return ob, err
	}
	h, err := o.Int("h")
	if err != nil {
		return ob, err
	}
	ob.Height = float64(h)
	return ob, nil
}

func adaptBurstSlider(o field.Object) (BurstSlider, error) {
	var s BurstSlider
	var err error

	if s.Beat, err = o.Float("b"); err != nil {
		return s, err
	}
	if s.X, err = precision(o, "x"); err != nil {
		return s, err
	}
	if s.Y, err = precision(o, "y"); err != nil {
		return s, err
	}
	if s.Color, err = color(o, "c"); err != nil {
		return s, err
	}
	if s.Direction, err = direction(o, "d"); err != nil {
		return s, err
	}
	if s.TailBeat, err = o.Float("tb"); err != nil {
		return s, err
	}
	if s.TailX, err = precision(o, "tx"); err != nil {
		return s, err
	}
	if s.TailY, err = precision(o, "ty"); err != nil {
		return s, err
	}
	if s.SliceCount, err = o.Int("sc"); err != nil {
		return s, err
	}
	if s.SquishFactor, err = o.Float("s"); err != nil {
		return s, err
	}
	return s, nil
}

func adaptBPMEvent(o field.Object) (timeline.Event, error) {
	var e timeline.Event
	var err error

	if e.Beat, err = o.Float("b"); err != nil {
		return e, err
	}
	if e.BPM, err = o.Float("m"); err != nil {
		return e, err
	}
	return e, nil
}

func color(o field.Object, key string) (NoteColor, error) {
	c, err := o.Int(key)
	if err != nil {
		return 0, err
	}
	switch NoteColor(c) {
	case ColorRed, ColorBlue:
		return NoteColor(c), nil
	default:
		return 0, o.Fail(key, "unknown note color %d", c)
	}
}

func precision(o field.Object, key string) (float64, error) {
	v, err := o.Int(key)
	if err != nil {
		return 0, err
	}
	return decode.Precision(v), nil
}

func direction(o field.Object, key string) (int, error) {
	v, err := o.Int(key)
	if err != nil {
		return 0, err
	}
	d, err := decode.Direction(v)
	if err != nil {
		return 0, o.Wrap(key, err)
	}
	return d, nil
}
