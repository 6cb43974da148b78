// Package v2 adapts beatmap documents written in the legacy dialect, marked
// by a "_version" field with major version 2.
package v2

import (
	"github.com/sabers-go/sabers/internal/decode"
	"github.com/sabers-go/sabers/internal/schema/field"
	"github.com/sabers-go/sabers/internal/timeline"
)

// NoteType discriminates colored notes from bombs in the shared note record.
type NoteType int

const (
	NoteRed  NoteType = 0
	NoteBlue NoteType = 1
	NoteBomb NoteType = 3
)

// eventTempoChange is the "_type" of a lighting event that carries a tempo.
const eventTempoChange = 100

// Note is a colored note or bomb. Direction holds a nominal code and is
// only meaningful for colored notes.
type Note struct {
	Beat        float64
	X           float64
	Y           float64
	Type        NoteType
	Direction   int
	AngleOffset *float64
}

// Obstacle is a wall. Duration is in beats; Y and Height are already
// unpacked from the packed type field.
type Obstacle struct {
	Beat     float64
	Duration float64
	X        float64
	Y        float64
	Width    float64
	Height   float64
}

// Beatmap is an adapted legacy document.
type Beatmap struct {
	Version      string
	Notes        []Note
	Obstacles    []Obstacle
	TempoChanges []timeline.Event
}

// Adapt decodes a legacy document from its generic tree.
func Adapt(root field.Object) (*Beatmap, error) {
	version, err := root.String("_version")
	if err != nil {
		return nil, err
	}
	bm := &Beatmap{Version: version}

	notes, err := objects(root, "_notes", true)
	if err != nil {
		return nil, err
	}
	bm.Notes = make([]Note, 0, len(notes))
	for _, o := range notes {
		n, err := adaptNote(o)
		if err != nil {
			return nil, err
		}
		bm.Notes = append(bm.Notes, n)
	}

	obstacles, err := objects(root, "_obstacles", true)
	if err != nil {
		return nil, err
	}
	bm.Obstacles = make([]Obstacle, 0, len(obstacles))
	for _, o := range obstacles {
		ob, err := adaptObstacle(o)
		if err != nil {
			return nil, err
		}
		bm.Obstacles = append(bm.Obstacles, ob)
	}

	if bm.TempoChanges, err = adaptTempoChanges(root); err != nil {
		return nil, err
	}

	return bm, nil
}

func objects(o field.Object, key string, required bool) ([]field.Object, error) {
	var items []any
	var err error
	if required {
		items, err = o.Array(key)
	} else {
		items, err = o.OptArray(key)
	}
	if err != nil {
		return nil, err
	}
	return o.Objects(key, items)
}

func adaptNote(o field.Object) (Note, error) {
	var n Note
	var err error

	if n.Beat, err = o.Float("_time"); err != nil {
		return n, err
	}
	if n.X, err = precision(o, "_lineIndex"); err != nil {
		return n, err
	}
	if n.Y, err = precision(o, "_lineLayer"); err != nil {
		return n, err
	}

	t, err := o.Int("_type")
	if err != nil {
		return n, err
	}
	switch NoteType(t) {
	case NoteRed, NoteBlue:
		n.Type = NoteType(t)
		if n.Direction, err = direction(o, "_cutDirection"); err != nil {
			return n, err
		}
	case NoteBomb:
		n.Type = NoteBomb
		n.Direction = decode.DirAny
	default:
		return n, o.Fail("_type", "unknown note type %d", t)
	}

	if a, ok, err := o.OptFloat("_angleOffset"); err != nil {
		return n, err
	} else if ok {
		n.AngleOffset = &a
	}
	return n, nil
}

func adaptObstacle(o field.Object) (Obstacle, error) {
	var ob Obstacle
	var err error

	if ob.Beat, err = o.Float("_time"); err != nil {
		return ob, err
	}
	if ob.X, err = precision(o, "_lineIndex"); err != nil {
		return ob, err
	}
	t, err := o.Int("_type")
	if err != nil {
		return ob, err
	}
	ob.Y, ob.Height = decode.WallGeometry(t)
	if ob.Duration, err = o.Float("_duration"); err != nil {
		return ob, err
	}
	if ob.Duration < 0 {
		return ob, o.Fail("_duration", "negative duration %v", ob.Duration)
	}
	if ob.Width, err = precision(o, "_width"); err != nil {
		return ob, err
	}
	return ob, nil
}

// adaptTempoChanges collects tempo changes from the first non-empty source:
// the "_bpmEvents" collection, tempo lighting events, then the editor's
// "_customData._BPMChanges".
func adaptTempoChanges(root field.Object) ([]timeline.Event, error) {
	bpmEvents, err := objects(root, "_bpmEvents", false)
	if err != nil {
		return nil, err
	}
	if len(bpmEvents) > 0 {
		return tempoEvents(bpmEvents, "b", "m")
	}

	events, err := objects(root, "_events", false)
	if err != nil {
		return nil, err
	}
	var tempo []field.Object
	for _, e := range events {
		t, err := e.Int("_type")
		if err != nil {
			return nil, err
		}
		if t == eventTempoChange {
			tempo = append(tempo, e)
		}
	}
	if len(tempo) > 0 {
		return tempoEvents(tempo, "_time", "_floatValue")
	}

	custom, ok, err := root.OptObject("_customData")
	if err != nil || !ok {
		return nil, err
	}
	changes, err := objects(custom, "_BPMChanges", false)
	if err != nil {
		return nil, err
	}
	return tempoEvents(changes, "_time", "_BPM")
}

func tempoEvents(items []field.Object, beatKey, bpmKey string) ([]timeline.Event, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]timeline.Event, 0, len(items))
	for _, o := range items {
		beat, err := o.Float(beatKey)
		if err != nil {
			return nil, err
		}
		bpm, err := o.Float(bpmKey)
		if err != nil {
			return nil, err
		}
		out = append(out, timeline.Event{Beat: beat, BPM: bpm})
	}
	return out, nil
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
