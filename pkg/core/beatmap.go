// pkg/core/beatmap.go
package core

// NoteColor is the saber a note belongs to.
type NoteColor uint8

const (
	ColorRed NoteColor = iota
	ColorBlue
)

func (c NoteColor) String() string {
	switch c {
	case ColorRed:
		return "Red"
	case ColorBlue:
		return "Blue"
	default:
		return "Unknown"
	}
}

// NoteDirection is the cut direction of a note: one of eight compass points or Any.
type NoteDirection uint8

const (
	DirectionUp NoteDirection = iota
	DirectionDown
	DirectionLeft
	DirectionRight
	DirectionUpLeft
	DirectionUpRight
	DirectionDownLeft
	DirectionDownRight
	DirectionAny
)

var directionNames = [...]string{
	DirectionUp:        "Up",
	DirectionDown:      "Down",
	DirectionLeft:      "Left",
	DirectionRight:     "Right",
	DirectionUpLeft:    "UpLeft",
	DirectionUpRight:   "UpRight",
	DirectionDownLeft:  "DownLeft",
	DirectionDownRight: "DownRight",
	DirectionAny:       "Any",
}

func (d NoteDirection) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "Unknown"
}

// ColorNote is a directional tap target.
type ColorNote struct {
	Beat        float64       `json:"beat" yaml:"beat"`
	Time        float64       `json:"time" yaml:"time"`
	X           float64       `json:"x" yaml:"x"`
	Y           float64       `json:"y" yaml:"y"`
	AngleOffset *float64      `json:"angleOffset,omitempty" yaml:"angleOffset,omitempty"`
	Color       NoteColor     `json:"color" yaml:"color"`
	Direction   NoteDirection `json:"direction" yaml:"direction"`
}

// BombNote is a non-directional avoidance target.
type BombNote struct {
	Beat float64 `json:"beat" yaml:"beat"`
	Time float64 `json:"time" yaml:"time"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
}

// Obstacle is a rectangular wall spanning a beat interval.
// Duration is always EndTime - Time, in seconds.
type Obstacle struct {
	Beat     float64 `json:"beat" yaml:"beat"`
	Time     float64 `json:"time" yaml:"time"`
	EndTime  float64 `json:"endTime" yaml:"endTime"`
	Duration float64 `json:"duration" yaml:"duration"`
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	Width    float64 `json:"width" yaml:"width"`
	Height   float64 `json:"height" yaml:"height"`
}

// Chain is a burst slider running from a head note to a tail position.
type Chain struct {
	Beat         float64       `json:"beat" yaml:"beat"`
	Time         float64       `json:"time" yaml:"time"`
	X            float64       `json:"x" yaml:"x"`
	Y            float64       `json:"y" yaml:"y"`
	Color        NoteColor     `json:"color" yaml:"color"`
	Direction    NoteDirection `json:"direction" yaml:"direction"`
	TailBeat     float64       `json:"tailBeat" yaml:"tailBeat"`
	TailTime     float64       `json:"tailTime" yaml:"tailTime"`
	TailX        float64       `json:"tailX" yaml:"tailX"`
	TailY        float64       `json:"tailY" yaml:"tailY"`
	NumSlices    int           `json:"numSlices" yaml:"numSlices"`
	SquishFactor float64       `json:"squishFactor" yaml:"squishFactor"`
}

// Beatmap is the version-independent content of a single difficulty.
type Beatmap struct {
	ColorNotes []ColorNote `json:"colorNotes" yaml:"colorNotes"`
	BombNotes  []BombNote  `json:"bombNotes" yaml:"bombNotes"`
	Obstacles  []Obstacle  `json:"obstacles" yaml:"obstacles"`
	Chains     []Chain     `json:"chains" yaml:"chains"`
}

// NoteCount returns the number of cuttable notes (color notes only).
func (b *Beatmap) NoteCount() int {
	return len(b.ColorNotes)
}

// Length returns the latest time, in seconds, at which any entity starts or ends.
func (b *Beatmap) Length() float64 {
	var end float64
	for _, n := range b.ColorNotes {
		end = max(end, n.Time)
	}
	for _, n := range b.BombNotes {
		end = max(end, n.Time)
	}
	for _, o := range b.Obstacles {
		end = max(end, o.Time, o.EndTime)
	}
	for _, c := range b.Chains {
		end = max(end, c.Time, c.TailTime)
	}
	return end
}

// NotesPerSecond returns color notes divided by Length, or 0 for an empty map.
func (b *Beatmap) NotesPerSecond() float64 {
	length := b.Length()
	if length <= 0 {
		return 0
	}
	return float64(b.NoteCount()) / length
}
