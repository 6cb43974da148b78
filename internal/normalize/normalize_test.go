package normalize

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabers-go/sabers/internal/decode"
	"github.com/sabers-go/sabers/internal/schema"
	v2 "github.com/sabers-go/sabers/internal/schema/v2"
	v3 "github.com/sabers-go/sabers/internal/schema/v3"
	"github.com/sabers-go/sabers/internal/timeline"
	"github.com/sabers-go/sabers/pkg/core"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func ptr(f float64) *float64 { return &f }

func TestParse_Legacy(t *testing.T) {
	p := newTestPipeline(t)

	bm, version, err := p.Parse([]byte(`{
		"_version": "2.6.0",
		"_bpmEvents": [{"b": 8, "m": 180}],
		"_notes": [
			{"_time": 4, "_lineIndex": 1, "_lineLayer": 0, "_type": 0, "_cutDirection": 1},
			{"_time": 8, "_lineIndex": 2, "_lineLayer": 1, "_type": 3, "_cutDirection": 0},
			{"_time": 12, "_lineIndex": 3500, "_lineLayer": 2, "_type": 1, "_cutDirection": 1250, "_angleOffset": -10}
		],
		"_obstacles": [
			{"_time": 6, "_lineIndex": 0, "_type": 0, "_duration": 4, "_width": 1}
		]
	}`), 120)
	require.NoError(t, err)
	assert.Equal(t, Version{Dialect: schema.DialectLegacy, Marker: "2.6.0"}, version)

	want := core.Beatmap{
		ColorNotes: []core.ColorNote{
			{Beat: 4, Time: 2, X: 1, Y: 0, Color: core.ColorRed, Direction: core.DirectionDown},
			{Beat: 12, Time: 4 + 4.0/3.0, X: 2.5, Y: 2, AngleOffset: ptr(-10), Color: core.ColorBlue, Direction: core.DirectionRight},
		},
		BombNotes: []core.BombNote{
			{Beat: 8, Time: 4, X: 2, Y: 1},
		},
		Obstacles: []core.Obstacle{
			{Beat: 6, Time: 3, EndTime: 4 + 2.0/3.0, Duration: 1 + 2.0/3.0, X: 0, Y: 0, Width: 1, Height: 5},
		},
		Chains: []core.Chain{},
	}
	if diff := cmp.Diff(want, bm, approx); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Current(t *testing.T) {
	p := newTestPipeline(t)

	bm, version, err := p.Parse([]byte(`{
		"version": "3.3.0",
		"bpmEvents": [{"b": 0, "m": 150}],
		"colorNotes": [{"b": 4, "x": 0, "y": 0, "c": 1, "d": 8}],
		"bombNotes": [{"b": 2, "x": 1, "y": 1}],
		"obstacles": [{"b": 1, "x": 1, "y": 2, "d": 2.5, "w": 2, "h": 3}],
		"burstSliders": [{"b": 5, "x": 1, "y": 0, "c": 0, "d": 1, "tb": 5.5, "tx": 1, "ty": 2, "sc": 4, "s": 0.8}]
	}`), 100)
	require.NoError(t, err)
	assert.Equal(t, schema.DialectCurrent, version.Dialect)
	assert.Equal(t, "3.3.0 (current)", version.String())

	want := core.Beatmap{
		ColorNotes: []core.ColorNote{
			{Beat: 4, Time: 1.6, X: 0, Y: 0, Color: core.ColorBlue, Direction: core.DirectionAny},
		},
		BombNotes: []core.BombNote{
			{Beat: 2, Time: 0.8, X: 1, Y: 1},
		},
		Obstacles: []core.Obstacle{
			{Beat: 1, Time: 0.4, EndTime: 1.4, Duration: 1, X: 1, Y: 2, Width: 2, Height: 3},
		},
		Chains: []core.Chain{
			{
				Beat: 5, Time: 2, X: 1, Y: 0, Color: core.ColorRed, Direction: core.DirectionDown,
				TailBeat: 5.5, TailTime: 2.2, TailX: 1, TailY: 2, NumSlices: 4, SquishFactor: 0.8,
			},
		},
	}
	if diff := cmp.Diff(want, bm, approx); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		bpm        float64
		wantReason string
	}{
		{name: "unsupported version", doc: `{"version": "9.0.0"}`, bpm: 120, wantReason: "unsupported_version"},
		{name: "missing field", doc: `{"version": "3.0.0"}`, bpm: 120, wantReason: "structure"},
		{name: "bad direction", doc: `{"version": "3.0.0", "colorNotes": [{"b": 1, "x": 0, "y": 0, "c": 0, "d": 1500}]}`, bpm: 120, wantReason: "domain"},
		{name: "unordered tempo", doc: `{"version": "3.0.0", "colorNotes": [], "bpmEvents": [{"b": 8, "m": 100}, {"b": 2, "m": 100}]}`, bpm: 120, wantReason: "timeline"},
		{name: "no tempo", doc: `{"version": "3.0.0", "colorNotes": []}`, bpm: 0, wantReason: "timeline"},
		{name: "malformed json", doc: `{"version": `, bpm: 120, wantReason: "decode"},
	}

	p := newTestPipeline(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.Parse([]byte(tt.doc), tt.bpm)
			require.Error(t, err)
			assert.Equal(t, tt.wantReason, Reason(err))
		})
	}
}

func TestNormalize_LegacyHasNoChains(t *testing.T) {
	bm, err := Normalize(schema.LegacyDocument{Map: &v2.Beatmap{Version: "2.0.0"}}, 120)
	require.NoError(t, err)
	assert.NotNil(t, bm.Chains)
	assert.Empty(t, bm.Chains)
}

func TestNormalize_UnknownDocument(t *testing.T) {
	_, err := Normalize(nil, 120)
	assert.Error(t, err)
}

func TestNormalize_DirectionMappingIsTotal(t *testing.T) {
	for code := decode.DirUp; code <= decode.DirAny; code++ {
		dir, err := direction(code)
		require.NoError(t, err)
		assert.Equal(t, core.NoteDirection(code), dir)
		assert.NotEqual(t, "Unknown", dir.String())
	}

	_, err := direction(9)
	var domainErr *decode.DomainError
	assert.True(t, errors.As(err, &domainErr))
}

func TestObstacle_DurationMatchesEndpoints(t *testing.T) {
	timelines := []struct {
		name   string
		base   float64
		events []timeline.Event
	}{
		{name: "constant", base: 120},
		{name: "override at zero", base: 100, events: []timeline.Event{{Beat: 0, BPM: 150}}},
		{name: "multi segment", base: 90, events: []timeline.Event{{Beat: 3, BPM: 200}, {Beat: 3.5, BPM: 45}, {Beat: 10, BPM: 133}}},
	}

	var obstacles []v3.Obstacle
	for b := 0.0; b < 16; b += 0.75 {
		for _, d := range []float64{0, 0.25, 1, 4.5, 9} {
			obstacles = append(obstacles, v3.Obstacle{Beat: b, Duration: d, Width: 1, Height: 5})
		}
	}

	for _, tt := range timelines {
		t.Run(tt.name, func(t *testing.T) {
			doc := schema.CurrentDocument{Map: &v3.Beatmap{
				Version:      "3.0.0",
				Obstacles:    obstacles,
				TempoChanges: tt.events,
			}}
			bm, err := Normalize(doc, tt.base)
			require.NoError(t, err)
			require.Len(t, bm.Obstacles, len(obstacles))

			for _, o := range bm.Obstacles {
				assert.InDelta(t, o.Duration, o.EndTime-o.Time, 1e-9)
				assert.GreaterOrEqual(t, o.EndTime, o.Time)
			}
		})
	}
}

func TestNormalize_ChainTailFollowsHead(t *testing.T) {
	doc := schema.CurrentDocument{Map: &v3.Beatmap{
		Version: "3.0.0",
		BurstSliders: []v3.BurstSlider{
			{Beat: 2, TailBeat: 2, SliceCount: 3, Color: v3.ColorBlue, Direction: decode.DirUp},
			{Beat: 7, TailBeat: 9, SliceCount: 3, Color: v3.ColorRed, Direction: decode.DirLeft},
		},
		TempoChanges: []timeline.Event{{Beat: 8, BPM: 60}},
	}}

	bm, err := Normalize(doc, 120)
	require.NoError(t, err)
	for _, c := range bm.Chains {
		assert.GreaterOrEqual(t, c.TailTime, c.Time)
	}
	assert.InDelta(t, 5.0, bm.Chains[1].TailTime, 1e-9)
}

func TestNormalize_OutputDoesNotAliasSource(t *testing.T) {
	offset := 30.0
	src := &v3.Beatmap{
		Version:    "3.0.0",
		ColorNotes: []v3.ColorNote{{Beat: 1, Color: v3.ColorRed, Direction: decode.DirUp, AngleOffset: &offset}},
	}

	bm, err := Normalize(schema.CurrentDocument{Map: src}, 120)
	require.NoError(t, err)

	offset = 45
	require.NotNil(t, bm.ColorNotes[0].AngleOffset)
	assert.Equal(t, 30.0, *bm.ColorNotes[0].AngleOffset)
}
