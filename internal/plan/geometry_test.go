package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBoxOperations(t *testing.T) {
	a := NewBBox(Point{X: 10, Y: 10}, Point{X: 0, Y: 0})
	assert.Equal(t, BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}, a)
	assert.Equal(t, Point{X: 5, Y: 5}, a.Center())
	assert.InDelta(t, 100, a.Area(), 1e-9)

	b := BBox{X0: 5, Y0: 5, X1: 15, Y1: 15}
	assert.True(t, a.Intersects(b))
	assert.Equal(t, BBox{X0: 0, Y0: 0, X1: 15, Y1: 15}, a.Union(b))
	assert.InDelta(t, 25.0/175.0, a.OverlapRatio(b), 1e-9)

	assert.True(t, a.Contains(Point{X: 10, Y: 0}))
	assert.False(t, a.Contains(Point{X: 10.1, Y: 0}))
	assert.InDelta(t, 5, a.DistanceTo(Point{X: 13, Y: 14}), 1e-9)
	assert.Zero(t, a.DistanceTo(Point{X: 3, Y: 3}))
}

func TestSegmentDistance(t *testing.T) {
	a, b := Point{X: 0, Y: 0}, Point{X: 10, Y: 0}
	assert.InDelta(t, 3, SegmentDistance(Point{X: 5, Y: 3}, a, b), 1e-9)
	assert.InDelta(t, 5, SegmentDistance(Point{X: 13, Y: 4}, a, b), 1e-9)
	assert.InDelta(t, 5, SegmentDistance(Point{X: 3, Y: 4}, a, a), 1e-9)
}

func TestAngles(t *testing.T) {
	o := Point{}
	assert.InDelta(t, 0, AngleOf(o, Point{X: 1}), 1e-9)
	assert.InDelta(t, 90, AngleOf(o, Point{Y: 1}), 1e-9)
	assert.InDelta(t, 270, AngleOf(o, Point{Y: -1}), 1e-9)
	assert.InDelta(t, 350, NormalizeAngle(-10), 1e-9)

	p := Polar(Point{X: 1, Y: 1}, 2, 90)
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 3, p.Y, 1e-9)

	arc := ArcParams{Center: o, Radius: 1, StartAngle: 350, Span: 20, EndAngle: 10}
	assert.InDelta(t, 0, arc.MidAngle(), 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-1))
	assert.Equal(t, 1.0, Clamp01(2))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.4, Clamp01(0.4))
}

func TestDefaultSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.Door.MinSwing = 130
	s.Pipeline.Workers = 0
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "door swing range")
	assert.Contains(t, err.Error(), "pipeline.workers")
}

func TestPageRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  PageRecord
		wantErr bool
	}{
		{"valid", PageRecord{PageNumber: 1, Width: 612, Height: 792}, false},
		{"zero page", PageRecord{PageNumber: 0, Width: 612, Height: 792}, true},
		{"nan width", PageRecord{PageNumber: 2, Width: math.NaN(), Height: 792}, true},
		{"bad origin", PageRecord{PageNumber: 3, Width: 1, Height: 1, Origin: "center"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
