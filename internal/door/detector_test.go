package door

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/normalize"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func newTestDetector() *Detector {
	s := plan.DefaultSettings()
	return New(s.Door, s.Confidence, nil)
}

func arc(cx, cy, r, start, span float64) plan.DrawingPath {
	params := plan.ArcParams{
		Center:     plan.Point{X: cx, Y: cy},
		Radius:     r,
		StartAngle: start,
		EndAngle:   plan.NormalizeAngle(start + span),
		Span:       span,
	}
	pts := []plan.Point{params.StartPoint(), params.EndPoint(), params.Center}
	return plan.DrawingPath{Kind: plan.PathArc, BBox: plan.BBoxOf(pts), Points: pts[:2], Arc: &params}
}

func line(x0, y0, x1, y1 float64) plan.DrawingPath {
	a, b := plan.Point{X: x0, Y: y0}, plan.Point{X: x1, Y: y1}
	return plan.DrawingPath{Kind: plan.PathLine, BBox: plan.NewBBox(a, b), Points: []plan.Point{a, b}}
}

func TestRejectsNarrowArcs(t *testing.T) {
	page := &normalize.Page{Number: 1, Paths: []plan.DrawingPath{
		arc(100, 100, 36, 0, 20),
		arc(200, 100, 36, 0, 170),
		arc(300, 100, 2, 0, 90),
		arc(400, 100, 300, 0, 90),
	}}

	res := newTestDetector().Detect(page, nil)
	assert.Empty(t, res.Doors)
	assert.Equal(t, 4, res.Arcs)
	assert.Equal(t, 0, res.Accepted)
	assert.Equal(t, CoverageNoneFound, res.Coverage)
}

func TestSwingAngleStaysInRange(t *testing.T) {
	var paths []plan.DrawingPath
	for span := 10.0; span <= 180; span += 5 {
		paths = append(paths, arc(span*10, 100, 30, 45, span))
	}
	res := newTestDetector().Detect(&normalize.Page{Number: 1, Paths: paths}, nil)

	require.NotEmpty(t, res.Doors)
	for _, d := range res.Doors {
		require.NotNil(t, d.SwingAngle)
		assert.GreaterOrEqual(t, *d.SwingAngle, 60.0)
		assert.LessOrEqual(t, *d.SwingAngle, 120.0)
		assert.GreaterOrEqual(t, d.Confidence, 0.0)
		assert.LessOrEqual(t, d.Confidence, 1.0)
	}
}

func TestDoorAgainstWall(t *testing.T) {
	page := &normalize.Page{
		Number: 3,
		Blocks: []plan.TextBlock{
			{Text: "P-3", BBox: plan.BBox{X0: 80, Y0: 80, X1: 95, Y1: 88}},
			{Text: "CLASSE 204", BBox: plan.BBox{X0: 120, Y0: 180, X1: 170, Y1: 190}},
		},
		Paths: []plan.DrawingPath{
			arc(100, 100, 36, 0, 90),
			line(40, 100, 100, 100),
			// the leaf drawn in its open position
			line(100, 100, 100, 136),
		},
	}
	rooms := []plan.Room{
		{ID: "204", BBox: plan.BBox{X0: 50, Y0: 100, X1: 200, Y1: 250}},
		{ID: "205", BBox: plan.BBox{X0: 300, Y0: 100, X1: 400, Y1: 250}},
	}

	res := newTestDetector().Detect(page, rooms)
	require.Len(t, res.Doors, 1)
	d := res.Doors[0]

	assert.Equal(t, CoverageDetected, res.Coverage)
	assert.Equal(t, "P-03", d.ID)
	assert.Equal(t, "P-03", d.Number)
	assert.Equal(t, plan.DoorSwing, d.Type)
	assert.InDelta(t, 90, *d.SwingAngle, 1e-9)
	assert.Equal(t, plan.Point{X: 100, Y: 100}, d.Hinge)
	require.NotNil(t, d.WallAngle)
	assert.InDelta(t, 0, *d.WallAngle, 1e-9)
	assert.Equal(t, "cw", d.Direction)
	assert.Equal(t, "south", d.OpensToward)
	assert.Equal(t, "204", d.RoomID)
	assert.Equal(t, 1, d.Leaves)
	assert.Equal(t, 3, d.Page)
	assert.InDelta(t, 1.0, d.Confidence, 1e-9)
}

func TestCounterClockwiseDoor(t *testing.T) {
	page := &normalize.Page{
		Number: 1,
		Paths: []plan.DrawingPath{
			// closed along the vertical wall at 90, opens toward the east at 0
			arc(100, 100, 36, 0, 90),
			line(100, 136, 100, 200),
		},
	}
	res := newTestDetector().Detect(page, nil)
	require.Len(t, res.Doors, 1)
	d := res.Doors[0]
	assert.Equal(t, "ccw", d.Direction)
	assert.Equal(t, "east", d.OpensToward)
	assert.Equal(t, "D1-1", d.ID)
	assert.Empty(t, d.RoomID)
	assert.InDelta(t, 0.6*0.9+0.4*1.0, d.Confidence, 1e-9)
}

func TestDoorWithoutWall(t *testing.T) {
	res := newTestDetector().Detect(&normalize.Page{Number: 1, Paths: []plan.DrawingPath{arc(100, 100, 36, 180, 90)}}, nil)
	require.Len(t, res.Doors, 1)
	d := res.Doors[0]
	assert.Nil(t, d.WallAngle)
	assert.Empty(t, d.Direction)
	assert.InDelta(t, 0.6*0.9+0.4*0.75, d.Confidence, 1e-9)
}

func TestWallAngleTolerance(t *testing.T) {
	page := &normalize.Page{Number: 1, Paths: []plan.DrawingPath{
		arc(100, 100, 36, 0, 90),
		// a diagonal through the hinge, 45 degrees off both leaf ends
		line(40, 40, 100, 100),
	}}

	res := newTestDetector().Detect(page, nil)
	require.Len(t, res.Doors, 1)
	assert.Nil(t, res.Doors[0].WallAngle)
	assert.Empty(t, res.Doors[0].Direction)

	for _, tol := range []float64{50, 0} {
		s := plan.DefaultSettings()
		s.Door.WallAngleTolerance = tol
		res = New(s.Door, s.Confidence, nil).Detect(page, nil)
		require.Len(t, res.Doors, 1)
		require.NotNil(t, res.Doors[0].WallAngle, "tolerance %v", tol)
		assert.InDelta(t, 45, *res.Doors[0].WallAngle, 1e-9)
	}
}

func TestDoubleDoor(t *testing.T) {
	page := &normalize.Page{Number: 2, Paths: []plan.DrawingPath{
		arc(100, 300, 30, 0, 90),
		arc(160, 300, 30, 90, 90),
		arc(400, 300, 30, 0, 90),
	}}

	res := newTestDetector().Detect(page, nil)
	assert.Equal(t, 3, res.Accepted)
	require.Len(t, res.Doors, 2)
	assert.Equal(t, 2, res.Doors[0].Leaves)
	assert.Equal(t, 1, res.Doors[1].Leaves)
	assert.Equal(t, "D2-2", res.Doors[1].ID)
}

func TestCoverageWithoutArcs(t *testing.T) {
	d := newTestDetector()
	page := &normalize.Page{Number: 1, Paths: []plan.DrawingPath{line(0, 0, 100, 0)}}

	res := d.Detect(page, []plan.Room{{ID: "101"}})
	assert.Equal(t, CoverageNotDetectable, res.Coverage)
	assert.Empty(t, res.Doors)

	res = d.Detect(page, nil)
	assert.Equal(t, CoverageNotApplicable, res.Coverage)
	assert.Equal(t, CoverageNotDetectable, res.Coverage.Resolve(plan.PagePlan))
	assert.Equal(t, CoverageNotApplicable, res.Coverage.Resolve(plan.PageLegend))
	assert.Equal(t, CoverageDetected, CoverageDetected.Resolve(plan.PagePlan))
}

func TestDoorNumberLabels(t *testing.T) {
	d := newTestDetector()
	for text, want := range map[string]string{"P12": "P-12", "p-7": "P-07", "PORTE 3": "P-03", "D-101": "P-101"} {
		got, ok := d.doorNumber(text)
		require.True(t, ok, text)
		assert.Equal(t, want, got)
	}
	_, ok := d.doorNumber("PHOTO 5")
	assert.False(t, ok)
}

func TestCompass(t *testing.T) {
	assert.Equal(t, "east", compass(10))
	assert.Equal(t, "south", compass(90))
	assert.Equal(t, "west", compass(185))
	assert.Equal(t, "north", compass(270))
	assert.Equal(t, "east", compass(350))
}
