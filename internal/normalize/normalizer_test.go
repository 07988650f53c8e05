package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func newTestNormalizer() *Normalizer {
	return New(plan.DefaultSettings().Normalize)
}

func glyphRuns(text string, x, y, w, size float64) []plan.TextRun {
	var runs []plan.TextRun
	for _, r := range text {
		runs = append(runs, plan.TextRun{
			Text: string(r),
			BBox: plan.BBox{X0: x, Y0: y, X1: x + w, Y1: y + size},
			Size: size,
		})
		x += w
	}
	return runs
}

func TestNormalizeEmptyPage(t *testing.T) {
	page, err := newTestNormalizer().Normalize(&plan.PageRecord{PageNumber: 1, Width: 612, Height: 792})
	require.NoError(t, err)
	assert.Empty(t, page.Blocks)
	assert.Empty(t, page.Paths)
	assert.Equal(t, 612.0, page.Width)
}

func TestNormalizeInvalidRecord(t *testing.T) {
	n := newTestNormalizer()

	_, err := n.Normalize(nil)
	assert.Error(t, err)

	_, err = n.Normalize(&plan.PageRecord{PageNumber: 1, Width: 0, Height: 792})
	assert.Error(t, err)

	_, err = n.Normalize(&plan.PageRecord{PageNumber: 1, Width: 10, Height: 10, Origin: "center"})
	assert.Error(t, err)
}

func TestMergeGlyphRuns(t *testing.T) {
	var runs []plan.TextRun
	runs = append(runs, plan.TextRun{Text: "CLASSE", BBox: plan.BBox{X0: 40, Y0: 100, X1: 76, Y1: 110}, Size: 10})
	runs = append(runs, glyphRuns("204", 82, 100, 6, 10)...)
	runs = append(runs, glyphRuns("PHOTO", 300, 100, 6, 10)...)
	runs = append(runs, glyphRuns("12'-6\"", 40, 200, 5, 8)...)
	runs = append(runs, plan.TextRun{Text: "   ", BBox: plan.BBox{X0: 10, Y0: 10, X1: 20, Y1: 20}})

	page, err := newTestNormalizer().Normalize(&plan.PageRecord{
		PageNumber: 3, Width: 612, Height: 792, TextRuns: runs,
	})
	require.NoError(t, err)
	require.Len(t, page.Blocks, 3)

	assert.Equal(t, "CLASSE 204", page.Blocks[0].Text)
	assert.Equal(t, plan.BBox{X0: 40, Y0: 100, X1: 100, Y1: 110}, page.Blocks[0].BBox)
	assert.Equal(t, 4, page.Blocks[0].Runs)
	assert.Equal(t, "PHOTO", page.Blocks[1].Text)
	assert.Equal(t, "12'-6\"", page.Blocks[2].Text)
	assert.Equal(t, 8.0, page.Blocks[2].FontSize)
}

func TestMergeKeepsSeparateBaselines(t *testing.T) {
	runs := append(glyphRuns("AB", 0, 100, 6, 10), glyphRuns("CD", 12, 108, 6, 10)...)
	page, err := newTestNormalizer().Normalize(&plan.PageRecord{PageNumber: 1, Width: 200, Height: 200, TextRuns: runs})
	require.NoError(t, err)
	require.Len(t, page.Blocks, 2)
	assert.Equal(t, "AB", page.Blocks[0].Text)
	assert.Equal(t, "CD", page.Blocks[1].Text)
}

func TestBottomLeftOriginIsFlipped(t *testing.T) {
	page, err := newTestNormalizer().Normalize(&plan.PageRecord{
		PageNumber: 1, Width: 612, Height: 792, Origin: plan.OriginBottomLeft,
		TextRuns: []plan.TextRun{{Text: "A", BBox: plan.BBox{X0: 10, Y0: 700, X1: 16, Y1: 710}, Size: 10}},
		Paths: []plan.RawPath{{Kind: plan.PathLine, Points: []plan.Point{{X: 0, Y: 792}, {X: 100, Y: 792}}}},
	})
	require.NoError(t, err)
	require.Len(t, page.Blocks, 1)
	assert.InDelta(t, 82, page.Blocks[0].BBox.Y0, 1e-9)
	assert.InDelta(t, 92, page.Blocks[0].BBox.Y1, 1e-9)
	require.Len(t, page.Paths, 1)
	assert.Equal(t, plan.PathLine, page.Paths[0].Kind)
	assert.InDelta(t, 0, page.Paths[0].Points[0].Y, 1e-9)
}

func TestUnitsPerInchScaling(t *testing.T) {
	page, err := newTestNormalizer().Normalize(&plan.PageRecord{
		PageNumber: 1, Width: 1700, Height: 2200, UnitsPerInch: 200,
		Paths: []plan.RawPath{{Kind: plan.PathLine, Points: []plan.Point{{X: 0, Y: 0}, {X: 200, Y: 0}}, StrokeWidth: 2}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 612, page.Width, 1e-9)
	require.Len(t, page.Paths, 1)
	assert.InDelta(t, 72, page.Paths[0].Length(), 1e-9)
	assert.InDelta(t, 0.72, page.Paths[0].StrokeWidth, 1e-9)
}

func TestQuarterCircleBezierBecomesArc(t *testing.T) {
	const r, k = 36.0, 0.5522847498
	cx, cy := 100.0, 100.0
	page, err := newTestNormalizer().Normalize(&plan.PageRecord{
		PageNumber: 1, Width: 612, Height: 792,
		Paths: []plan.RawPath{{Kind: plan.PathCurve, Points: []plan.Point{
			{X: cx + r, Y: cy}, {X: cx + r, Y: cy + k*r}, {X: cx + k*r, Y: cy + r}, {X: cx, Y: cy + r},
		}}},
	})
	require.NoError(t, err)
	require.Len(t, page.Paths, 1)

	path := page.Paths[0]
	require.Equal(t, plan.PathArc, path.Kind)
	require.NotNil(t, path.Arc)
	assert.InDelta(t, r, path.Arc.Radius, 0.01)
	assert.InDelta(t, cx, path.Arc.Center.X, 0.01)
	assert.InDelta(t, cy, path.Arc.Center.Y, 0.01)
	assert.InDelta(t, 90, path.Arc.Span, 0.1)
	assert.InDelta(t, 0, path.Arc.StartAngle, 0.1)
	assert.InDelta(t, 90, path.Arc.EndAngle, 0.1)
	assert.LessOrEqual(t, path.Arc.FitResidual, 0.02)
	assert.InDelta(t, cx+r, path.BBox.X1, 0.01)
	assert.InDelta(t, cy+r, path.BBox.Y1, 0.01)
}

func TestNonCircularCurves(t *testing.T) {
	page, err := newTestNormalizer().Normalize(&plan.PageRecord{
		PageNumber: 1, Width: 612, Height: 792,
		Paths: []plan.RawPath{
			{Kind: plan.PathCurve, Points: []plan.Point{{X: 0, Y: 0}, {X: 50, Y: 80}, {X: 50, Y: -80}, {X: 100, Y: 0}}},
			{Kind: plan.PathCurve, Points: []plan.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}, {X: 30, Y: 0}}},
			{Kind: plan.PathCurve, Points: []plan.Point{{X: 0, Y: 0}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, page.Paths, 2)
	assert.Equal(t, plan.PathPolyline, page.Paths[0].Kind)
	assert.Equal(t, plan.PathLine, page.Paths[1].Kind)
	assert.Equal(t, 1, page.Dropped)
}

func TestPolylineClassification(t *testing.T) {
	var arcPoints []plan.Point
	for i := 0; i <= 6; i++ {
		a := float64(i) * 15 * math.Pi / 180
		arcPoints = append(arcPoints, plan.Point{X: 200 + 30*math.Cos(a), Y: 200 + 30*math.Sin(a)})
	}

	page, err := newTestNormalizer().Normalize(&plan.PageRecord{
		PageNumber: 1, Width: 612, Height: 792,
		Paths: []plan.RawPath{
			{Kind: plan.PathPolyline, Points: arcPoints},
			{Kind: plan.PathPolyline, Points: []plan.Point{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 50, Y: 40}, {X: 0, Y: 40}, {X: 0, Y: 0}}},
			{Kind: plan.PathPolyline, Points: []plan.Point{{X: 0, Y: 0}, {X: 50, Y: 0.1}, {X: 100, Y: 0}}},
			{Kind: plan.PathPolyline, Points: []plan.Point{{X: 0, Y: 0}, {X: 50, Y: 30}, {X: 100, Y: 0}}},
			{Kind: plan.PathRect, Points: []plan.Point{{X: 10, Y: 60}, {X: 0, Y: 20}}},
			{Kind: plan.PathLine, Points: []plan.Point{{X: 5, Y: 5}, {X: 5, Y: 5}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, page.Paths, 5)

	assert.Equal(t, plan.PathArc, page.Paths[0].Kind)
	assert.InDelta(t, 90, page.Paths[0].Arc.Span, 0.5)
	assert.InDelta(t, 30, page.Paths[0].Arc.Radius, 0.1)

	assert.Equal(t, plan.PathRect, page.Paths[1].Kind)
	assert.Equal(t, plan.BBox{X0: 0, Y0: 0, X1: 50, Y1: 40}, page.Paths[1].BBox)

	assert.Equal(t, plan.PathLine, page.Paths[2].Kind)
	assert.Equal(t, plan.PathPolyline, page.Paths[3].Kind)

	assert.Equal(t, plan.PathRect, page.Paths[4].Kind)
	assert.Equal(t, plan.BBox{X0: 0, Y0: 20, X1: 10, Y1: 60}, page.Paths[4].BBox)
	assert.Equal(t, 1, page.Dropped)
}

func TestExplicitArc(t *testing.T) {
	center := plan.Point{X: 100, Y: 100}
	page, err := newTestNormalizer().Normalize(&plan.PageRecord{
		PageNumber: 1, Width: 612, Height: 792,
		Paths: []plan.RawPath{
			{Kind: plan.PathArc, Center: &center, Radius: 36, StartAngle: 270, EndAngle: 0},
			{Kind: plan.PathArc, Center: &center, Radius: 0, StartAngle: 0, EndAngle: 90},
		},
	})
	require.NoError(t, err)
	require.Len(t, page.Paths, 1)

	arc := page.Paths[0].Arc
	require.NotNil(t, arc)
	assert.InDelta(t, 90, arc.Span, 1e-6)
	assert.InDelta(t, 270, arc.StartAngle, 1e-6)
	assert.InDelta(t, 36, arc.Radius, 1e-6)
	assert.InDelta(t, 136, arc.EndPoint().X, 1e-6)
}

func TestPathsOf(t *testing.T) {
	page := &Page{Paths: []plan.DrawingPath{{Kind: plan.PathLine}, {Kind: plan.PathArc}, {Kind: plan.PathRect}}}
	assert.Len(t, page.PathsOf(plan.PathLine, plan.PathRect), 2)
	assert.Empty(t, page.PathsOf(plan.PathPolyline))
	assert.Equal(t, plan.BBox{X1: 0, Y1: 0}, page.BBox())
}
