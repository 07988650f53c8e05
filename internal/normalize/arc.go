package normalize

import (
	"math"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

type bezier [4]plan.Point

func (b bezier) at(t float64) plan.Point {
	u := 1 - t
	c0, c1, c2, c3 := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return plan.Point{
		X: c0*b[0].X + c1*b[1].X + c2*b[2].X + c3*b[3].X,
		Y: c0*b[0].Y + c1*b[1].Y + c2*b[2].Y + c3*b[3].Y,
	}
}

// samples returns the curve at t = 0.1 ... 0.9
func (b bezier) samples() []plan.Point {
	out := make([]plan.Point, 0, 9)
	for i := 1; i <= 9; i++ {
		out = append(out, b.at(float64(i)/10))
	}
	return out
}

// arcThrough returns the circular arc from start through mid to end.
// It fails when the three points are collinear.
func arcThrough(start, mid, end plan.Point) (plan.ArcParams, bool) {
	center, ok := circumcenter(start, mid, end)
	if !ok {
		return plan.ArcParams{}, false
	}
	r := center.Distance(start)
	if r == 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return plan.ArcParams{}, false
	}

	a0 := plan.AngleOf(center, start)
	am := plan.AngleOf(center, mid)
	a1 := plan.AngleOf(center, end)

	arc := plan.ArcParams{Center: center, Radius: r}
	cwSpan := plan.NormalizeAngle(a1 - a0)
	if plan.NormalizeAngle(am-a0) <= cwSpan {
		arc.StartAngle, arc.EndAngle, arc.Span = a0, a1, cwSpan
	} else {
		arc.StartAngle, arc.EndAngle, arc.Span = a1, a0, plan.NormalizeAngle(a0-a1)
	}
	return arc, true
}

func circumcenter(a, b, c plan.Point) (plan.Point, bool) {
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	scale := math.Max(a.Distance(b), math.Max(b.Distance(c), a.Distance(c)))
	if scale == 0 || math.Abs(d) < 1e-9*scale*scale {
		return plan.Point{}, false
	}
	aa := a.X*a.X + a.Y*a.Y
	bb := b.X*b.X + b.Y*b.Y
	cc := c.X*c.X + c.Y*c.Y
	return plan.Point{
		X: (aa*(b.Y-c.Y) + bb*(c.Y-a.Y) + cc*(a.Y-b.Y)) / d,
		Y: (aa*(c.X-b.X) + bb*(a.X-c.X) + cc*(b.X-a.X)) / d,
	}, true
}

// residual returns the largest radial deviation of pts relative to the radius
func residual(arc plan.ArcParams, pts []plan.Point) float64 {
	worst := 0.0
	for _, p := range pts {
		dev := math.Abs(arc.Center.Distance(p)-arc.Radius) / arc.Radius
		worst = math.Max(worst, dev)
	}
	return worst
}

func withMidpoints(pts []plan.Point) []plan.Point {
	out := make([]plan.Point, 0, 2*len(pts))
	for i, p := range pts {
		if i > 0 {
			out = append(out, pts[i-1].Midpoint(p))
		}
		out = append(out, p)
	}
	return out
}
