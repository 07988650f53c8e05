package room

import (
	"math"

	"github.com/a3tai/mcp-plan-extractor/internal/normalize"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// axisTolerance is the largest off-axis drift, relative to length, of a wall segment
const axisTolerance = 0.05

type segment struct {
	a, b plan.Point
}

// geometry holds the page paths the bbox strategies search
type geometry struct {
	settings plan.RoomSettings
	closed   []plan.DrawingPath
	walls    []segment
	pageArea float64
}

// strategy tries to bound a room from its label; ok is false when it does not apply
type strategy struct {
	method plan.BBoxMethod
	fit    float64
	try    func(label plan.BBox) (plan.BBox, bool)
}

func newGeometry(page *normalize.Page, settings plan.RoomSettings) *geometry {
	g := &geometry{settings: settings, pageArea: page.Width * page.Height}
	for _, p := range page.Paths {
		switch {
		case p.Kind == plan.PathRect || (p.Kind == plan.PathPolyline && p.Closed):
			g.closed = append(g.closed, p)
		case p.Kind == plan.PathLine || p.Kind == plan.PathPolyline:
			for i := 1; i < len(p.Points); i++ {
				s := segment{p.Points[i-1], p.Points[i]}
				if s.a.Distance(s.b) >= settings.MinWallLength {
					g.walls = append(g.walls, s)
				}
			}
		}
	}
	return g
}

// locate runs the strategies in order and stops at the first that succeeds:
// an enclosing closed path, then walls found by rays cast from the label,
// then a fixed margin around the label, which always succeeds.
func (g *geometry) locate(label plan.BBox) (plan.BBox, plan.BBoxMethod, float64) {
	strategies := []strategy{
		{method: plan.BBoxEnclosingPath, fit: g.settings.EnclosingFit, try: g.enclosing},
		{method: plan.BBoxWallRays, fit: g.settings.WallRayFit, try: g.wallRays},
		{method: plan.BBoxMarginFallback, fit: g.settings.FallbackFit, try: g.margin},
	}
	for _, s := range strategies {
		if box, ok := s.try(label); ok {
			return box, s.method, s.fit
		}
	}
	// unreachable: the margin strategy always applies
	return label, plan.BBoxMarginFallback, g.settings.FallbackFit
}

func (g *geometry) plausible(box plan.BBox) bool {
	if box.IsEmpty() || box.Area() < g.settings.MinRoomArea {
		return false
	}
	return g.pageArea <= 0 || box.Area() <= g.settings.MaxRoomAreaRatio*g.pageArea
}

// enclosing returns the smallest plausible closed path around the label center
func (g *geometry) enclosing(label plan.BBox) (plan.BBox, bool) {
	center := label.Center()
	best, found := plan.BBox{}, false
	for _, p := range g.closed {
		if !p.BBox.Contains(center) || !g.plausible(p.BBox) {
			continue
		}
		if p.Kind == plan.PathPolyline && !polygonContains(p.Points, center) {
			continue
		}
		if !found || p.BBox.Area() < best.Area() {
			best, found = p.BBox, true
		}
	}
	return best, found
}

// wallRays casts a ray from the label center in each axis direction and
// stops at the first crossing wall. All four walls must be found.
func (g *geometry) wallRays(label plan.BBox) (plan.BBox, bool) {
	c := label.Center()
	limit := g.settings.MaxRayDistance
	left, right, up, down := math.Inf(1), math.Inf(1), math.Inf(1), math.Inf(1)

	for _, w := range g.walls {
		dx, dy := math.Abs(w.b.X-w.a.X), math.Abs(w.b.Y-w.a.Y)
		length := math.Hypot(dx, dy)
		switch {
		case dx <= axisTolerance*length:
			x := (w.a.X + w.b.X) / 2
			if c.Y < math.Min(w.a.Y, w.b.Y) || c.Y > math.Max(w.a.Y, w.b.Y) {
				continue
			}
			if x < label.X0 {
				left = math.Min(left, c.X-x)
			} else if x > label.X1 {
				right = math.Min(right, x-c.X)
			}
		case dy <= axisTolerance*length:
			y := (w.a.Y + w.b.Y) / 2
			if c.X < math.Min(w.a.X, w.b.X) || c.X > math.Max(w.a.X, w.b.X) {
				continue
			}
			if y < label.Y0 {
				up = math.Min(up, c.Y-y)
			} else if y > label.Y1 {
				down = math.Min(down, y-c.Y)
			}
		}
	}
	if left > limit || right > limit || up > limit || down > limit {
		return plan.BBox{}, false
	}
	box := plan.BBox{X0: c.X - left, Y0: c.Y - up, X1: c.X + right, Y1: c.Y + down}
	return box, g.plausible(box)
}

func (g *geometry) margin(label plan.BBox) (plan.BBox, bool) {
	return label.Expand(g.settings.FallbackMargin), true
}

// polygonContains is the even-odd ray crossing test
func polygonContains(poly []plan.Point, p plan.Point) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}
