// Package normalize turns raw per-page vector records into text blocks and
// classified drawing paths in a single top-left-origin frame.
package normalize

import (
	"fmt"
	"math"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// Page is the normalized content of one page. Width and Height are in output units.
type Page struct {
	Number int
	Width  float64
	Height float64
	Blocks []plan.TextBlock
	Paths  []plan.DrawingPath
	// Dropped counts primitives that had no usable geometry.
	Dropped int
}

// BBox returns the full page rectangle
func (p *Page) BBox() plan.BBox {
	return plan.BBox{X1: p.Width, Y1: p.Height}
}

// PathsOf returns the paths of the given kinds
func (p *Page) PathsOf(kinds ...plan.PathKind) []plan.DrawingPath {
	var out []plan.DrawingPath
	for _, path := range p.Paths {
		for _, k := range kinds {
			if path.Kind == k {
				out = append(out, path)
				break
			}
		}
	}
	return out
}

// Normalizer converts page records. It holds no per-page state and may be
// shared between workers.
type Normalizer struct {
	settings plan.NormalizeSettings
}

// New creates a normalizer
func New(settings plan.NormalizeSettings) *Normalizer {
	return &Normalizer{settings: settings}
}

type frame struct {
	scale  float64
	height float64
	flipY  bool
}

func (f frame) point(p plan.Point) plan.Point {
	y := p.Y
	if f.flipY {
		y = f.height - y
	}
	return plan.Point{X: p.X * f.scale, Y: y * f.scale}
}

func (f frame) box(b plan.BBox) plan.BBox {
	return plan.NewBBox(f.point(plan.Point{X: b.X0, Y: b.Y0}), f.point(plan.Point{X: b.X1, Y: b.Y1}))
}

// Normalize converts one page record. A page with no text and no paths gives
// an empty page, not an error; only an unusable record fails.
func (n *Normalizer) Normalize(rec *plan.PageRecord) (*Page, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil page record")
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	upi := rec.UnitsPerInch
	if upi == 0 {
		upi = plan.DefaultUnitsPerInch
	}
	f := frame{
		scale:  n.settings.OutputUnitsPerInch / upi,
		height: rec.Height,
		flipY:  rec.Origin == plan.OriginBottomLeft,
	}

	page := &Page{
		Number: rec.PageNumber,
		Width:  rec.Width * f.scale,
		Height: rec.Height * f.scale,
	}

	page.Blocks = n.mergeRuns(f, rec.TextRuns)

	for _, raw := range rec.Paths {
		path, ok := n.classify(f, raw)
		if !ok {
			page.Dropped++
			continue
		}
		page.Paths = append(page.Paths, path)
	}
	return page, nil
}

func (n *Normalizer) classify(f frame, raw plan.RawPath) (plan.DrawingPath, bool) {
	for _, p := range raw.Points {
		if !finitePoint(p) {
			return plan.DrawingPath{}, false
		}
	}
	stroke := raw.StrokeWidth * f.scale

	switch raw.Kind {
	case plan.PathArc:
		return n.explicitArc(f, raw, stroke)
	case plan.PathCurve:
		if len(raw.Points) != 4 {
			return plan.DrawingPath{}, false
		}
		return n.curve(transformAll(f, raw.Points), stroke), true
	case plan.PathRect:
		pts := transformAll(f, raw.Points)
		if len(pts) < 2 {
			return plan.DrawingPath{}, false
		}
		return rectPath(plan.BBoxOf(pts), stroke), true
	case plan.PathLine, plan.PathPolyline:
		pts := dedupe(transformAll(f, raw.Points))
		if len(pts) < 2 {
			return plan.DrawingPath{}, false
		}
		return n.polyline(pts, raw.Closed, stroke), true
	default:
		return plan.DrawingPath{}, false
	}
}

func (n *Normalizer) explicitArc(f frame, raw plan.RawPath, stroke float64) (plan.DrawingPath, bool) {
	if raw.Center == nil || raw.Radius <= 0 || !finitePoint(*raw.Center) {
		return plan.DrawingPath{}, false
	}
	// the sweep runs toward increasing angles in the record's own frame
	span := plan.NormalizeAngle(raw.EndAngle - raw.StartAngle)
	if span == 0 {
		return plan.DrawingPath{}, false
	}
	start := f.point(plan.Polar(*raw.Center, raw.Radius, raw.StartAngle))
	mid := f.point(plan.Polar(*raw.Center, raw.Radius, raw.StartAngle+span/2))
	end := f.point(plan.Polar(*raw.Center, raw.Radius, raw.EndAngle))

	arc, ok := arcThrough(start, mid, end)
	if !ok {
		return plan.DrawingPath{}, false
	}
	return arcPath(arc, []plan.Point{start, mid, end}, stroke), true
}

func (n *Normalizer) curve(pts []plan.Point, stroke float64) plan.DrawingPath {
	b := bezier{pts[0], pts[1], pts[2], pts[3]}
	samples := b.samples()
	chain := make([]plan.Point, 0, len(samples)+2)
	chain = append(chain, b.at(0))
	chain = append(chain, samples...)
	chain = append(chain, b.at(1))

	if arc, ok := arcThrough(b.at(0), b.at(0.5), b.at(1)); ok {
		arc.FitResidual = residual(arc, samples)
		if arc.FitResidual <= n.settings.ArcFitTolerance {
			return arcPath(arc, chain, stroke)
		}
	}

	if n.collinear(chain) {
		return linePath(chain[0], chain[len(chain)-1], stroke)
	}
	return plan.DrawingPath{Kind: plan.PathPolyline, BBox: plan.BBoxOf(chain), Points: chain, StrokeWidth: stroke}
}

func (n *Normalizer) polyline(pts []plan.Point, closed bool, stroke float64) plan.DrawingPath {
	if len(pts) > 2 && pts[0] == pts[len(pts)-1] {
		closed = true
		pts = pts[:len(pts)-1]
	}
	if len(pts) == 2 {
		return linePath(pts[0], pts[1], stroke)
	}
	if closed {
		if isAxisRect(pts) {
			return rectPath(plan.BBoxOf(pts), stroke)
		}
		return plan.DrawingPath{Kind: plan.PathPolyline, BBox: plan.BBoxOf(pts), Points: pts, Closed: true, StrokeWidth: stroke}
	}
	if n.collinear(pts) {
		return linePath(pts[0], pts[len(pts)-1], stroke)
	}
	if len(pts) >= n.settings.MinArcPoints {
		if arc, ok := arcThrough(pts[0], pts[len(pts)/2], pts[len(pts)-1]); ok {
			arc.FitResidual = residual(arc, withMidpoints(pts))
			if arc.FitResidual <= n.settings.ArcFitTolerance {
				return arcPath(arc, pts, stroke)
			}
		}
	}
	return plan.DrawingPath{Kind: plan.PathPolyline, BBox: plan.BBoxOf(pts), Points: pts, StrokeWidth: stroke}
}

func (n *Normalizer) collinear(pts []plan.Point) bool {
	a, b := pts[0], pts[len(pts)-1]
	chord := a.Distance(b)
	if chord == 0 {
		return false
	}
	for _, p := range pts[1 : len(pts)-1] {
		if plan.SegmentDistance(p, a, b)/chord > n.settings.CollinearTolerance {
			return false
		}
	}
	return true
}

func linePath(a, b plan.Point, stroke float64) plan.DrawingPath {
	return plan.DrawingPath{Kind: plan.PathLine, BBox: plan.NewBBox(a, b), Points: []plan.Point{a, b}, StrokeWidth: stroke}
}

func rectPath(box plan.BBox, stroke float64) plan.DrawingPath {
	return plan.DrawingPath{
		Kind: plan.PathRect,
		BBox: box,
		Points: []plan.Point{
			{X: box.X0, Y: box.Y0}, {X: box.X1, Y: box.Y0},
			{X: box.X1, Y: box.Y1}, {X: box.X0, Y: box.Y1},
		},
		Closed:      true,
		StrokeWidth: stroke,
	}
}

func arcPath(arc plan.ArcParams, pts []plan.Point, stroke float64) plan.DrawingPath {
	box := plan.BBoxOf(pts)
	for i := 0; i <= 8; i++ {
		p := plan.Polar(arc.Center, arc.Radius, arc.StartAngle+arc.Span*float64(i)/8)
		box = box.Union(plan.BBox{X0: p.X, Y0: p.Y, X1: p.X, Y1: p.Y})
	}
	return plan.DrawingPath{Kind: plan.PathArc, BBox: box, Points: pts, Arc: &arc, StrokeWidth: stroke}
}

func isAxisRect(pts []plan.Point) bool {
	if len(pts) != 4 {
		return false
	}
	const eps = 1e-6
	for i := range pts {
		a, b := pts[i], pts[(i+1)%4]
		if math.Abs(a.X-b.X) > eps && math.Abs(a.Y-b.Y) > eps {
			return false
		}
	}
	return !plan.BBoxOf(pts).IsEmpty()
}

func transformAll(f frame, pts []plan.Point) []plan.Point {
	out := make([]plan.Point, len(pts))
	for i, p := range pts {
		out[i] = f.point(p)
	}
	return out
}

func dedupe(pts []plan.Point) []plan.Point {
	out := make([]plan.Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

func finitePoint(p plan.Point) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
