package plan

import "math"

// Point is a position in normalized page units, origin at the top-left corner.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance returns the euclidean distance to another point
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Midpoint returns the point halfway between p and other
func (p Point) Midpoint(other Point) Point {
	return Point{X: (p.X + other.X) / 2, Y: (p.Y + other.Y) / 2}
}

// BBox is an axis-aligned rectangle. X0,Y0 is the top-left corner.
type BBox struct {
	X0 float64 `json:"x0" yaml:"x0"`
	Y0 float64 `json:"y0" yaml:"y0"`
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
}

// NewBBox builds a box from two arbitrary corners
func NewBBox(a, b Point) BBox {
	return BBox{
		X0: math.Min(a.X, b.X),
		Y0: math.Min(a.Y, b.Y),
		X1: math.Max(a.X, b.X),
		Y1: math.Max(a.Y, b.Y),
	}
}

// BBoxOf returns the smallest box containing all points.
func BBoxOf(points []Point) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	box := BBox{X0: points[0].X, Y0: points[0].Y, X1: points[0].X, Y1: points[0].Y}
	for _, p := range points[1:] {
		box.X0 = math.Min(box.X0, p.X)
		box.Y0 = math.Min(box.Y0, p.Y)
		box.X1 = math.Max(box.X1, p.X)
		box.Y1 = math.Max(box.Y1, p.Y)
	}
	return box
}

func (b BBox) Width() float64  { return b.X1 - b.X0 }
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }
func (b BBox) Area() float64   { return b.Width() * b.Height() }

// Center returns the center point of the box
func (b BBox) Center() Point {
	return Point{X: (b.X0 + b.X1) / 2, Y: (b.Y0 + b.Y1) / 2}
}

// IsEmpty reports whether the box has no area
func (b BBox) IsEmpty() bool {
	return b.X1 <= b.X0 || b.Y1 <= b.Y0
}

// Contains reports whether p lies inside or on the edge of the box
func (b BBox) Contains(p Point) bool {
	return p.X >= b.X0 && p.X <= b.X1 && p.Y >= b.Y0 && p.Y <= b.Y1
}

// ContainsBox reports whether other lies entirely within b
func (b BBox) ContainsBox(other BBox) bool {
	return other.X0 >= b.X0 && other.X1 <= b.X1 && other.Y0 >= b.Y0 && other.Y1 <= b.Y1
}

// Intersects reports whether the two boxes overlap
func (b BBox) Intersects(other BBox) bool {
	return b.X0 <= other.X1 && other.X0 <= b.X1 && b.Y0 <= other.Y1 && other.Y0 <= b.Y1
}

// Union returns the smallest box containing both boxes
func (b BBox) Union(other BBox) BBox {
	return BBox{
		X0: math.Min(b.X0, other.X0),
		Y0: math.Min(b.Y0, other.Y0),
		X1: math.Max(b.X1, other.X1),
		Y1: math.Max(b.Y1, other.Y1),
	}
}

// Expand grows the box by margin on every side
func (b BBox) Expand(margin float64) BBox {
	return BBox{X0: b.X0 - margin, Y0: b.Y0 - margin, X1: b.X1 + margin, Y1: b.Y1 + margin}
}

// DistanceTo returns the distance from p to the box, zero when p is inside.
func (b BBox) DistanceTo(p Point) float64 {
	dx := math.Max(0, math.Max(b.X0-p.X, p.X-b.X1))
	dy := math.Max(0, math.Max(b.Y0-p.Y, p.Y-b.Y1))
	return math.Hypot(dx, dy)
}

// OverlapRatio returns intersection area over union area.
func (b BBox) OverlapRatio(other BBox) float64 {
	if !b.Intersects(other) {
		return 0
	}
	ix := math.Min(b.X1, other.X1) - math.Max(b.X0, other.X0)
	iy := math.Min(b.Y1, other.Y1) - math.Max(b.Y0, other.Y0)
	inter := ix * iy
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// SegmentDistance returns the distance from p to the segment a-b.
func SegmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	t = math.Max(0, math.Min(1, t))
	return p.Distance(Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

// NormalizeAngle maps an angle in degrees onto [0, 360).
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// AngleOf returns the direction from origin to p in degrees on [0, 360).
// Angles grow clockwise on the page because y points down.
func AngleOf(origin, p Point) float64 {
	return NormalizeAngle(math.Atan2(p.Y-origin.Y, p.X-origin.X) * 180 / math.Pi)
}

// Clamp01 clamps v onto [0, 1]
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Polar returns the point at distance r from c in direction deg.
func Polar(c Point, r, deg float64) Point {
	rad := deg * math.Pi / 180
	return Point{X: c.X + r*math.Cos(rad), Y: c.Y + r*math.Sin(rad)}
}
