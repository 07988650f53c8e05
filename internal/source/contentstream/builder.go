package contentstream

import (
	"fmt"
	"io"
	"math"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// Matrix is a PDF transformation matrix [a b c d e f]
type Matrix [6]float64

// Identity is the identity transformation
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Translate returns a translation matrix
func Translate(tx, ty float64) Matrix {
	return Matrix{1, 0, 0, 1, tx, ty}
}

// Multiply returns m followed by n
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// Apply transforms a point
func (m Matrix) Apply(p plan.Point) plan.Point {
	return plan.Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// Scale is the linear scale factor of the matrix, used for line widths
func (m Matrix) Scale() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

// Stats counts what a content stream contained
type Stats struct {
	Operators int
	Painted   int
	Discarded int
	// XObjects counts Do operators. Form contents are not followed.
	XObjects int
	Unknown  int
}

type graphicsState struct {
	ctm   Matrix
	width float64
}

type segment struct {
	curve bool
	// pts holds the end point of a line, or the two control points and the end point of a curve
	pts []plan.Point
}

type subpath struct {
	start    plan.Point
	segments []segment
	closed   bool
	rect     bool
}

func (s *subpath) current() plan.Point {
	if n := len(s.segments); n > 0 {
		pts := s.segments[n-1].pts
		return pts[len(pts)-1]
	}
	return s.start
}

// Builder interprets the path construction and painting operators of a
// content stream and emits the painted paths as raw path records in default
// user space. Text, color and image operators are ignored.
type Builder struct {
	state    graphicsState
	stack    []graphicsState
	subpaths []*subpath
	operands []float64
	depth    int
	paths    []plan.RawPath
	stats    Stats

	// CurveSamples is the number of points a curve contributes when several
	// curves chain into one polyline.
	CurveSamples int
}

// NewBuilder starts with the given base transformation, usually the identity
// or a translation that moves the media box origin to zero.
func NewBuilder(base Matrix) *Builder {
	return &Builder{
		state:        graphicsState{ctm: base, width: 1},
		CurveSamples: 8,
	}
}

// Extract reads a whole content stream and returns the painted paths
func Extract(r io.Reader, base Matrix) ([]plan.RawPath, Stats, error) {
	b := NewBuilder(base)
	if err := b.Run(r); err != nil {
		return b.Paths(), b.Stats(), err
	}
	return b.Paths(), b.Stats(), nil
}

// Run feeds every token of r to the builder
func (b *Builder) Run(r io.Reader) error {
	lex := NewLexer(r)
	for {
		tok, err := lex.Next()
		if err != nil {
			return err
		}
		if tok.Type == TokenEOF {
			return nil
		}
		if err := b.Feed(tok); err != nil {
			return err
		}
	}
}

// Paths returns the paths painted so far
func (b *Builder) Paths() []plan.RawPath {
	return b.paths
}

// Stats returns the operator counts seen so far
func (b *Builder) Stats() Stats {
	return b.stats
}

// Feed processes one token
func (b *Builder) Feed(tok Token) error {
	switch tok.Type {
	case TokenArrayStart, TokenDictStart:
		b.depth++
		b.operands = b.operands[:0]
	case TokenArrayEnd, TokenDictEnd:
		if b.depth > 0 {
			b.depth--
		}
	case TokenNumber:
		if b.depth > 0 {
			return nil
		}
		v, ok := tok.Number()
		if !ok {
			return fmt.Errorf("invalid number %q at %d", tok.Value, tok.Pos)
		}
		b.operands = append(b.operands, v)
	case TokenOperator:
		if b.depth > 0 {
			return nil
		}
		b.stats.Operators++
		b.operator(tok.Value)
		b.operands = b.operands[:0]
	}
	return nil
}

// args returns the last n operands, or false when fewer were given
func (b *Builder) args(n int) ([]float64, bool) {
	if len(b.operands) < n {
		return nil, false
	}
	return b.operands[len(b.operands)-n:], true
}

func (b *Builder) point(x, y float64) plan.Point {
	return b.state.ctm.Apply(plan.Point{X: x, Y: y})
}

func (b *Builder) operator(op string) {
	switch op {
	case "q":
		b.stack = append(b.stack, b.state)
	case "Q":
		if n := len(b.stack); n > 0 {
			b.state = b.stack[n-1]
			b.stack = b.stack[:n-1]
		}
	case "cm":
		if a, ok := b.args(6); ok {
			b.state.ctm = Matrix{a[0], a[1], a[2], a[3], a[4], a[5]}.Multiply(b.state.ctm)
		}
	case "w":
		if a, ok := b.args(1); ok && a[0] >= 0 {
			b.state.width = a[0]
		}
	case "m":
		if a, ok := b.args(2); ok {
			b.subpaths = append(b.subpaths, &subpath{start: b.point(a[0], a[1])})
		}
	case "l":
		if a, ok := b.args(2); ok {
			b.add(segment{pts: []plan.Point{b.point(a[0], a[1])}})
		}
	case "c":
		if a, ok := b.args(6); ok {
			b.add(segment{curve: true, pts: []plan.Point{b.point(a[0], a[1]), b.point(a[2], a[3]), b.point(a[4], a[5])}})
		}
	case "v":
		if a, ok := b.args(4); ok {
			if sp := b.open(); sp != nil {
				b.add(segment{curve: true, pts: []plan.Point{sp.current(), b.point(a[0], a[1]), b.point(a[2], a[3])}})
			}
		}
	case "y":
		if a, ok := b.args(4); ok {
			end := b.point(a[2], a[3])
			b.add(segment{curve: true, pts: []plan.Point{b.point(a[0], a[1]), end, end}})
		}
	case "h":
		if sp := b.open(); sp != nil {
			sp.closed = true
		}
	case "re":
		if a, ok := b.args(4); ok {
			x, y, w, h := a[0], a[1], a[2], a[3]
			sp := &subpath{start: b.point(x, y), closed: true, rect: true}
			sp.segments = []segment{
				{pts: []plan.Point{b.point(x+w, y)}},
				{pts: []plan.Point{b.point(x+w, y+h)}},
				{pts: []plan.Point{b.point(x, y+h)}},
			}
			b.subpaths = append(b.subpaths, sp)
		}
	case "S", "f", "F", "f*", "B", "B*":
		b.paint()
	case "s", "b", "b*":
		if sp := b.open(); sp != nil {
			sp.closed = true
		}
		b.paint()
	case "n":
		b.stats.Discarded += len(b.subpaths)
		b.subpaths = nil
	case "W", "W*":
		// clipping takes effect at the next painting operator; the clip itself is not drawn
	case "Do":
		b.stats.XObjects++
	case "BT", "ET", "Tf", "Td", "TD", "Tm", "T*", "Tj", "TJ", "'", "\"", "Tc", "Tw", "Tz", "TL", "Tr", "Ts",
		"g", "G", "rg", "RG", "k", "K", "cs", "CS", "sc", "SC", "scn", "SCN", "gs", "ri", "i", "j", "J", "M", "d",
		"BI", "ID", "EI", "BMC", "BDC", "EMC", "MP", "DP", "sh", "d0", "d1", "BX", "EX":
	default:
		b.stats.Unknown++
	}
}

// open returns the subpath under construction, if any
func (b *Builder) open() *subpath {
	if n := len(b.subpaths); n > 0 {
		return b.subpaths[n-1]
	}
	return nil
}

// add appends a segment to the open subpath. A segment without a preceding
// moveto starts at its own end point.
func (b *Builder) add(seg segment) {
	sp := b.open()
	if sp == nil || sp.closed {
		start := seg.pts[len(seg.pts)-1]
		if sp != nil {
			start = sp.start
		}
		sp = &subpath{start: start}
		b.subpaths = append(b.subpaths, sp)
	}
	sp.segments = append(sp.segments, seg)
}

func (b *Builder) paint() {
	width := b.state.width * b.state.ctm.Scale()
	for _, sp := range b.subpaths {
		b.emit(sp, width)
	}
	b.stats.Painted += len(b.subpaths)
	b.subpaths = nil
}

// emit converts one subpath into raw records. Closed line-only subpaths stay
// whole so enclosures survive; open ones split into single lines. Chained
// curves are sampled into one polyline.
func (b *Builder) emit(sp *subpath, width float64) {
	if len(sp.segments) == 0 {
		return
	}

	if sp.closed && !hasCurve(sp) {
		pts := []plan.Point{sp.start}
		for _, seg := range sp.segments {
			pts = append(pts, seg.pts[0])
		}
		kind := plan.PathPolyline
		if sp.rect {
			kind = plan.PathRect
		}
		b.paths = append(b.paths, plan.RawPath{Kind: kind, Points: pts, Closed: true, StrokeWidth: width})
		return
	}

	segments := sp.segments
	if sp.closed {
		if cur := sp.current(); cur != sp.start {
			segments = append(segments[:len(segments):len(segments)], segment{pts: []plan.Point{sp.start}})
		}
	}

	from := sp.start
	var chain []segment
	chainStart := from
	flush := func() {
		switch len(chain) {
		case 0:
		case 1:
			c := chain[0]
			b.paths = append(b.paths, plan.RawPath{
				Kind:        plan.PathCurve,
				Points:      []plan.Point{chainStart, c.pts[0], c.pts[1], c.pts[2]},
				StrokeWidth: width,
			})
		default:
			pts := []plan.Point{chainStart}
			p0 := chainStart
			for _, c := range chain {
				pts = append(pts, sampleCurve(p0, c.pts[0], c.pts[1], c.pts[2], b.CurveSamples)...)
				p0 = c.pts[2]
			}
			b.paths = append(b.paths, plan.RawPath{Kind: plan.PathPolyline, Points: pts, StrokeWidth: width})
		}
		chain = nil
	}

	for _, seg := range segments {
		end := seg.pts[len(seg.pts)-1]
		if seg.curve {
			if len(chain) == 0 {
				chainStart = from
			}
			chain = append(chain, seg)
		} else {
			flush()
			if end != from {
				b.paths = append(b.paths, plan.RawPath{Kind: plan.PathLine, Points: []plan.Point{from, end}, StrokeWidth: width})
			}
		}
		from = end
	}
	flush()
}

func hasCurve(sp *subpath) bool {
	for _, seg := range sp.segments {
		if seg.curve {
			return true
		}
	}
	return false
}

// sampleCurve returns n points along a cubic Bezier, excluding the start and including the end
func sampleCurve(p0, p1, p2, p3 plan.Point, n int) []plan.Point {
	n = max(n, 1)
	out := make([]plan.Point, 0, n)
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		u := 1 - t
		out = append(out, plan.Point{
			X: u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X,
			Y: u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y,
		})
	}
	return out
}
