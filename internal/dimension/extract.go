package dimension

import (
	"math"
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/confidence"
	"github.com/a3tai/mcp-plan-extractor/internal/diagnostics"
	"github.com/a3tai/mcp-plan-extractor/internal/normalize"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

const (
	completenessFull   = 1.0
	completenessFeet   = 0.85
	completenessInches = 0.8
	embeddedFactor     = 0.9
	implausibleFactor  = 0.9
	// lines further than this from the text direction count double
	parallelTolerance = 20.0
)

// Extractor finds the dimensions of a normalized page
type Extractor struct {
	settings plan.DimensionSettings
	weights  plan.ConfidenceSettings
}

// New creates an extractor
func New(settings plan.DimensionSettings, weights plan.ConfidenceSettings) *Extractor {
	return &Extractor{settings: settings, weights: weights}
}

// Extract parses every text block of the page and anchors each measurement
// to the closest dimension line. Malformed tokens become ParseFailure
// diagnostics; the rest of the page is unaffected.
func (e *Extractor) Extract(page *normalize.Page) ([]plan.Dimension, []*diagnostics.Diagnostic) {
	lines := page.PathsOf(plan.PathLine)
	var dims []plan.Dimension
	var diags []*diagnostics.Diagnostic

	for _, block := range page.Blocks {
		tokens, failures := Scan(block.Text)
		for _, f := range failures {
			diags = append(diags, diagnostics.New(diagnostics.TypeParseFailure, page.Number, f.Error()).
				WithText(f.Raw).
				WithBBox(block.BBox))
		}
		embedded := len(tokens) > 1 || (len(tokens) == 1 && tokens[0].Raw != strings.TrimSpace(block.Text))

		for _, tok := range tokens {
			d := tok.Dimension()
			d.BBox = block.BBox
			d.Page = page.Number
			d.SourcePages = []int{page.Number}

			height := block.FontSize
			if height <= 0 {
				height = block.BBox.Height()
			}
			anchor, fit := e.anchor(block.BBox, height, lines)
			d.Anchor = anchor
			d.Confidence = confidence.Score(e.weights, e.completeness(tok, embedded), fit)
			dims = append(dims, d)
		}
	}
	return dims, diags
}

func (e *Extractor) completeness(tok Token, embedded bool) float64 {
	var c float64
	switch tok.Form {
	case FormFull:
		c = completenessFull
	case FormFeet:
		c = completenessFeet
	default:
		c = completenessInches
	}
	if embedded {
		c *= embeddedFactor
	}
	total := tok.TotalInches()
	if total < e.settings.MinPlausibleInches || total > e.settings.MaxPlausibleInches {
		c *= implausibleFactor
	}
	return c
}

// anchor returns the closest line within the corridor around the text and
// its geometric fit, 1 at the text center falling to 0 at the corridor edge.
func (e *Extractor) anchor(box plan.BBox, height float64, lines []plan.DrawingPath) (*plan.Anchor, float64) {
	threshold := e.settings.CorridorFactor * height
	if threshold <= 0 {
		return nil, 0
	}
	center := box.Center()

	best, bestDist := -1, math.Inf(1)
	for i, line := range lines {
		if len(line.Points) < 2 {
			continue
		}
		a, b := line.Points[0], line.Points[len(line.Points)-1]
		d := plan.SegmentDistance(center, a, b)
		if !horizontal(a, b) {
			d *= 2
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > threshold {
		return nil, 0
	}
	pts := lines[best].Points
	return &plan.Anchor{Start: pts[0], End: pts[len(pts)-1]}, plan.Clamp01(1 - bestDist/threshold)
}

func horizontal(a, b plan.Point) bool {
	angle := math.Mod(plan.AngleOf(a, b), 180)
	return angle <= parallelTolerance || angle >= 180-parallelTolerance
}

// RoomLabel reads a "W x D" label such as 25'-0" x 30'-6". Width and depth
// are in inches and the area is in square feet.
func RoomLabel(text string) (*plan.RoomDimensions, bool) {
	tokens, failures := Scan(text)
	if len(failures) > 0 {
		return nil, false
	}
	rs := []rune(text)
	for i := 0; i+1 < len(tokens); i++ {
		between := strings.TrimSpace(string(rs[tokens[i].End:tokens[i+1].Start]))
		switch between {
		case "x", "X", "×":
		default:
			continue
		}
		w, d := tokens[i].TotalInches(), tokens[i+1].TotalInches()
		if w <= 0 || d <= 0 {
			return nil, false
		}
		return &plan.RoomDimensions{
			Width:   w,
			Depth:   d,
			Area:    w * d / 144,
			RawText: string(rs[tokens[i].Start:tokens[i+1].End]),
		}, true
	}
	return nil, false
}
