package plan

import (
	"fmt"
	"math"
)

// Origin names the corner a page record's coordinates are measured from
type Origin string

const (
	OriginBottomLeft Origin = "bottom-left"
	OriginTopLeft    Origin = "top-left"
)

// DefaultUnitsPerInch is the PDF user-space resolution
const DefaultUnitsPerInch = 72.0

// TextRun is one positioned string as emitted by the vector extractor.
// Runs are frequently single glyphs.
type TextRun struct {
	Text string  `json:"text" yaml:"text"`
	BBox BBox    `json:"bbox" yaml:"bbox"`
	Font string  `json:"font,omitempty" yaml:"font,omitempty"`
	Size float64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// RawPath is one drawing primitive as emitted by the vector extractor.
// Lines, rects and polylines use Points; curves carry four Bezier points;
// arcs use the center/radius/angle fields.
type RawPath struct {
	Kind        PathKind `json:"kind" yaml:"kind"`
	Points      []Point  `json:"points,omitempty" yaml:"points,omitempty"`
	Closed      bool     `json:"closed,omitempty" yaml:"closed,omitempty"`
	Center      *Point   `json:"center,omitempty" yaml:"center,omitempty"`
	Radius      float64  `json:"radius,omitempty" yaml:"radius,omitempty"`
	StartAngle  float64  `json:"start_angle,omitempty" yaml:"start_angle,omitempty"`
	EndAngle    float64  `json:"end_angle,omitempty" yaml:"end_angle,omitempty"`
	StrokeWidth float64  `json:"stroke_width,omitempty" yaml:"stroke_width,omitempty"`
}

// PageRecord is the per-page vector input of the extractor.
type PageRecord struct {
	PageNumber   int       `json:"page_number" yaml:"page_number"`
	Width        float64   `json:"width" yaml:"width"`
	Height       float64   `json:"height" yaml:"height"`
	UnitsPerInch float64   `json:"units_per_inch,omitempty" yaml:"units_per_inch,omitempty"`
	Origin       Origin    `json:"origin,omitempty" yaml:"origin,omitempty"`
	TextRuns     []TextRun `json:"text_runs" yaml:"text_runs"`
	Paths        []RawPath `json:"paths" yaml:"paths"`
}

// Validate checks that the record can be normalized at all.
func (r *PageRecord) Validate() error {
	if r.PageNumber <= 0 {
		return fmt.Errorf("invalid page number %d", r.PageNumber)
	}
	if !finite(r.Width) || !finite(r.Height) || r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("page %d: invalid media box %gx%g", r.PageNumber, r.Width, r.Height)
	}
	if r.UnitsPerInch < 0 || !finite(r.UnitsPerInch) {
		return fmt.Errorf("page %d: invalid units per inch %g", r.PageNumber, r.UnitsPerInch)
	}
	switch r.Origin {
	case "", OriginBottomLeft, OriginTopLeft:
	default:
		return fmt.Errorf("page %d: unknown origin %q", r.PageNumber, r.Origin)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
