package plan

// PathKind is the geometric class of a normalized drawing path
type PathKind string

const (
	PathLine     PathKind = "line"
	PathRect     PathKind = "rect"
	PathArc      PathKind = "arc"
	PathPolyline PathKind = "polyline"
	// PathCurve only appears in raw records; the normalizer turns it into an arc or polyline.
	PathCurve PathKind = "curve"
)

// TextBlock is a word or label rebuilt from adjacent glyph runs.
type TextBlock struct {
	Text     string  `json:"text"`
	BBox     BBox    `json:"bbox"`
	FontSize float64 `json:"font_size"`
	Font     string  `json:"font,omitempty"`
	Runs     int     `json:"runs"`
}

// ArcParams describes a circular arc. The sweep runs clockwise on the page
// from StartAngle to EndAngle and covers Span degrees.
type ArcParams struct {
	Center      Point   `json:"center"`
	Radius      float64 `json:"radius"`
	StartAngle  float64 `json:"start_angle"`
	EndAngle    float64 `json:"end_angle"`
	Span        float64 `json:"span"`
	FitResidual float64 `json:"fit_residual"`
}

// StartPoint returns the point where the sweep begins
func (a ArcParams) StartPoint() Point { return a.pointAt(a.StartAngle) }

// EndPoint returns the point where the sweep ends
func (a ArcParams) EndPoint() Point { return a.pointAt(a.EndAngle) }

// MidAngle returns the angle halfway through the sweep
func (a ArcParams) MidAngle() float64 { return NormalizeAngle(a.StartAngle + a.Span/2) }

func (a ArcParams) pointAt(deg float64) Point {
	return Polar(a.Center, a.Radius, deg)
}

// DrawingPath is a normalized vector primitive.
type DrawingPath struct {
	Kind        PathKind   `json:"kind"`
	BBox        BBox       `json:"bbox"`
	Points      []Point    `json:"points,omitempty"`
	Closed      bool       `json:"closed,omitempty"`
	Arc         *ArcParams `json:"arc,omitempty"`
	StrokeWidth float64    `json:"stroke_width"`
}

// Length returns the total length of the path's point chain
func (d DrawingPath) Length() float64 {
	total := 0.0
	for i := 1; i < len(d.Points); i++ {
		total += d.Points[i-1].Distance(d.Points[i])
	}
	return total
}

// Fraction is the optional numerator/denominator part of a dimension
type Fraction struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// Anchor is the dimension line a dimension label was associated with
type Anchor struct {
	Start Point `json:"start_point"`
	End   Point `json:"end_point"`
}

// Dimension is a parsed feet-inch-fraction measurement.
type Dimension struct {
	RawText       string    `json:"raw_text"`
	Feet          int       `json:"feet"`
	Inches        int       `json:"inches"`
	Fraction      *Fraction `json:"fraction,omitempty"`
	IsApproximate bool      `json:"is_approximate"`
	TotalInches   float64   `json:"total_inches"`
	Anchor        *Anchor   `json:"anchor,omitempty"`
	BBox          BBox      `json:"bbox"`
	Confidence    float64   `json:"confidence"`
	Page          int       `json:"page"`
	SourcePages   []int     `json:"source_pages,omitempty"`
}

// RoomDimensions holds the width/depth label printed in a room, in inches.
// Area is in square feet.
type RoomDimensions struct {
	Width   float64 `json:"width"`
	Depth   float64 `json:"depth"`
	Area    float64 `json:"area"`
	RawText string  `json:"raw_text,omitempty"`
}

// BBoxMethod records which bounding-box strategy produced a room's bbox
type BBoxMethod string

const (
	BBoxEnclosingPath  BBoxMethod = "enclosing_path"
	BBoxWallRays       BBoxMethod = "wall_rays"
	BBoxMarginFallback BBoxMethod = "margin_fallback"
)

// Room is a numbered space found on one or more sheets.
type Room struct {
	ID              string          `json:"id"`
	Block           string          `json:"block,omitempty"`
	Floor           string          `json:"floor,omitempty"`
	Sequence        string          `json:"sequence,omitempty"`
	Suffix          string          `json:"suffix,omitempty"`
	Number          string          `json:"number"`
	Name            string          `json:"name,omitempty"`
	RawName         string          `json:"raw_name,omitempty"`
	NameSubstituted bool            `json:"name_substituted,omitempty"`
	Type            string          `json:"type,omitempty"`
	BBox            BBox            `json:"bbox"`
	LabelBBox       BBox            `json:"label_bbox"`
	BBoxMethod      BBoxMethod      `json:"bbox_method"`
	Dimensions      *RoomDimensions `json:"dimensions,omitempty"`
	Confidence      float64         `json:"confidence"`
	Page            int             `json:"page"`
	SourcePages     []int           `json:"source_pages"`
}

// DoorType is the kind of door symbol
type DoorType string

const (
	DoorSwing   DoorType = "swing"
	DoorSliding DoorType = "sliding"
	DoorUnknown DoorType = "unknown"
)

// Door is a door leaf recovered from an arc symbol.
// RoomID is a lookup key only.
type Door struct {
	ID          string   `json:"id"`
	Number      string   `json:"number,omitempty"`
	Type        DoorType `json:"type"`
	SwingAngle  *float64 `json:"swing_angle,omitempty"`
	Radius      float64  `json:"radius"`
	Hinge       Point    `json:"hinge"`
	Direction   string   `json:"direction,omitempty"`
	OpensToward string   `json:"opens_toward,omitempty"`
	WallAngle   *float64 `json:"wall_angle,omitempty"`
	Leaves      int      `json:"leaves"`
	BBox        BBox     `json:"bbox"`
	RoomID      string   `json:"room_id,omitempty"`
	Confidence  float64  `json:"confidence"`
	Page        int      `json:"page"`
}

// PageType is one of the five sheet categories
type PageType string

const (
	PageLegend    PageType = "LEGEND"
	PagePlan      PageType = "PLAN"
	PageDetail    PageType = "DETAIL"
	PageElevation PageType = "ELEVATION"
	PageOther     PageType = "OTHER"
)

// PageTypes lists the sheet categories in tie-break priority order.
func PageTypes() []PageType {
	return []PageType{PageLegend, PagePlan, PageDetail, PageElevation, PageOther}
}

// PageSignals are the raw measurements behind a classification
type PageSignals struct {
	KeywordHits      map[PageType]map[string]int `json:"keyword_hits"`
	TextBlocks       int                         `json:"text_blocks"`
	Paths            int                         `json:"paths"`
	RoomMatches      int                         `json:"room_matches"`
	Dimensions       int                         `json:"dimensions"`
	DoorArcs         int                         `json:"door_arcs"`
	RoomDensity      float64                     `json:"room_density"`
	DimensionDensity float64                     `json:"dimension_density"`
	DoorDensity      float64                     `json:"door_density"`
}

// PageClassification is the scored sheet type of one page.
type PageClassification struct {
	Page    int                  `json:"page"`
	Type    PageType             `json:"type"`
	Scores  map[PageType]float64 `json:"scores"`
	Signals PageSignals          `json:"signals"`
}

// MatchClass grades one ground-truth comparison
type MatchClass string

const (
	MatchExact    MatchClass = "EXACT"
	MatchNameOnly MatchClass = "NAME_ONLY"
	MatchIDOnly   MatchClass = "ID_ONLY"
	MatchNone     MatchClass = "NONE"
)

// ValidationRecord is the outcome for one reference entity
type ValidationRecord struct {
	EntityID            string     `json:"entity_id,omitempty"`
	GroundTruthEntityID string     `json:"ground_truth_entity_id,omitempty"`
	MatchClass          MatchClass `json:"match_class"`
	Note                string     `json:"note,omitempty"`
}

// ValidationStatus tells whether a rate could be computed
type ValidationStatus string

const (
	StatusComplete     ValidationStatus = "COMPLETE"
	StatusInconclusive ValidationStatus = "INCONCLUSIVE"
)

// CrossValidationRecord lists where one room id was found in the corpus
type CrossValidationRecord struct {
	RoomID    string   `json:"room_id"`
	Matched   bool     `json:"matched"`
	MatchType string   `json:"match_type,omitempty"`
	Sections  []string `json:"sections,omitempty"`
	NameHit   bool     `json:"name_hit,omitempty"`
}

// CrossValidationResult compares extracted room ids with a devis corpus.
// MatchRate is nil when Status is INCONCLUSIVE.
type CrossValidationResult struct {
	MatchRate           *float64                `json:"match_rate,omitempty"`
	MatchedCount        int                     `json:"matched_count"`
	TotalCount          int                     `json:"total_count"`
	NameOnlyCount       int                     `json:"name_only_count"`
	ReferenceCorpusSize int                     `json:"reference_corpus_size"`
	MinCorpusSize       int                     `json:"min_corpus_size"`
	Status              ValidationStatus        `json:"status"`
	Note                string                  `json:"note,omitempty"`
	Records             []CrossValidationRecord `json:"records,omitempty"`
}
