package diagnostics

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// Diagnostic is a recorded, non-fatal extraction failure with enough context
// to locate it on the sheet.
type Diagnostic struct {
	Type    Type       `json:"type"`
	Message string     `json:"message"`
	Page    int        `json:"page,omitempty"`
	RawText string     `json:"raw_text,omitempty"`
	BBox    *plan.BBox `json:"bbox,omitempty"`
	Entity  string     `json:"entity,omitempty"`
}

// Type is the failure category of a diagnostic
type Type int

const (
	TypeUnknown Type = iota
	// TypeParseFailure is a malformed dimension or room token. The entity is skipped.
	TypeParseFailure
	// TypeGeometryFitFailure is an arc or polygon fit below tolerance. The entity
	// is kept at reduced confidence.
	TypeGeometryFitFailure
	// TypePageProcessingFailure is an unreadable page. The page is skipped.
	TypePageProcessingFailure
	// TypeInsufficientReferenceData is a reference set too small to judge against.
	TypeInsufficientReferenceData
	// TypeNameConflict is a room id read with different names on different pages.
	// The best scored name is kept and the cross-page bonus is withheld.
	TypeNameConflict
)

// Severity indicates how much a diagnostic degrades the output
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// Error implements the error interface
func (d *Diagnostic) Error() string {
	if d.Page > 0 {
		return fmt.Sprintf("[%s] page %d: %s", d.Type, d.Page, d.Message)
	}
	return fmt.Sprintf("[%s] %s", d.Type, d.Message)
}

// String returns the wire name of the type
func (t Type) String() string {
	switch t {
	case TypeParseFailure:
		return "ParseFailure"
	case TypeGeometryFitFailure:
		return "GeometryFitFailure"
	case TypePageProcessingFailure:
		return "PageProcessingFailure"
	case TypeInsufficientReferenceData:
		return "InsufficientReferenceData"
	case TypeNameConflict:
		return "NameConflict"
	default:
		return "Unknown"
	}
}

// MarshalJSON writes the type by name
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON reads a type written by MarshalJSON
func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*t = ParseType(name)
	return nil
}

// ParseType maps a wire name back to a Type
func ParseType(name string) Type {
	for _, t := range []Type{TypeParseFailure, TypeGeometryFitFailure, TypePageProcessingFailure, TypeInsufficientReferenceData, TypeNameConflict} {
		if t.String() == name {
			return t
		}
	}
	return TypeUnknown
}

// Severity returns the severity of a failure type
func (t Type) Severity() Severity {
	switch t {
	case TypeGeometryFitFailure:
		return SeverityInfo
	case TypeParseFailure, TypeInsufficientReferenceData, TypeNameConflict:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Outcome describes what happened to the affected entity or page
func (t Type) Outcome() string {
	switch t {
	case TypeParseFailure:
		return "entity skipped"
	case TypeGeometryFitFailure:
		return "entity kept at reduced confidence"
	case TypePageProcessingFailure:
		return "page skipped"
	case TypeInsufficientReferenceData:
		return "status inconclusive"
	case TypeNameConflict:
		return "best name kept without agreement bonus"
	default:
		return "unknown"
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	default:
		return "error"
	}
}

// New creates a diagnostic of the given type
func New(t Type, page int, message string) *Diagnostic {
	return &Diagnostic{Type: t, Page: page, Message: message}
}

// Newf creates a diagnostic with a formatted message
func Newf(t Type, page int, format string, args ...any) *Diagnostic {
	return New(t, page, fmt.Sprintf(format, args...))
}

// WithText attaches the raw text that failed
func (d *Diagnostic) WithText(raw string) *Diagnostic {
	d.RawText = raw
	return d
}

// WithBBox attaches the location of the failure
func (d *Diagnostic) WithBBox(box plan.BBox) *Diagnostic {
	d.BBox = &box
	return d
}

// WithEntity attaches the id of the affected entity
func (d *Diagnostic) WithEntity(id string) *Diagnostic {
	d.Entity = id
	return d
}

// Collection gathers the diagnostics of one page or one run.
// It is not safe for concurrent use; each page worker owns its own.
type Collection struct {
	items []*Diagnostic
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{items: make([]*Diagnostic, 0)}
}

// Add records a diagnostic. Nil values are ignored.
func (c *Collection) Add(d *Diagnostic) {
	if d == nil {
		return
	}
	c.items = append(c.items, d)
}

// Merge appends every diagnostic of other
func (c *Collection) Merge(other *Collection) {
	if other == nil {
		return
	}
	c.items = append(c.items, other.items...)
}

// Items returns the diagnostics ordered by page, keeping insertion order within a page.
func (c *Collection) Items() []Diagnostic {
	out := make([]Diagnostic, 0, len(c.items))
	for _, d := range c.items {
		out = append(out, *d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

// Len returns the number of diagnostics
func (c *Collection) Len() int {
	return len(c.items)
}

// CountByType returns how many diagnostics of each type were recorded
func (c *Collection) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, d := range c.items {
		counts[d.Type.String()]++
	}
	return counts
}

// Count returns the number of error and warning diagnostics
func (c *Collection) Count() (errors, warnings int) {
	for _, d := range c.items {
		switch d.Type.Severity() {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		}
	}
	return errors, warnings
}

// Summary returns a one-line text summary
func (c *Collection) Summary() string {
	if len(c.items) == 0 {
		return "No diagnostics"
	}
	errorCount, warningCount := c.Count()
	return fmt.Sprintf("%d diagnostic(s): %d error(s), %d warning(s)", len(c.items), errorCount, warningCount)
}
