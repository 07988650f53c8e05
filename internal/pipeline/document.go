package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/a3tai/mcp-plan-extractor/internal/confidence"
	"github.com/a3tai/mcp-plan-extractor/internal/diagnostics"
	"github.com/a3tai/mcp-plan-extractor/internal/door"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// Document is the output of one extraction run
type Document struct {
	RunID               string                    `json:"run_id"`
	GeneratedAt         time.Time                 `json:"generated_at"`
	Source              string                    `json:"source"`
	Rooms               []plan.Room               `json:"rooms"`
	Dimensions          []plan.Dimension          `json:"dimensions"`
	Doors               []plan.Door               `json:"doors"`
	PageClassifications []plan.PageClassification `json:"page_classifications"`
	Coverage            Coverage                  `json:"coverage"`
	Diagnostics         []diagnostics.Diagnostic  `json:"diagnostics"`
	Alerts              []confidence.Alert        `json:"alerts"`
}

// Coverage tells which pages were processed and what the extractor could not see
type Coverage struct {
	PagesTotal     int            `json:"pages_total"`
	PagesProcessed int            `json:"pages_processed"`
	PagesFailed    int            `json:"pages_failed"`
	PerPage        []PageCoverage `json:"per_page"`
	Limitations    []string       `json:"limitations"`
}

// PageCoverage is the entity count of one processed page before the merge
type PageCoverage struct {
	Page           int           `json:"page"`
	Type           plan.PageType `json:"type"`
	DoorCoverage   door.Coverage `json:"door_coverage"`
	RoomCount      int           `json:"room_count"`
	DimensionCount int           `json:"dimension_count"`
	DoorCount      int           `json:"door_count"`
}

// Classification returns the classification of page n
func (d *Document) Classification(n int) (plan.PageClassification, bool) {
	for _, c := range d.PageClassifications {
		if c.Page == n {
			return c, true
		}
	}
	return plan.PageClassification{}, false
}

// WriteJSON writes the document as indented JSON
func (d *Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// WriteFile writes the document to path
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := d.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output document: %w", err)
	}
	return f.Close()
}
