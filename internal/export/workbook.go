// Package export writes an extraction document as an XLSX workbook with one
// sheet per entity kind.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-plan-extractor/internal/pipeline"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// Sheet names, in workbook order
const (
	SheetRooms       = "Rooms"
	SheetDoors       = "Doors"
	SheetDimensions  = "Dimensions"
	SheetPages       = "Pages"
	SheetDiagnostics = "Diagnostics"
	SheetAlerts      = "Alerts"
)

type sheet struct {
	name    string
	headers []string
	rows    [][]any
}

// Workbook builds the workbook for doc. The caller owns the returned file and must close it.
func Workbook(doc *pipeline.Document) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, s := range sheets(doc) {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, header); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write renders doc as XLSX to w
func Write(w io.Writer, doc *pipeline.Document) error {
	f, err := Workbook(doc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile renders doc as XLSX to path
func WriteFile(path string, doc *pipeline.Document) error {
	f, err := Workbook(doc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	headers := make([]any, len(s.headers))
	for i, h := range s.headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", s.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(s.headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", s.name, err)
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", s.name, i+1, err)
		}
	}

	if err := f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze %s header: %w", s.name, err)
	}
	if len(s.rows) > 0 {
		corner, err := excelize.CoordinatesToCellName(len(s.headers), len(s.rows)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(s.name, "A1:"+corner, nil); err != nil {
			return fmt.Errorf("failed to add %s filter: %w", s.name, err)
		}
	}
	return nil
}

func sheets(doc *pipeline.Document) []sheet {
	return []sheet{
		roomSheet(doc.Rooms),
		doorSheet(doc.Doors),
		dimensionSheet(doc.Dimensions),
		pageSheet(doc),
		diagnosticSheet(doc),
		alertSheet(doc),
	}
}

func roomSheet(rooms []plan.Room) sheet {
	s := sheet{
		name: SheetRooms,
		headers: []string{"ID", "Block", "Floor", "Number", "Name", "Raw name", "Type", "Width (in)", "Depth (in)",
			"Area (sq ft)", "BBox method", "Confidence", "Page", "Source pages"},
	}
	for _, r := range rooms {
		var width, depth, area any
		if r.Dimensions != nil {
			width, depth, area = round3(r.Dimensions.Width), round3(r.Dimensions.Depth), round3(r.Dimensions.Area)
		}
		s.rows = append(s.rows, []any{
			r.ID, r.Block, r.Floor, r.Number, r.Name, r.RawName, r.Type, width, depth, area,
			string(r.BBoxMethod), round3(r.Confidence), r.Page, joinPages(r.SourcePages),
		})
	}
	return s
}

func doorSheet(doors []plan.Door) sheet {
	s := sheet{
		name: SheetDoors,
		headers: []string{"ID", "Number", "Type", "Leaves", "Radius", "Swing angle", "Direction", "Opens toward",
			"Room", "Confidence", "Page"},
	}
	for _, d := range doors {
		var swing any
		if d.SwingAngle != nil {
			swing = round3(*d.SwingAngle)
		}
		s.rows = append(s.rows, []any{
			d.ID, d.Number, string(d.Type), d.Leaves, round3(d.Radius), swing, d.Direction, d.OpensToward,
			d.RoomID, round3(d.Confidence), d.Page,
		})
	}
	return s
}

func dimensionSheet(dims []plan.Dimension) sheet {
	s := sheet{
		name:    SheetDimensions,
		headers: []string{"Text", "Feet", "Inches", "Fraction", "Total inches", "Approximate", "Anchored", "Confidence", "Page", "Source pages"},
	}
	for _, d := range dims {
		fraction := ""
		if d.Fraction != nil {
			fraction = fmt.Sprintf("%d/%d", d.Fraction.Numerator, d.Fraction.Denominator)
		}
		s.rows = append(s.rows, []any{
			d.RawText, d.Feet, d.Inches, fraction, round3(d.TotalInches), d.IsApproximate, d.Anchor != nil,
			round3(d.Confidence), d.Page, joinPages(d.SourcePages),
		})
	}
	return s
}

func pageSheet(doc *pipeline.Document) sheet {
	s := sheet{
		name:    SheetPages,
		headers: []string{"Page", "Type", "Score", "Door coverage", "Rooms", "Dimensions", "Doors"},
	}
	scores := make(map[int]float64, len(doc.PageClassifications))
	for _, c := range doc.PageClassifications {
		scores[c.Page] = c.Scores[c.Type]
	}
	for _, p := range doc.Coverage.PerPage {
		s.rows = append(s.rows, []any{
			p.Page, string(p.Type), round3(scores[p.Page]), string(p.DoorCoverage), p.RoomCount, p.DimensionCount, p.DoorCount,
		})
	}
	return s
}

func diagnosticSheet(doc *pipeline.Document) sheet {
	s := sheet{
		name:    SheetDiagnostics,
		headers: []string{"Type", "Severity", "Page", "Entity", "Raw text", "Message", "Outcome"},
	}
	for _, d := range doc.Diagnostics {
		s.rows = append(s.rows, []any{
			d.Type.String(), d.Type.Severity().String(), d.Page, d.Entity, d.RawText, d.Message, d.Type.Outcome(),
		})
	}
	return s
}

func alertSheet(doc *pipeline.Document) sheet {
	s := sheet{
		name:    SheetAlerts,
		headers: []string{"Severity", "Type", "Item", "Message"},
	}
	for _, a := range doc.Alerts {
		s.rows = append(s.rows, []any{string(a.Level), a.Code, a.Item, a.Message})
	}
	return s
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ", ")
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
