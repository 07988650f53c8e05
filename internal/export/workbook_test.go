package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-plan-extractor/internal/confidence"
	"github.com/a3tai/mcp-plan-extractor/internal/diagnostics"
	"github.com/a3tai/mcp-plan-extractor/internal/door"
	"github.com/a3tai/mcp-plan-extractor/internal/pipeline"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func sampleDocument() *pipeline.Document {
	swing := 90.0
	return &pipeline.Document{
		RunID:  "run-1",
		Source: "A-101.pdf",
		Rooms: []plan.Room{{
			ID:          "B-2-04",
			Number:      "204",
			Name:        "CLASSE",
			RawName:     "CLASSE",
			BBoxMethod:  plan.BBoxEnclosingPath,
			Dimensions:  &plan.RoomDimensions{Width: 120, Depth: 144, Area: 120},
			Confidence:  0.85,
			Page:        1,
			SourcePages: []int{1, 3},
		}},
		Doors: []plan.Door{{
			ID:         "D-1",
			Type:       plan.DoorSwing,
			SwingAngle: &swing,
			Radius:     36,
			Leaves:     1,
			Confidence: 0.7,
			Page:       1,
		}},
		Dimensions: []plan.Dimension{{
			RawText:     "10'-6 1/2\"",
			Feet:        10,
			Inches:      6,
			Fraction:    &plan.Fraction{Numerator: 1, Denominator: 2},
			TotalInches: 126.5,
			Confidence:  0.9,
			Page:        1,
		}},
		PageClassifications: []plan.PageClassification{{
			Page:   1,
			Type:   plan.PagePlan,
			Scores: map[plan.PageType]float64{plan.PagePlan: 0.75},
		}},
		Coverage: pipeline.Coverage{
			PagesTotal:     1,
			PagesProcessed: 1,
			PerPage: []pipeline.PageCoverage{{
				Page: 1, Type: plan.PagePlan, DoorCoverage: door.CoverageDetected,
				RoomCount: 1, DimensionCount: 1, DoorCount: 1,
			}},
		},
		Diagnostics: []diagnostics.Diagnostic{
			*diagnostics.New(diagnostics.TypeParseFailure, 1, "unparseable dimension").WithText("10'-x"),
		},
		Alerts: []confidence.Alert{
			{Code: "MISSING_DIMENSIONS", Item: "B-2-04", Message: "room has no dimensions", Level: confidence.LevelError},
			{Code: "EXTRACTION_SUMMARY", Message: "1 room", Level: confidence.LevelInfo},
		},
	}
}

func rows(t *testing.T, f *excelize.File, sheet string) [][]string {
	t.Helper()
	out, err := f.GetRows(sheet)
	require.NoError(t, err)
	return out
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleDocument()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRooms, SheetDoors, SheetDimensions, SheetPages, SheetDiagnostics, SheetAlerts}, f.GetSheetList())

	roomRows := rows(t, f, SheetRooms)
	require.Len(t, roomRows, 2)
	assert.Equal(t, "ID", roomRows[0][0])
	assert.Equal(t, "Source pages", roomRows[0][13])
	assert.Equal(t, "B-2-04", roomRows[1][0])
	assert.Equal(t, "CLASSE", roomRows[1][4])
	assert.Equal(t, "120", roomRows[1][7])
	assert.Equal(t, "144", roomRows[1][8])
	assert.Equal(t, "enclosing_path", roomRows[1][10])
	assert.Equal(t, "1, 3", roomRows[1][13])

	dimRows := rows(t, f, SheetDimensions)
	require.Len(t, dimRows, 2)
	assert.Equal(t, "1/2", dimRows[1][3])
	assert.Equal(t, "126.5", dimRows[1][4])

	doorRows := rows(t, f, SheetDoors)
	require.Len(t, doorRows, 2)
	assert.Equal(t, "swing", doorRows[1][2])
	assert.Equal(t, "90", doorRows[1][5])

	pageRows := rows(t, f, SheetPages)
	require.Len(t, pageRows, 2)
	assert.Equal(t, []string{"1", "PLAN", "0.75", "detected", "1", "1", "1"}, pageRows[1])

	diagRows := rows(t, f, SheetDiagnostics)
	require.Len(t, diagRows, 2)
	assert.Equal(t, "ParseFailure", diagRows[1][0])
	assert.Equal(t, "warning", diagRows[1][1])
	assert.Equal(t, "entity skipped", diagRows[1][6])

	alertRows := rows(t, f, SheetAlerts)
	require.Len(t, alertRows, 3)
	assert.Equal(t, "ERROR", alertRows[1][0])
	assert.Equal(t, "INFO", alertRows[2][0])
}

func TestWriteEmptyDocument(t *testing.T) {
	doc := &pipeline.Document{RunID: "empty"}
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteFile(path, doc))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	for _, name := range f.GetSheetList() {
		got := rows(t, f, name)
		require.Len(t, got, 1, name)
		assert.NotEmpty(t, got[0], name)
	}
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "", joinPages(nil))
	assert.Equal(t, "2", joinPages([]int{2}))
	assert.Equal(t, "1, 3", joinPages([]int{1, 3}))
}
