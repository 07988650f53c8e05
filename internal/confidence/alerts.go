package confidence

import (
	"fmt"
	"math"
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// Level is the severity of an alert
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarning Level = "WARNING"
	LevelInfo    Level = "INFO"
)

// Alert codes
const (
	AlertVeryLowConfidence = "VERY_LOW_CONFIDENCE"
	AlertLowConfidence     = "LOW_CONFIDENCE"
	AlertSingleSource      = "SINGLE_SOURCE"
	AlertGenericName       = "GENERIC_NAME"
	AlertContradictoryName = "CONTRADICTORY_NAME"
	AlertExtractionSummary = "EXTRACTION_SUMMARY"
)

// GlobalItem is the item of project-wide alerts
const GlobalItem = "GLOBAL"

// Alert is one quality finding over the merged set
type Alert struct {
	Code    string         `json:"type"`
	Item    string         `json:"item"`
	Message string         `json:"message"`
	Level   Level          `json:"severity"`
	Details map[string]any `json:"details,omitempty"`
}

// Summary holds the figures of the EXTRACTION_SUMMARY alert. LowConfidenceRooms
// counts every room under the low threshold, very low ones included.
type Summary struct {
	Rooms                 int     `json:"total_rooms"`
	Doors                 int     `json:"total_doors"`
	Dimensions            int     `json:"total_dimensions"`
	LowConfidenceRooms    int     `json:"rooms_low_confidence"`
	SingleSourceRooms     int     `json:"rooms_single_source"`
	AverageRoomScore      float64 `json:"average_room_confidence"`
	AverageDoorScore      float64 `json:"average_door_confidence"`
	AverageDimensionScore float64 `json:"average_dimension_confidence"`
}

// Alerts reviews merged rooms for low confidence, single sources, generic
// names and name conflicts, and closes with a summary record.
func Alerts(m Merged, w plan.ConfidenceSettings, v *vocab.Vocabulary) []Alert {
	if v == nil {
		v = vocab.Default()
	}
	var errs, warnings []Alert
	sum := Summary{Rooms: len(m.Rooms), Doors: len(m.Doors), Dimensions: len(m.Dimensions)}

	roomTotal := 0.0
	for _, r := range m.Rooms {
		roomTotal += r.Confidence
		switch {
		case r.Confidence < w.VeryLowConfidence:
			sum.LowConfidenceRooms++
			errs = append(errs, Alert{
				Code:    AlertVeryLowConfidence,
				Item:    r.ID,
				Message: fmt.Sprintf("very low confidence (%.2f), manual check required", r.Confidence),
				Level:   LevelError,
				Details: map[string]any{"confidence": r.Confidence, "threshold": w.VeryLowConfidence},
			})
		case r.Confidence < w.LowConfidence:
			sum.LowConfidenceRooms++
			warnings = append(warnings, Alert{
				Code:    AlertLowConfidence,
				Item:    r.ID,
				Message: fmt.Sprintf("uncertain confidence (%.2f), data to be validated", r.Confidence),
				Level:   LevelWarning,
				Details: map[string]any{"confidence": r.Confidence, "threshold": w.LowConfidence},
			})
		}

		if len(r.SourcePages) == 1 {
			sum.SingleSourceRooms++
			warnings = append(warnings, Alert{
				Code:    AlertSingleSource,
				Item:    r.ID,
				Message: fmt.Sprintf("found on a single page (%d)", r.SourcePages[0]),
				Level:   LevelWarning,
				Details: map[string]any{"page": r.SourcePages[0]},
			})
		}

		if v.IsGeneric(r.Name) {
			warnings = append(warnings, Alert{
				Code:    AlertGenericName,
				Item:    r.ID,
				Message: fmt.Sprintf("generic name %q, room function not identified", r.Name),
				Level:   LevelWarning,
				Details: map[string]any{"name": r.Name},
			})
		}
	}

	for _, c := range m.Conflicts {
		errs = append(errs, Alert{
			Code:    AlertContradictoryName,
			Item:    c.RoomID,
			Message: "contradictory names for one room: " + strings.Join(c.Names, ", "),
			Level:   LevelError,
			Details: map[string]any{"names": c.Names, "pages": c.Pages},
		})
	}

	sum.AverageRoomScore = average(roomTotal, len(m.Rooms))
	doorTotal := 0.0
	for _, d := range m.Doors {
		doorTotal += d.Confidence
	}
	sum.AverageDoorScore = average(doorTotal, len(m.Doors))
	dimTotal := 0.0
	for _, d := range m.Dimensions {
		dimTotal += d.Confidence
	}
	sum.AverageDimensionScore = average(dimTotal, len(m.Dimensions))

	info := Alert{
		Code:  AlertExtractionSummary,
		Item:  GlobalItem,
		Level: LevelInfo,
		Message: fmt.Sprintf("extracted %d rooms, %d doors, %d dimensions, average room confidence %.2f",
			sum.Rooms, sum.Doors, sum.Dimensions, sum.AverageRoomScore),
		Details: map[string]any{"summary": sum},
	}

	out := make([]Alert, 0, len(errs)+len(warnings)+1)
	out = append(out, errs...)
	out = append(out, warnings...)
	return append(out, info)
}

func average(total float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(total/float64(n)*1000) / 1000
}
