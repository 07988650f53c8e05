// Package door recovers door leaves from the arc symbols of a plan page.
package door

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/confidence"
	"github.com/a3tai/mcp-plan-extractor/internal/normalize"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/rules"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// Coverage tells whether the arc method could see doors on a page
type Coverage string

const (
	// CoverageDetected means at least one door arc was accepted.
	CoverageDetected Coverage = "detected"
	// CoverageNoneFound means arcs were present but none looked like a door.
	CoverageNoneFound Coverage = "none_found"
	// CoverageNotDetectable means a plan page has no arc primitives at all,
	// so doors drawn with other symbols cannot be seen.
	CoverageNotDetectable Coverage = "not_detectable"
	// CoverageNotApplicable means the page has no arcs and shows no rooms.
	CoverageNotApplicable Coverage = "not_applicable"
)

// Resolve upgrades not_applicable to not_detectable once the page is known to be a plan
func (c Coverage) Resolve(pageType plan.PageType) Coverage {
	if c == CoverageNotApplicable && pageType == plan.PagePlan {
		return CoverageNotDetectable
	}
	return c
}

const (
	// a fit residual of 0.1 leaves no arc fit at all
	residualWeight  = 10.0
	unlabeledFactor = 0.9
	noWallFit       = 0.5
)

// Result is the door outcome of one page
type Result struct {
	Doors    []plan.Door
	Coverage Coverage
	// Arcs counts arc primitives and Accepted the arcs taken as door leaves.
	Arcs     int
	Accepted int
}

// Detector finds doors. It is safe for concurrent use.
type Detector struct {
	settings plan.DoorSettings
	weights  plan.ConfidenceSettings
	rules    *rules.Rules
}

// New creates a detector. A nil rule table means the built-in rules.
func New(settings plan.DoorSettings, weights plan.ConfidenceSettings, r *rules.Rules) *Detector {
	if r == nil {
		r = rules.Defaults()
	}
	return &Detector{settings: settings, weights: weights, rules: r}
}

// candidate is a door before labelling and scoring
type candidate struct {
	door  plan.Door
	arc   plan.ArcParams
	chord plan.Point
	fit   float64
}

// Detect finds the door leaves of a page. rooms are the page's room
// candidates, used only to look up Door.RoomID.
func (d *Detector) Detect(page *normalize.Page, rooms []plan.Room) Result {
	arcs := page.PathsOf(plan.PathArc)
	lines := page.PathsOf(plan.PathLine)
	res := Result{Arcs: len(arcs)}

	var leaves []candidate
	for _, path := range arcs {
		if path.Arc == nil || !d.accept(*path.Arc) {
			continue
		}
		leaves = append(leaves, d.describe(*path.Arc, path.BBox, lines))
	}
	res.Accepted = len(leaves)

	used := make(map[int]bool)
	for i, c := range d.pairDoubleDoors(leaves) {
		door := c.door
		door.Page = page.Number
		door.RoomID = roomFor(c.chord, rooms, d.settings.BorderTolerance)

		completeness := 1 - math.Abs(*door.SwingAngle-90)/90
		if number, idx, ok := d.nearestLabel(door.Hinge, page.Blocks, used); ok {
			used[idx] = true
			door.Number = number
			door.ID = number
		} else {
			completeness *= unlabeledFactor
			door.ID = fmt.Sprintf("D%d-%d", page.Number, i+1)
		}
		door.Confidence = confidence.Score(d.weights, completeness, c.fit)
		res.Doors = append(res.Doors, door)
	}

	switch {
	case len(res.Doors) > 0:
		res.Coverage = CoverageDetected
	case len(arcs) > 0:
		res.Coverage = CoverageNoneFound
	case len(rooms) > 0:
		res.Coverage = CoverageNotDetectable
	default:
		res.Coverage = CoverageNotApplicable
	}
	return res
}

func (d *Detector) accept(arc plan.ArcParams) bool {
	return arc.Span >= d.settings.MinSwing && arc.Span <= d.settings.MaxSwing &&
		arc.Radius >= d.settings.MinRadius && arc.Radius <= d.settings.MaxRadius
}

func (d *Detector) describe(arc plan.ArcParams, box plan.BBox, lines []plan.DrawingPath) candidate {
	swing := arc.Span
	c := candidate{
		arc:   arc,
		chord: arc.StartPoint().Midpoint(arc.EndPoint()),
		door: plan.Door{
			Type:       plan.DoorSwing,
			SwingAngle: &swing,
			Radius:     arc.Radius,
			Hinge:      arc.Center,
			Leaves:     1,
			BBox:       box.Union(plan.BBox{X0: arc.Center.X, Y0: arc.Center.Y, X1: arc.Center.X, Y1: arc.Center.Y}),
		},
	}
	arcFit := plan.Clamp01(1 - arc.FitResidual*residualWeight)
	wallFit := noWallFit

	if wallAngle, ok := d.wallAngle(arc, lines); ok {
		c.door.WallAngle = &wallAngle
		wallFit = 1

		// the leaf closes along the wall; the other end is the open position
		open := arc.EndAngle
		c.door.Direction = "cw"
		if axisGap(arc.EndAngle, wallAngle) < axisGap(arc.StartAngle, wallAngle) {
			open = arc.StartAngle
			c.door.Direction = "ccw"
		}
		c.door.OpensToward = compass(open)
	}
	c.fit = (arcFit + wallFit) / 2
	return c
}

// wallAngle returns the direction, on [0,180), of the wall line nearest the hinge.
// The leaf line drawn from the hinge to an arc end is not a wall, and neither is
// a line further than WallAngleTolerance from both leaf end directions.
func (d *Detector) wallAngle(arc plan.ArcParams, lines []plan.DrawingPath) (float64, bool) {
	limit := d.settings.WallSearchFactor * arc.Radius
	ends := []plan.Point{arc.StartPoint(), arc.EndPoint()}
	near := 0.1 * arc.Radius

	best, found := math.Inf(1), false
	var angle float64
	for _, l := range lines {
		if len(l.Points) < 2 {
			continue
		}
		a, b := l.Points[0], l.Points[len(l.Points)-1]
		if isLeafLine(a, b, arc.Center, ends, near) {
			continue
		}
		dist := plan.SegmentDistance(arc.Center, a, b)
		if dist > limit || dist >= best {
			continue
		}
		lineAngle := math.Mod(plan.AngleOf(a, b), 180)
		if tol := d.settings.WallAngleTolerance; tol > 0 && math.Min(axisGap(arc.StartAngle, lineAngle), axisGap(arc.EndAngle, lineAngle)) > tol {
			continue
		}
		best, found = dist, true
		angle = lineAngle
	}
	return angle, found
}

func isLeafLine(a, b, hinge plan.Point, ends []plan.Point, near float64) bool {
	for _, e := range ends {
		if (a.Distance(hinge) <= near && b.Distance(e) <= near) || (b.Distance(hinge) <= near && a.Distance(e) <= near) {
			return true
		}
	}
	return false
}

// axisGap is the angle between a direction and a wall axis, ignoring sense
func axisGap(deg, axis float64) float64 {
	diff := math.Mod(math.Abs(plan.NormalizeAngle(deg)-plan.NormalizeAngle(axis)), 180)
	return math.Min(diff, 180-diff)
}

// compass names the side a direction points to. y grows downward, so 90 is south.
func compass(deg float64) string {
	switch int(math.Floor(plan.NormalizeAngle(deg+45)/90)) % 4 {
	case 0:
		return "east"
	case 1:
		return "south"
	case 2:
		return "west"
	default:
		return "north"
	}
}

// pairDoubleDoors merges two leaves of similar width whose hinges sit one
// opening apart into a single door with two leaves.
func (d *Detector) pairDoubleDoors(leaves []candidate) []candidate {
	paired := make([]bool, len(leaves))
	tol := d.settings.DoubleDoorTolerance
	var out []candidate

	for i := range leaves {
		if paired[i] {
			continue
		}
		c := leaves[i]
		for j := i + 1; j < len(leaves); j++ {
			if paired[j] {
				continue
			}
			r1, r2 := leaves[i].arc.Radius, leaves[j].arc.Radius
			if math.Abs(r1-r2) > tol*math.Max(r1, r2) {
				continue
			}
			gap := leaves[i].arc.Center.Distance(leaves[j].arc.Center)
			if math.Abs(gap-(r1+r2)) > tol*(r1+r2) {
				continue
			}
			paired[j] = true
			c.door.Leaves = 2
			c.door.BBox = c.door.BBox.Union(leaves[j].door.BBox)
			c.chord = c.chord.Midpoint(leaves[j].chord)
			c.fit = math.Max(c.fit, leaves[j].fit)
			break
		}
		out = append(out, c)
	}
	return out
}

// roomFor returns the id of the room whose bbox holds or borders the chord
// midpoint. Among several, the nearest and then the smallest wins.
func roomFor(chord plan.Point, rooms []plan.Room, tolerance float64) string {
	type match struct {
		id   string
		dist float64
		area float64
	}
	var matches []match
	for _, r := range rooms {
		if dist := r.BBox.DistanceTo(chord); dist <= tolerance {
			matches = append(matches, match{r.ID, dist, r.BBox.Area()})
		}
	}
	if len(matches) == 0 {
		return ""
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].area < matches[j].area
	})
	return matches[0].id
}

// nearestLabel returns the closest unused door label within LabelRadius,
// normalized to P-NN, with its block index.
func (d *Detector) nearestLabel(hinge plan.Point, blocks []plan.TextBlock, used map[int]bool) (string, int, bool) {
	best, bestIdx, bestDist := "", -1, math.Inf(1)
	for i, b := range blocks {
		if used[i] {
			continue
		}
		dist := b.BBox.DistanceTo(hinge)
		if dist > d.settings.LabelRadius || dist >= bestDist {
			continue
		}
		if number, ok := d.doorNumber(b.Text); ok {
			best, bestIdx, bestDist = number, i, dist
		}
	}
	return best, bestIdx, bestIdx >= 0
}

func (d *Detector) doorNumber(text string) (string, bool) {
	folded := strings.TrimSpace(vocab.Fold(text))
	for _, expr := range d.rules.DoorLabels {
		m := expr.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		idx := expr.SubexpIndex("number")
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(m[idx])
		if err != nil {
			continue
		}
		return fmt.Sprintf("P-%02d", n), true
	}
	return "", false
}
