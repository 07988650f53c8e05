package normalize

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

type run struct {
	text  string
	box   plan.BBox
	size  float64
	font  string
	glyph float64
}

type blockBuilder struct {
	text strings.Builder
	box  plan.BBox
	size float64
	font string
	runs int
	last run
}

func (b *blockBuilder) add(r run, space bool) {
	if space {
		b.text.WriteByte(' ')
	}
	b.text.WriteString(r.text)
	b.box = b.box.Union(r.box)
	b.size = math.Max(b.size, r.size)
	b.runs++
	b.last = r
}

// mergeRuns rebuilds words and labels from runs that the source positions
// glyph by glyph. Runs join when they share a baseline and the horizontal gap
// is below GlyphGapRatio glyph widths.
func (n *Normalizer) mergeRuns(f frame, raws []plan.TextRun) []plan.TextBlock {
	runs := make([]run, 0, len(raws))
	for _, raw := range raws {
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			continue
		}
		if !finitePoint(plan.Point{X: raw.BBox.X0, Y: raw.BBox.Y0}) || !finitePoint(plan.Point{X: raw.BBox.X1, Y: raw.BBox.Y1}) {
			continue
		}
		box := f.box(raw.BBox)
		size := raw.Size * f.scale
		if size <= 0 {
			size = box.Height()
		}
		glyph := box.Width() / float64(utf8.RuneCountInString(text))
		if glyph <= 0 {
			glyph = size * 0.5
		}
		runs = append(runs, run{text: text, box: box, size: size, font: raw.Font, glyph: glyph})
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].box.X0 != runs[j].box.X0 {
			return runs[i].box.X0 < runs[j].box.X0
		}
		return runs[i].box.Y0 < runs[j].box.Y0
	})

	var blocks []*blockBuilder
	for _, r := range runs {
		best, bestGap := -1, math.Inf(1)
		for i, b := range blocks {
			gap, ok := n.joinGap(b.last, r)
			if ok && gap < bestGap {
				best, bestGap = i, gap
			}
		}
		if best < 0 {
			b := &blockBuilder{box: r.box, font: r.font}
			b.add(r, false)
			blocks = append(blocks, b)
			continue
		}
		glyph := (blocks[best].last.glyph + r.glyph) / 2
		blocks[best].add(r, bestGap > n.settings.SpaceGapRatio*glyph)
	}

	out := make([]plan.TextBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, plan.TextBlock{
			Text:     b.text.String(),
			BBox:     b.box,
			FontSize: b.size,
			Font:     b.font,
			Runs:     b.runs,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BBox.Y0 != out[j].BBox.Y0 {
			return out[i].BBox.Y0 < out[j].BBox.Y0
		}
		return out[i].BBox.X0 < out[j].BBox.X0
	})
	return out
}

// joinGap returns the horizontal gap between prev and next when next can
// continue the same block.
func (n *Normalizer) joinGap(prev, next run) (float64, bool) {
	size := math.Max(prev.size, next.size)
	if math.Abs(prev.box.Y1-next.box.Y1) >= n.settings.BaselineRatio*size {
		return 0, false
	}
	glyph := (prev.glyph + next.glyph) / 2
	gap := next.box.X0 - prev.box.X1
	if gap < -glyph || gap >= n.settings.GlyphGapRatio*glyph {
		return 0, false
	}
	return gap, true
}
