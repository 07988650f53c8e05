// Package room finds numbered rooms on a normalized page, names them from
// the room vocabulary and infers their extent from the surrounding walls.
package room

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/a3tai/mcp-plan-extractor/internal/confidence"
	"github.com/a3tai/mcp-plan-extractor/internal/diagnostics"
	"github.com/a3tai/mcp-plan-extractor/internal/dimension"
	"github.com/a3tai/mcp-plan-extractor/internal/normalize"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/rules"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

const (
	nameFromVocabulary = 1.0
	nameFromFreeText   = 0.85
	nameMissing        = 0.7
	// free text further away than this many words is not taken as a name
	maxFreeNameWords = 3
)

// Detector finds rooms on a page. It is safe for concurrent use.
type Detector struct {
	settings plan.RoomSettings
	weights  plan.ConfidenceSettings
	rules    *rules.Rules
}

// New creates a detector. A nil rule table means the built-in rules.
func New(settings plan.RoomSettings, weights plan.ConfidenceSettings, r *rules.Rules) *Detector {
	if r == nil {
		r = rules.Defaults()
	}
	return &Detector{settings: settings, weights: weights, rules: r}
}

// label is a text block after deny-list blanking
type label struct {
	block plan.TextBlock
	words []string
	ids   []ID
	// nameWords are the words that can be part of a room name
	nameWords []string
}

type name struct {
	text        string
	raw         string
	typ         string
	substituted bool
	quality     float64
}

// Detect returns the room candidates of one page. Duplicates are kept; the
// merge step collapses them.
func (d *Detector) Detect(page *normalize.Page) ([]plan.Room, []*diagnostics.Diagnostic) {
	pageBlock := d.pageBlock(page.Blocks)

	labels := make([]label, 0, len(page.Blocks))
	for _, block := range page.Blocks {
		labels = append(labels, d.tokenize(block))
	}

	geo := newGeometry(page, d.settings)
	var rooms []plan.Room
	var diags []*diagnostics.Diagnostic

	for i, l := range labels {
		for _, id := range l.ids {
			if id.Block == "" {
				id.Block = pageBlock
			}
			n := d.findName(i, labels)

			box, method, fit := geo.locate(l.block.BBox)
			room := plan.Room{
				ID:              id.Canonical(),
				Block:           id.Block,
				Floor:           id.Floor,
				Sequence:        id.Sequence,
				Suffix:          id.Suffix,
				Number:          id.Number,
				Name:            n.text,
				RawName:         n.raw,
				NameSubstituted: n.substituted,
				Type:            n.typ,
				BBox:            box,
				LabelBBox:       l.block.BBox,
				BBoxMethod:      method,
				Dimensions:      d.findDimensions(l.block.BBox, box, page.Blocks),
				Page:            page.Number,
				SourcePages:     []int{page.Number},
			}
			room.Confidence = confidence.Score(d.weights, id.Strength*n.quality, fit)

			if method == plan.BBoxMarginFallback {
				diags = append(diags, diagnostics.Newf(diagnostics.TypeGeometryFitFailure, page.Number,
					"no enclosing walls found for room %s, using label margin", room.ID).
					WithText(l.block.Text).
					WithBBox(l.block.BBox).
					WithEntity(room.ID))
			}
			rooms = append(rooms, room)
		}
	}
	return rooms, diags
}

// pageBlock returns the block letter announced on the page, as in "BLOC A"
func (d *Detector) pageBlock(blocks []plan.TextBlock) string {
	for _, b := range blocks {
		for _, expr := range d.rules.BlockContext {
			m := expr.FindStringSubmatch(vocab.Fold(b.Text))
			if m == nil {
				continue
			}
			if i := expr.SubexpIndex("block"); i >= 0 && m[i] != "" {
				return m[i]
			}
		}
	}
	return ""
}

// tokenize blanks deny-listed spans and only then splits the block into
// words, so numbers inside "PHOTO 5/100" never reach the id patterns.
func (d *Detector) tokenize(block plan.TextBlock) label {
	cleaned := blank(block.Text, d.rules.Deny)
	// a block that announces the block letter is not a room label
	cleaned = blank(cleaned, d.rules.BlockContext)

	l := label{block: block}
	for _, raw := range strings.Fields(cleaned) {
		word := strings.TrimFunc(vocab.Fold(raw), func(r rune) bool {
			return strings.ContainsRune(",;:()[]{}*#", r)
		})
		if word == "" {
			continue
		}
		l.words = append(l.words, word)
		if id, ok := ParseID(word, d.rules.RoomNumbers); ok {
			l.ids = append(l.ids, id)
			continue
		}
		if isNameWord(word) {
			l.nameWords = append(l.nameWords, word)
		}
	}
	return l
}

func blank(text string, patterns []*regexp.Regexp) string {
	for _, expr := range patterns {
		text = expr.ReplaceAllStringFunc(text, func(m string) string {
			return strings.Repeat(" ", len([]rune(m)))
		})
	}
	return text
}

func isNameWord(word string) bool {
	letters := 0
	for _, r := range word {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsLetter(r):
			letters++
		}
	}
	return letters >= 2 || (letters == 1 && strings.HasSuffix(word, "."))
}

// findName looks for the room name in the label itself, then in nearby
// blocks ranked by distance with a bonus for names above or left of the number.
func (d *Detector) findName(i int, labels []label) name {
	if n, ok := d.resolve(labels[i].nameWords); ok {
		return n
	}

	anchor := labels[i].block.BBox
	center := anchor.Center()
	best, bestScore := name{}, math.Inf(1)
	bestVocab := false

	for j, other := range labels {
		if j == i || len(other.ids) > 0 || len(other.nameWords) == 0 {
			continue
		}
		dist := other.block.BBox.DistanceTo(center)
		if dist > d.settings.NameRadius {
			continue
		}
		n, ok := d.resolve(other.nameWords)
		if !ok {
			continue
		}
		isVocab := n.quality == nameFromVocabulary
		if !isVocab && len(other.nameWords) > maxFreeNameWords {
			continue
		}

		score := dist
		oc := other.block.BBox.Center()
		if oc.Y < anchor.Y0 {
			score -= d.settings.AboveBonus
		}
		if oc.X < anchor.X0 {
			score -= d.settings.LeftBonus
		}
		if (isVocab && !bestVocab) || (isVocab == bestVocab && score < bestScore) {
			best, bestScore, bestVocab = n, score, isVocab
		}
	}
	if bestScore == math.Inf(1) {
		return name{quality: nameMissing}
	}
	return best
}

// resolve turns name words into a room name. An exact vocabulary term is
// replaced by its canonical name; a phrase containing a term keeps its text.
func (d *Detector) resolve(words []string) (name, bool) {
	if len(words) == 0 {
		return name{}, false
	}
	raw := strings.Join(words, " ")
	m, ok := d.rules.Vocabulary.Find(raw)
	switch {
	case ok && m.Exact:
		return name{
			text:        m.Canonical,
			raw:         raw,
			typ:         m.Type,
			substituted: vocab.Key(m.Canonical) != vocab.Key(raw),
			quality:     nameFromVocabulary,
		}, true
	case ok:
		return name{text: raw, raw: raw, typ: m.Type, quality: nameFromVocabulary}, true
	default:
		return name{text: raw, raw: raw, typ: vocab.TypeAutre, quality: nameFromFreeText}, true
	}
}

// findDimensions returns the nearest "W x D" label inside the room or close to its number
func (d *Detector) findDimensions(labelBox, roomBox plan.BBox, blocks []plan.TextBlock) *plan.RoomDimensions {
	center := labelBox.Center()
	var best *plan.RoomDimensions
	bestDist := math.Inf(1)
	for _, b := range blocks {
		dist := b.BBox.DistanceTo(center)
		if dist > d.settings.DimensionSearchRadius && !roomBox.ContainsBox(b.BBox) {
			continue
		}
		rd, ok := dimension.RoomLabel(b.Text)
		if !ok {
			continue
		}
		if dist < bestDist {
			best, bestDist = rd, dist
		}
	}
	return best
}
