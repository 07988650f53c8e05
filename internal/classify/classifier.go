// Package classify scores plan sheets into LEGEND, PLAN, DETAIL, ELEVATION
// or OTHER and picks representative pages from a classified set.
package classify

import (
	"math"
	"sort"
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/normalize"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/rules"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// Input is the page content plus the detector counts the density terms use
type Input struct {
	Page        *normalize.Page
	RoomMatches int
	Dimensions  int
	DoorArcs    int
}

// Classifier is a pure function of page content; it holds no state between
// calls and is safe for concurrent use.
type Classifier struct {
	settings plan.ClassifierSettings
	keywords map[plan.PageType][]keyword
}

type keyword struct {
	key    string
	words  []string
	weight float64
}

// New builds a classifier. A nil rule table means the built-in keywords.
func New(settings plan.ClassifierSettings, r *rules.Rules) *Classifier {
	if r == nil {
		r = rules.Defaults()
	}
	c := &Classifier{settings: settings, keywords: make(map[plan.PageType][]keyword)}
	for typ, table := range r.PageKeywords {
		for key, weight := range table {
			c.keywords[typ] = append(c.keywords[typ], keyword{key: key, words: strings.Fields(key), weight: weight})
		}
		// map order must not leak into the signals
		sort.Slice(c.keywords[typ], func(i, j int) bool {
			return c.keywords[typ][i].key < c.keywords[typ][j].key
		})
	}
	return c
}

// Classify scores one page. Keyword hits count whole folded words, so
// "ÉTAGE" and "etage" are the same hit and "PLANCHER" is not "PLAN".
func (c *Classifier) Classify(in Input) plan.PageClassification {
	signals := plan.PageSignals{
		KeywordHits: make(map[plan.PageType]map[string]int),
		RoomMatches: in.RoomMatches,
		Dimensions:  in.Dimensions,
		DoorArcs:    in.DoorArcs,
	}
	pageNumber := 0
	var blockWords [][]string
	if in.Page != nil {
		pageNumber = in.Page.Number
		signals.TextBlocks = len(in.Page.Blocks)
		signals.Paths = len(in.Page.Paths)
		for _, b := range in.Page.Blocks {
			blockWords = append(blockWords, vocab.Words(b.Text))
		}
	}
	signals.RoomDensity = ratio(in.RoomMatches, signals.TextBlocks)
	signals.DimensionDensity = ratio(in.Dimensions, signals.TextBlocks)
	signals.DoorDensity = ratio(in.DoorArcs, signals.Paths)

	raw := make(map[plan.PageType]float64, len(plan.PageTypes()))
	for typ, keywords := range c.keywords {
		for _, kw := range keywords {
			n := 0
			for _, words := range blockWords {
				n += countSequence(words, kw.words)
			}
			if n == 0 {
				continue
			}
			if signals.KeywordHits[typ] == nil {
				signals.KeywordHits[typ] = make(map[string]int)
			}
			signals.KeywordHits[typ][kw.key] = n
			raw[typ] += float64(n) * kw.weight
		}
	}

	s := c.settings
	raw[plan.PagePlan] += capped(s.RoomMatchWeight*float64(in.RoomMatches), s.RoomScoreCap)
	raw[plan.PagePlan] += capped(s.DoorArcWeight*float64(in.DoorArcs), s.DoorScoreCap)
	raw[plan.PageDetail] += capped(s.DimensionWeight*float64(in.Dimensions), s.DimensionScoreCap)
	raw[plan.PageOther] += s.OtherBaseline

	scores, best := normalizeScores(raw)
	return plan.PageClassification{Page: pageNumber, Type: best, Scores: scores, Signals: signals}
}

// normalizeScores turns raw scores into a distribution over every page type
// and picks the winner. Ties go to the earlier type in plan.PageTypes.
func normalizeScores(raw map[plan.PageType]float64) (map[plan.PageType]float64, plan.PageType) {
	total := 0.0
	for _, typ := range plan.PageTypes() {
		total += math.Max(0, raw[typ])
	}

	scores := make(map[plan.PageType]float64, len(plan.PageTypes()))
	if total == 0 {
		for _, typ := range plan.PageTypes() {
			scores[typ] = 0
		}
		scores[plan.PageOther] = 1
		return scores, plan.PageOther
	}

	best, bestScore := plan.PageOther, -1.0
	for _, typ := range plan.PageTypes() {
		scores[typ] = math.Max(0, raw[typ]) / total
		if scores[typ] > bestScore {
			best, bestScore = typ, scores[typ]
		}
	}
	return scores, best
}

func countSequence(words, seq []string) int {
	if len(seq) == 0 || len(words) < len(seq) {
		return 0
	}
	n := 0
	for i := 0; i+len(seq) <= len(words); i++ {
		match := true
		for j := range seq {
			if words[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func capped(v, limit float64) float64 {
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
