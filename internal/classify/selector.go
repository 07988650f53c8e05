package classify

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// SelectedPage is one page picked for analysis
type SelectedPage struct {
	Page  int           `json:"page"`
	Type  plan.PageType `json:"type"`
	Score float64       `json:"score"`
}

// Selection is the outcome of Select
type Selection struct {
	Requested int            `json:"requested_count"`
	Strategy  string         `json:"strategy"`
	Pages     []SelectedPage `json:"selected"`
}

// Select picks up to n pages: the best LEGEND page, then PLAN pages spread
// across the score ranking, then the lowest unselected page numbers.
// The result is in page order.
func Select(pages []plan.PageClassification, n int) Selection {
	sel := Selection{Requested: n}
	if len(pages) == 0 || n <= 0 {
		sel.Strategy = "empty"
		return sel
	}

	var legends, plans []plan.PageClassification
	for _, p := range pages {
		switch p.Type {
		case plan.PageLegend:
			legends = append(legends, p)
		case plan.PagePlan:
			plans = append(plans, p)
		}
	}
	byScore := func(list []plan.PageClassification, typ plan.PageType) {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Scores[typ] != list[j].Scores[typ] {
				return list[i].Scores[typ] > list[j].Scores[typ]
			}
			return list[i].Page < list[j].Page
		})
	}
	byScore(legends, plan.PageLegend)
	byScore(plans, plan.PagePlan)

	var picked []plan.PageClassification
	var parts []string
	remaining := n

	if len(legends) > 0 {
		picked = append(picked, legends[0])
		remaining--
		parts = append(parts, "1 LEGEND")
	} else {
		parts = append(parts, "0 LEGEND")
	}

	if take := min(len(plans), remaining); take > 0 {
		for _, i := range diversify(len(plans), take) {
			picked = append(picked, plans[i])
		}
		remaining -= take
		parts = append(parts, fmt.Sprintf("%d PLAN", take))
	} else if len(plans) == 0 {
		parts = append(parts, "0 PLAN")
	}

	if remaining > 0 {
		taken := make(map[int]bool, len(picked))
		for _, p := range picked {
			taken[p.Page] = true
		}
		rest := make([]plan.PageClassification, 0, len(pages))
		for _, p := range pages {
			if !taken[p.Page] {
				rest = append(rest, p)
			}
		}
		sort.SliceStable(rest, func(i, j int) bool { return rest[i].Page < rest[j].Page })
		if take := min(len(rest), remaining); take > 0 {
			picked = append(picked, rest[:take]...)
			parts = append(parts, fmt.Sprintf("%d FALLBACK", take))
		}
	}

	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Page < picked[j].Page })
	for _, p := range picked {
		sel.Pages = append(sel.Pages, SelectedPage{Page: p.Page, Type: p.Type, Score: p.Scores[p.Type]})
	}
	sel.Strategy = strings.Join(parts, " + ")
	return sel
}

// diversify returns count indices out of total: always the first, the rest
// evenly spaced to the last. Rounding collisions are filled in order.
func diversify(total, count int) []int {
	switch {
	case count <= 0:
		return nil
	case count >= total:
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	case count == 1:
		return []int{0}
	}

	seen := map[int]bool{0: true}
	out := []int{0}
	step := float64(total-1) / float64(count-1)
	for i := 1; i < count; i++ {
		idx := int(math.Round(float64(i) * step))
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	for i := 0; len(out) < count && i < total; i++ {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
