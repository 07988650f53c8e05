package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func classified(number int, typ plan.PageType, score float64) plan.PageClassification {
	return plan.PageClassification{Page: number, Type: typ, Scores: map[plan.PageType]float64{typ: score}}
}

func pageNumbers(sel Selection) []int {
	var out []int
	for _, p := range sel.Pages {
		out = append(out, p.Page)
	}
	return out
}

func TestSelectLegendAndDiversifiedPlans(t *testing.T) {
	pages := []plan.PageClassification{
		classified(1, plan.PageLegend, 0.6),
		classified(2, plan.PageOther, 1),
		classified(3, plan.PagePlan, 0.9),
		classified(4, plan.PagePlan, 0.8),
		classified(5, plan.PagePlan, 0.7),
		classified(6, plan.PagePlan, 0.6),
		classified(7, plan.PagePlan, 0.5),
		classified(8, plan.PagePlan, 0.4),
		classified(9, plan.PageDetail, 0.7),
		classified(10, plan.PageLegend, 0.5),
	}

	sel := Select(pages, 5)
	assert.Equal(t, []int{1, 3, 5, 6, 8}, pageNumbers(sel))
	assert.Equal(t, "1 LEGEND + 4 PLAN", sel.Strategy)
	assert.Equal(t, 5, sel.Requested)
	assert.Equal(t, SelectedPage{Page: 1, Type: plan.PageLegend, Score: 0.6}, sel.Pages[0])
}

func TestSelectFallsBackToPageOrder(t *testing.T) {
	pages := []plan.PageClassification{
		classified(3, plan.PageOther, 1),
		classified(1, plan.PageOther, 1),
		classified(2, plan.PageDetail, 0.8),
	}

	sel := Select(pages, 2)
	assert.Equal(t, []int{1, 2}, pageNumbers(sel))
	assert.Equal(t, "0 LEGEND + 0 PLAN + 2 FALLBACK", sel.Strategy)
}

func TestSelectFillsAfterFewPlans(t *testing.T) {
	pages := []plan.PageClassification{
		classified(1, plan.PageOther, 1),
		classified(2, plan.PagePlan, 0.9),
		classified(3, plan.PageDetail, 0.8),
		classified(4, plan.PageLegend, 0.7),
	}

	sel := Select(pages, 10)
	assert.Equal(t, []int{1, 2, 3, 4}, pageNumbers(sel))
	assert.Equal(t, "1 LEGEND + 1 PLAN + 2 FALLBACK", sel.Strategy)
}

func TestSelectEmpty(t *testing.T) {
	assert.Empty(t, Select(nil, 5).Pages)
	assert.Empty(t, Select([]plan.PageClassification{classified(1, plan.PagePlan, 1)}, 0).Pages)
}

func TestDiversify(t *testing.T) {
	assert.Equal(t, []int{0, 2, 3, 5}, diversify(6, 4))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, diversify(5, 5))
	assert.Equal(t, []int{0, 1, 2}, diversify(3, 7))
	assert.Equal(t, []int{0}, diversify(10, 1))
	assert.Equal(t, []int{0, 9}, diversify(10, 2))
	assert.Nil(t, diversify(3, 0))
}
