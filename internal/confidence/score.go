// Package confidence scores extracted entities, merges them across pages and
// raises quality alerts over the merged set.
package confidence

import "github.com/a3tai/mcp-plan-extractor/internal/plan"

// Score combines pattern completeness and geometric fit into one confidence
// on [0,1], weighted by the configured pattern and geometry weights.
func Score(w plan.ConfidenceSettings, completeness, fit float64) float64 {
	total := w.PatternWeight + w.GeometryWeight
	if total <= 0 {
		return plan.Clamp01(completeness)
	}
	return plan.Clamp01((w.PatternWeight*plan.Clamp01(completeness) + w.GeometryWeight*plan.Clamp01(fit)) / total)
}

// Bonus returns the cross-page agreement bonus for n agreeing constituents
func Bonus(w plan.ConfidenceSettings, agreeing int) float64 {
	if agreeing <= 1 {
		return 0
	}
	return min(w.BonusCap, w.AgreementBonus*float64(agreeing-1))
}
