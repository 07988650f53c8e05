package validation

import (
	"bufio"
	"fmt"
	"io"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// Thresholds used only for report recommendations
const (
	goodRecall    = 0.8
	goodPrecision = 0.8
	goodMatchRate = 0.5
)

// WriteReport renders the ground-truth and cross-validation results as Markdown.
// Either result may be nil.
func WriteReport(w io.Writer, source string, gt *GroundTruthReport, cv *plan.CrossValidationResult) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Validation report\n\nSource: `%s`\n\n", source)

	var recs []string
	if gt != nil {
		fmt.Fprintf(bw, "## Ground truth\n\nStatus: **%s**\n\n", gt.Status)
		if gt.Status == plan.StatusInconclusive {
			fmt.Fprintf(bw, "%s\n\n", gt.Note)
			recs = append(recs, "Extend the ground truth sample before reading any rate.")
		} else {
			fmt.Fprintf(bw, "| Metric | Value |\n|---|---|\n")
			fmt.Fprintf(bw, "| Recall | %s |\n", percent(gt.Recall))
			fmt.Fprintf(bw, "| Precision | %s |\n", percent(gt.Precision))
			fmt.Fprintf(bw, "| Field accuracy | %s |\n", percent(gt.Accuracy))
			fmt.Fprintf(bw, "| F1 | %s |\n", percent(gt.F1))
			fmt.Fprintf(bw, "| Reference rooms | %d |\n", gt.GroundTruthCount)
			fmt.Fprintf(bw, "| Exact / id only / name only / missing | %d / %d / %d / %d |\n",
				gt.Exact, gt.IDOnly, gt.NameOnly, gt.Missing)
			fmt.Fprintf(bw, "| Extracted rooms outside the sample | %d |\n\n", gt.ExtraExtracted)

			wrote := false
			for _, r := range gt.Records {
				if r.MatchClass == plan.MatchExact {
					continue
				}
				if !wrote {
					fmt.Fprintf(bw, "| Reference | Extracted | Class | Note |\n|---|---|---|---|\n")
					wrote = true
				}
				fmt.Fprintf(bw, "| %s | %s | %s | %s |\n", r.GroundTruthEntityID, r.EntityID, r.MatchClass, r.Note)
			}
			if wrote {
				fmt.Fprintln(bw)
			}

			if gt.Recall != nil && *gt.Recall < goodRecall {
				recs = append(recs, "Recall is low: review the room number patterns and the deny list.")
			}
			if gt.Precision != nil && *gt.Precision < goodPrecision {
				recs = append(recs, "Names often disagree: add the missing abbreviations to the room vocabulary.")
			}
		}
	}

	if cv != nil {
		fmt.Fprintf(bw, "## Devis cross-validation\n\nStatus: **%s**\n\n", cv.Status)
		fmt.Fprintf(bw, "Reference corpus: %d characters (minimum %d)\n\n", cv.ReferenceCorpusSize, cv.MinCorpusSize)
		if cv.Status == plan.StatusInconclusive {
			fmt.Fprintf(bw, "%s\n\n", cv.Note)
			recs = append(recs, "Supply the complete devis text; a truncated corpus cannot confirm or refute the room ids.")
		} else {
			fmt.Fprintf(bw, "Match rate: **%s** (%d of %d rooms, %d more by name only)\n\n",
				percent(cv.MatchRate), cv.MatchedCount, cv.TotalCount, cv.NameOnlyCount)
			if cv.MatchRate != nil && *cv.MatchRate < goodMatchRate {
				recs = append(recs, "Few room ids appear in the devis: check whether it lists rooms by number at all.")
			}
		}
	}

	fmt.Fprintf(bw, "## Recommendations\n\n")
	if len(recs) == 0 {
		fmt.Fprintf(bw, "- No action needed.\n")
	}
	for _, r := range recs {
		fmt.Fprintf(bw, "- %s\n", r)
	}
	return bw.Flush()
}

func percent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
