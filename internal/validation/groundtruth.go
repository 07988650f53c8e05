// Package validation measures an extraction against curated ground truth and
// against the room ids mentioned in a devis.
package validation

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// GroundTruthRoom is one manually verified room
type GroundTruthRoom struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Block string `yaml:"block" json:"block"`
	Floor string `yaml:"floor" json:"floor"`
	Type  string `yaml:"type" json:"type"`
}

// GroundTruth is a reference sample. It is never assumed to cover the whole project.
type GroundTruth struct {
	Rooms []GroundTruthRoom `yaml:"rooms" json:"rooms"`
	// VerifiedRooms is an accepted alias of Rooms.
	VerifiedRooms []GroundTruthRoom `yaml:"verified_rooms" json:"verified_rooms,omitempty"`
}

// All returns the reference rooms of both keys
func (g GroundTruth) All() []GroundTruthRoom {
	return append(append([]GroundTruthRoom(nil), g.Rooms...), g.VerifiedRooms...)
}

// LoadGroundTruth reads a YAML or JSON ground truth file
func LoadGroundTruth(path string) (GroundTruth, error) {
	f, err := os.Open(path)
	if err != nil {
		return GroundTruth{}, fmt.Errorf("failed to open ground truth: %w", err)
	}
	defer f.Close()

	gt, err := ParseGroundTruth(f)
	if err != nil {
		return GroundTruth{}, fmt.Errorf("failed to load ground truth from %s: %w", path, err)
	}
	return gt, nil
}

// ParseGroundTruth decodes a ground truth document
func ParseGroundTruth(r io.Reader) (GroundTruth, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return GroundTruth{}, err
	}
	var gt GroundTruth
	if len(bytes.TrimSpace(data)) == 0 {
		return gt, nil
	}
	if err := yaml.Unmarshal(data, &gt); err != nil {
		return GroundTruth{}, fmt.Errorf("invalid ground truth: %w", err)
	}
	return gt, nil
}

// GroundTruthReport holds the metrics of a ground-truth comparison. The rates
// are nil when the status is INCONCLUSIVE.
type GroundTruthReport struct {
	Status           plan.ValidationStatus `json:"status"`
	Note             string                `json:"note,omitempty"`
	GroundTruthCount int                   `json:"ground_truth_count"`
	ExtractedCount   int                   `json:"extracted_count"`
	Matched          int                   `json:"matched"`
	Exact            int                   `json:"exact"`
	IDOnly           int                   `json:"id_only"`
	NameOnly         int                   `json:"name_only"`
	Missing          int                   `json:"missing"`
	// ExtraExtracted counts extracted rooms absent from the sample. It never lowers a rate.
	ExtraExtracted int                     `json:"extra_extracted"`
	Recall         *float64                `json:"recall,omitempty"`
	Precision      *float64                `json:"precision,omitempty"`
	Accuracy       *float64                `json:"accuracy,omitempty"`
	F1             *float64                `json:"f1,omitempty"`
	Records        []plan.ValidationRecord `json:"validation_records"`
}

// Validator compares extractions with reference data. It is stateless after construction.
type Validator struct {
	settings plan.ValidationSettings
	vocab    *vocab.Vocabulary
}

// New creates a validator. A nil vocabulary means the built-in one.
func New(settings plan.ValidationSettings, v *vocab.Vocabulary) *Validator {
	if v == nil {
		v = vocab.Default()
	}
	return &Validator{settings: settings, vocab: v}
}

// ValidateGroundTruth grades every reference room against the merged rooms.
// Recall is matched / |ground truth|, so extra extracted rooms never count against it.
func (v *Validator) ValidateGroundTruth(rooms []plan.Room, gt GroundTruth) GroundTruthReport {
	reference := gt.All()
	report := GroundTruthReport{GroundTruthCount: len(reference), ExtractedCount: len(rooms)}

	minimum := max(v.settings.MinGroundTruth, 1)
	if len(reference) < minimum {
		report.Status = plan.StatusInconclusive
		report.Note = fmt.Sprintf("ground truth has %d rooms, below the minimum of %d", len(reference), minimum)
		return report
	}

	byKey := make(map[string]int, len(rooms))
	for i, r := range rooms {
		if _, dup := byKey[vocab.IDKey(r.ID)]; !dup {
			byKey[vocab.IDKey(r.ID)] = i
		}
	}
	claimed := make(map[int]bool)
	pairs := make([]int, len(reference))
	classes := make([]plan.MatchClass, len(reference))

	// id matches claim their rooms before any name-only pairing
	for gi, ref := range reference {
		pairs[gi] = -1
		classes[gi] = plan.MatchNone
		idx, ok := byKey[vocab.IDKey(ref.ID)]
		if !ok || ref.ID == "" || claimed[idx] {
			continue
		}
		claimed[idx] = true
		pairs[gi] = idx
		if v.namesMatch(rooms[idx].Name, ref.Name) {
			classes[gi] = plan.MatchExact
		} else {
			classes[gi] = plan.MatchIDOnly
		}
	}
	for gi, ref := range reference {
		if pairs[gi] >= 0 || strings.TrimSpace(ref.Name) == "" {
			continue
		}
		for i, r := range rooms {
			if claimed[i] || r.Name == "" || !v.namesMatch(r.Name, ref.Name) {
				continue
			}
			if ref.Floor != "" && r.Floor != ref.Floor {
				continue
			}
			claimed[i] = true
			pairs[gi] = i
			classes[gi] = plan.MatchNameOnly
			break
		}
	}

	fieldScore := 0.0
	for gi, ref := range reference {
		rec := plan.ValidationRecord{GroundTruthEntityID: ref.ID, MatchClass: classes[gi]}
		switch classes[gi] {
		case plan.MatchExact:
			report.Exact++
		case plan.MatchIDOnly:
			report.IDOnly++
			rec.Note = fmt.Sprintf("name %q, expected %q", rooms[pairs[gi]].Name, ref.Name)
		case plan.MatchNameOnly:
			report.NameOnly++
			rec.Note = fmt.Sprintf("id %q, expected %q", rooms[pairs[gi]].ID, ref.ID)
		default:
			report.Missing++
			rec.Note = "not extracted"
		}
		if pairs[gi] >= 0 {
			rec.EntityID = rooms[pairs[gi]].ID
			fieldScore += v.fieldAgreement(rooms[pairs[gi]], ref)
		}
		report.Records = append(report.Records, rec)
	}

	report.Matched = report.Exact + report.IDOnly + report.NameOnly
	report.ExtraExtracted = len(rooms) - len(claimed)
	report.Status = plan.StatusComplete

	recall := float64(report.Matched) / float64(len(reference))
	precision, accuracy, f1 := 0.0, 0.0, 0.0
	if report.Matched > 0 {
		precision = float64(report.Exact) / float64(report.Matched)
		accuracy = fieldScore / float64(report.Matched)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	report.Recall, report.Precision, report.Accuracy, report.F1 = &recall, &precision, &accuracy, &f1
	return report
}

// namesMatch accepts equal keys, vocabulary synonyms, containment and close spellings.
// An empty reference name matches anything.
func (v *Validator) namesMatch(extracted, reference string) bool {
	ke, kr := vocab.Key(extracted), vocab.Key(reference)
	switch {
	case kr == "":
		return true
	case ke == "":
		return false
	case ke == kr, v.vocab.Equivalent(extracted, reference):
		return true
	case strings.Contains(" "+ke+" ", " "+kr+" ") || strings.Contains(" "+kr+" ", " "+ke+" "):
		return true
	}
	return vocab.Similarity(extracted, reference) >= v.settings.NameSimilarity
}

// fieldAgreement is the share of id, name, block, floor and type that agree
func (v *Validator) fieldAgreement(r plan.Room, ref GroundTruthRoom) float64 {
	agree := 0
	if vocab.IDKey(r.ID) == vocab.IDKey(ref.ID) {
		agree++
	}
	if v.namesMatch(r.Name, ref.Name) {
		agree++
	}
	if vocab.Key(r.Block) == vocab.Key(ref.Block) {
		agree++
	}
	if vocab.Key(r.Floor) == vocab.Key(ref.Floor) {
		agree++
	}
	if ref.Type == "" || vocab.Key(r.Type) == vocab.Key(ref.Type) {
		agree++
	}
	return float64(agree) / 5
}
