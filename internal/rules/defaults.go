package rules

import "github.com/a3tai/mcp-plan-extractor/internal/vocab"

// DefaultVersion identifies the built-in table in output documents
const DefaultVersion = "builtin-1"

func defaultFile() File {
	return File{
		Version: DefaultVersion,
		RoomNumberPatterns: []PatternSpec{
			{
				Name:     "block-number",
				Pattern:  `^(?P<block>[A-Z])-?(?P<number>[0-9]{3,4})(?P<suffix>[A-Z]|[-.][0-9]{1,2})?$`,
				Strength: 1.0,
			},
			{
				Name:     "number",
				Pattern:  `^(?P<number>[0-9]{3,4})(?P<suffix>[A-Z]|[-.][0-9]{1,2})?$`,
				Strength: 0.9,
			},
		},
		DenyPatterns: []string{
			`(?i)\bPHOTOS?\s*(?:NO\.?|#)?\s*[0-9]+(?:\s*/\s*[0-9]+)?`,
			`(?i)\b(?:PAGE|FEUILLE|SHEET)\s*(?:NO\.?)?\s*[0-9]+(?:\s*(?:/|DE|OF)\s*[0-9]+)?`,
			`(?i)\bADDEND(?:A|UM)\s*(?:NO\.?|#)?\s*[0-9]+`,
			`(?i)\bR[EÉ]V(?:ISION)?\.?\s*[0-9]+`,
			`\b[0-9]{4}[-/.][0-9]{1,2}[-/.][0-9]{1,2}\b`,
			`\b[0-9]{1,2}[-/.][0-9]{1,2}[-/.][0-9]{2,4}\b`,
			`\b[0-9]+\s*/\s*[0-9]+\b`,
			`\b1\s*:\s*[0-9]+\b`,
			`[0-9]+\s*['’′"”″]`,
		},
		DoorLabelPatterns: []string{
			`(?i)^(?:P|D|PORTE)\s*-?\s*(?P<number>[0-9]{1,3})$`,
		},
		BlockPatterns: []string{
			`(?i)\bBLOC(?:K)?\s+(?P<block>[A-Z])\b`,
		},
		RoomNames: vocab.DefaultGroups(),
		PageKeywords: map[string]map[string]float64{
			"LEGEND": {
				"LÉGENDE":       10,
				"LEGEND":        10,
				"SYMBOLES":      8,
				"SYMBOLS":       8,
				"NOMENCLATURE":  6,
				"ABRÉVIATIONS":  5,
				"ABBREVIATIONS": 5,
			},
			"PLAN": {
				"ÉTAGE":           8,
				"NIVEAU":          8,
				"FLOOR":           8,
				"LEVEL":           7,
				"SOUS-SOL":        6,
				"REZ-DE-CHAUSSÉE": 6,
				"RDC":             5,
				"MEZZANINE":       5,
				"TOITURE":         4,
				"ROOF":            4,
			},
			"DETAIL": {
				"DÉTAIL":         10,
				"DETAIL":         10,
				"COUPE":          8,
				"SECTION":        8,
				"ASSEMBLAGE":     6,
				"ASSEMBLY":       6,
				"AGRANDISSEMENT": 5,
				"ENLARGEMENT":    5,
			},
			"ELEVATION": {
				"ÉLÉVATION": 10,
				"ELEVATION": 10,
				"FAÇADE":    8,
				"VUE":       4,
				"VIEW":      4,
				"NORD":      3,
				"SUD":       3,
				"EST":       3,
				"OUEST":     3,
			},
		},
	}
}
