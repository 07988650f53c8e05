package vocab

import (
	"sort"
	"strings"
)

// Room type categories
const (
	TypeClasse      = "CLASSE"
	TypeWC          = "WC"
	TypeCorridor    = "CORRIDOR"
	TypeGymnase     = "GYMNASE"
	TypeRangement   = "RANGEMENT"
	TypeBureau      = "BUREAU"
	TypeVestiaire   = "VESTIAIRE"
	TypeTechnique   = "TECHNIQUE"
	TypeService     = "SERVICE"
	TypeCirculation = "CIRCULATION"
	TypeAutre       = "AUTRE"
)

// Group is one room name with its abbreviations and synonyms.
type Group struct {
	Canonical string   `json:"canonical" yaml:"canonical"`
	Type      string   `json:"type" yaml:"type"`
	Terms     []string `json:"terms" yaml:"terms"`
	Generic   bool     `json:"generic,omitempty" yaml:"generic,omitempty"`
}

// Match is a vocabulary hit inside a phrase
type Match struct {
	Term      string
	Canonical string
	Type      string
	Generic   bool
	// Exact is true when the whole phrase is the term.
	Exact bool
}

type entry struct {
	words []string
	group int
}

// Vocabulary resolves room names and their abbreviations to canonical names.
// It is read-only after construction and safe for concurrent use.
type Vocabulary struct {
	groups  []Group
	entries []entry
	byKey   map[string]int
}

// DefaultGroups returns the built-in room vocabulary
func DefaultGroups() []Group {
	return []Group{
		{Canonical: "CLASSE", Type: TypeClasse, Terms: []string{"CLASSE", "CLASS", "SALLE DE CLASSE", "LOCAL DE CLASSE", "MATERNELLE"}},
		{Canonical: "CORRIDOR", Type: TypeCorridor, Terms: []string{"CORRIDOR", "CORR.", "COULOIR"}},
		{Canonical: "TOILETTES", Type: TypeWC, Terms: []string{"TOILETTES", "TOILETTE", "WC", "W.C.", "SALLE DE BAIN", "S.D.B."}},
		{Canonical: "RANGEMENT", Type: TypeRangement, Terms: []string{"RANGEMENT", "RANG.", "REMISE", "DÉPÔT", "ENTREPOSAGE"}},
		{Canonical: "MÉCANIQUE", Type: TypeTechnique, Terms: []string{"MÉCANIQUE", "MÉC.", "LOCAL MÉCANIQUE", "TECHNIQUE", "LOCAL TECHNIQUE", "CHAUFFERIE"}},
		{Canonical: "ÉLECTRIQUE", Type: TypeTechnique, Terms: []string{"ÉLECTRIQUE", "ÉLEC.", "LOCAL ÉLECTRIQUE"}},
		{Canonical: "CONCIERGERIE", Type: TypeService, Terms: []string{"CONCIERGERIE", "CONC.", "CONCIERGE"}},
		{Canonical: "BUREAU", Type: TypeBureau, Terms: []string{"BUREAU", "BUR."}},
		{Canonical: "SECRÉTARIAT", Type: TypeBureau, Terms: []string{"SECRÉTARIAT", "SECR."}},
		{Canonical: "DIRECTION", Type: TypeBureau, Terms: []string{"DIRECTION", "DIR."}},
		{Canonical: "VESTIAIRE", Type: TypeVestiaire, Terms: []string{"VESTIAIRE", "VEST."}},
		{Canonical: "CUISINE", Type: TypeService, Terms: []string{"CUISINE", "CUIS."}},
		{Canonical: "SERVICE DE GARDE", Type: TypeService, Terms: []string{"SERVICE DE GARDE"}},
		{Canonical: "GYMNASE", Type: TypeGymnase, Terms: []string{"GYMNASE", "GYM."}},
		{Canonical: "BIBLIOTHÈQUE", Type: TypeAutre, Terms: []string{"BIBLIOTHÈQUE", "BIBLIO."}},
		{Canonical: "ENTRÉE", Type: TypeCirculation, Terms: []string{"ENTRÉE", "VESTIBULE"}},
		{Canonical: "HALL", Type: TypeCirculation, Terms: []string{"HALL"}},
		{Canonical: "ESCALIER", Type: TypeCirculation, Terms: []string{"ESCALIER", "ESC."}},
		{Canonical: "ASCENSEUR", Type: TypeCirculation, Terms: []string{"ASCENSEUR", "ASC."}},
		{Canonical: "SALLE", Type: TypeAutre, Terms: []string{"SALLE"}, Generic: true},
		{Canonical: "LOCAL", Type: TypeAutre, Terms: []string{"LOCAL"}, Generic: true},
	}
}

// Default returns a vocabulary built from DefaultGroups
func Default() *Vocabulary {
	return New(DefaultGroups())
}

// New builds a vocabulary. When two groups claim the same term the first wins.
func New(groups []Group) *Vocabulary {
	v := &Vocabulary{
		groups: append([]Group(nil), groups...),
		byKey:  make(map[string]int),
	}
	for gi, g := range v.groups {
		terms := append([]string{g.Canonical}, g.Terms...)
		for _, term := range terms {
			key := Key(term)
			if key == "" {
				continue
			}
			if _, exists := v.byKey[key]; exists {
				continue
			}
			v.byKey[key] = gi
			v.entries = append(v.entries, entry{words: strings.Fields(key), group: gi})
		}
	}
	// longest terms first so "SALLE DE CLASSE" wins over "SALLE"
	sort.SliceStable(v.entries, func(i, j int) bool {
		if len(v.entries[i].words) != len(v.entries[j].words) {
			return len(v.entries[i].words) > len(v.entries[j].words)
		}
		return len(strings.Join(v.entries[i].words, " ")) > len(strings.Join(v.entries[j].words, " "))
	})
	return v
}

// Groups returns a copy of the vocabulary groups
func (v *Vocabulary) Groups() []Group {
	return append([]Group(nil), v.groups...)
}

// Lookup resolves a phrase that is exactly one vocabulary term
func (v *Vocabulary) Lookup(phrase string) (Match, bool) {
	key := Key(phrase)
	gi, ok := v.byKey[key]
	if !ok {
		return Match{}, false
	}
	return v.match(key, gi, true), true
}

// Find returns the longest vocabulary term appearing as whole words in phrase.
func (v *Vocabulary) Find(phrase string) (Match, bool) {
	words := Words(phrase)
	if len(words) == 0 {
		return Match{}, false
	}
	if m, ok := v.Lookup(phrase); ok {
		return m, true
	}
	for _, e := range v.entries {
		if containsSequence(words, e.words) {
			return v.match(strings.Join(e.words, " "), e.group, false), true
		}
	}
	return Match{}, false
}

// Canonical returns the canonical name for an exact term, or the folded phrase.
func (v *Vocabulary) Canonical(phrase string) string {
	if m, ok := v.Lookup(phrase); ok {
		return m.Canonical
	}
	return Key(phrase)
}

// Equivalent reports whether two names denote the same room name: equal keys,
// or both resolving to the same vocabulary group.
func (v *Vocabulary) Equivalent(a, b string) bool {
	ka, kb := Key(a), Key(b)
	if ka == "" || kb == "" {
		return false
	}
	if ka == kb {
		return true
	}
	ga, okA := v.byKey[ka]
	gb, okB := v.byKey[kb]
	return okA && okB && ga == gb
}

// IsGeneric reports whether the name carries no room function, such as LOCAL
func (v *Vocabulary) IsGeneric(name string) bool {
	if Key(name) == "" {
		return true
	}
	m, ok := v.Lookup(name)
	return ok && m.Generic
}

func (v *Vocabulary) match(term string, gi int, exact bool) Match {
	g := v.groups[gi]
	typ := g.Type
	if typ == "" {
		typ = TypeAutre
	}
	return Match{Term: term, Canonical: g.Canonical, Type: typ, Generic: g.Generic, Exact: exact}
}

func containsSequence(words, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
	for i := 0; i+len(seq) <= len(words); i++ {
		found := true
		for j := range seq {
			if words[i+j] != seq[j] {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}
