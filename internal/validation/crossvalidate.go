package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// Cross-validation match types
const (
	MatchDirect = "direct"
	MatchFuzzy  = "fuzzy"
	MatchName   = "name"
)

type indexedSection struct {
	path   string
	folded string
	tokens []string
}

// CrossValidate looks up every room id in the devis. Below the configured
// minimum corpus size no rate is computed and the status is INCONCLUSIVE.
func (v *Validator) CrossValidate(rooms []plan.Room, corpus Corpus) plan.CrossValidationResult {
	size := corpus.Size()
	res := plan.CrossValidationResult{
		TotalCount:          len(rooms),
		ReferenceCorpusSize: size,
		MinCorpusSize:       v.settings.MinCorpusSize,
	}
	if size < v.settings.MinCorpusSize {
		res.Status = plan.StatusInconclusive
		res.Note = fmt.Sprintf("reference corpus has %d characters, below the minimum of %d; no match rate computed",
			size, v.settings.MinCorpusSize)
		return res
	}
	if len(rooms) == 0 {
		res.Status = plan.StatusInconclusive
		res.Note = "no rooms to look up"
		return res
	}

	var sections []indexedSection
	corpus.walk(func(path string, s Section) {
		text := s.Title + "\n" + s.Content
		sections = append(sections, indexedSection{path: path, folded: vocab.Fold(text), tokens: vocab.Words(text)})
	})

	for _, r := range rooms {
		rec := v.lookup(r, sections)
		switch {
		case rec.Matched:
			res.MatchedCount++
		case rec.NameHit:
			res.NameOnlyCount++
		}
		res.Records = append(res.Records, rec)
	}

	rate := float64(res.MatchedCount) / float64(res.TotalCount)
	res.MatchRate = &rate
	res.Status = plan.StatusComplete
	return res
}

func (v *Validator) lookup(r plan.Room, sections []indexedSection) plan.CrossValidationRecord {
	rec := plan.CrossValidationRecord{RoomID: r.ID}
	spellings := idSpellings(r.ID)
	compact := vocab.Compact(r.ID)
	fuzzy := len([]rune(compact)) >= v.settings.MinFuzzyIDLength

	nameWords := vocab.Words(r.Name)
	searchName := len(nameWords) > 0 && !v.vocab.IsGeneric(r.Name)

	for _, s := range sections {
		kind := ""
		for _, sp := range spellings {
			if containsToken(s.folded, sp) {
				kind = MatchDirect
				break
			}
		}
		if kind == "" && fuzzy && fuzzyToken(s.tokens, compact, v.settings.MaxTokenDistance) {
			kind = MatchFuzzy
		}
		if kind != "" {
			rec.Matched = true
			rec.Sections = append(rec.Sections, s.path)
			if rec.MatchType != MatchDirect {
				rec.MatchType = kind
			}
		}
		if searchName && !rec.NameHit && containsWords(s.tokens, nameWords) {
			rec.NameHit = true
		}
	}
	if !rec.Matched && rec.NameHit {
		rec.MatchType = MatchName
	}
	return rec
}

// idSpellings returns the dashed, undashed and spaced forms of an id, folded.
// "A-204" gives "A-204", "A204" and "A 204".
func idSpellings(id string) []string {
	words := vocab.Words(id)
	if len(words) == 0 {
		return nil
	}
	forms := []string{strings.Join(words, "-"), strings.Join(words, ""), strings.Join(words, " ")}
	seen := make(map[string]bool, len(forms))
	out := forms[:0]
	for _, f := range forms {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// containsToken finds needle in text where it is not part of a longer
// alphanumeric run, so "204" does not match inside "1204".
func containsToken(text, needle string) bool {
	for from := 0; from <= len(text)-len(needle); {
		i := strings.Index(text[from:], needle)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(needle)
		if !alnumBefore(text, start) && !alnumAfter(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func alnumBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsLetter(last) || unicode.IsDigit(last)
}

func alnumAfter(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsLetter(next) || unicode.IsDigit(next)
}

// fuzzyToken reports a token within maxDist edits of id. Tokens without a
// digit are skipped, and adjacent letter/number pairs are joined so "A 205"
// is compared as "A205".
func fuzzyToken(tokens []string, id string, maxDist int) bool {
	check := func(tok string) bool {
		if !strings.ContainsAny(tok, "0123456789") {
			return false
		}
		diff := len([]rune(tok)) - len([]rune(id))
		if diff > maxDist || -diff > maxDist {
			return false
		}
		return vocab.Distance(tok, id) <= maxDist
	}
	for i, tok := range tokens {
		if check(tok) {
			return true
		}
		if i+1 < len(tokens) && check(tok+tokens[i+1]) {
			return true
		}
	}
	return false
}

func containsWords(tokens, words []string) bool {
	for i := 0; i+len(words) <= len(tokens); i++ {
		match := true
		for j := range words {
			if tokens[i+j] != words[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
