package vocab

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold strips accents and upper-cases s. "Élec." becomes "ELEC.".
func Fold(s string) string {
	// transform chains keep state, so build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// Key folds s and reduces it to space-separated alphanumeric words.
// Periods are dropped so abbreviations like "S.D.B." collapse to "SDB".
func Key(s string) string {
	return strings.Join(Words(s), " ")
}

// Words returns the folded words of s
func Words(s string) []string {
	folded := strings.ReplaceAll(Fold(s), ".", "")
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Compact returns the folded alphanumeric characters of s with no separators.
// "A-204" and "a 204" both become "A204".
func Compact(s string) string {
	return strings.Join(Words(s), "")
}

// IDKey reduces a room id to its comparison form. A leading block letter is
// joined to the number, every other separator becomes a dash: "a-204",
// "A 204" and "A204" share the key "A204", while "204.1" keys as "204-1"
// and stays apart from "2041".
func IDKey(id string) string {
	parts := strings.FieldsFunc(Fold(id), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(parts) > 1 && isLetters(parts[0]) {
		parts = append([]string{parts[0] + parts[1]}, parts[2:]...)
	}
	return strings.Join(parts, "-")
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// Distance returns the Levenshtein edit distance between a and b, by rune.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns 1 - distance/maxlen over the keys of a and b.
func Similarity(a, b string) float64 {
	ka, kb := Key(a), Key(b)
	if ka == kb {
		return 1
	}
	longest := max(len([]rune(ka)), len([]rune(kb)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Distance(ka, kb))/float64(longest)
}
