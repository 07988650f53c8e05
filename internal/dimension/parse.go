// Package dimension recognizes feet-inch-fraction measurements in plan text
// and associates them with nearby dimension lines.
package dimension

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// Form is the shape of a parsed measurement
type Form int

const (
	// FormFull has both feet and inches, as in 25'-6".
	FormFull Form = iota
	// FormFeet has feet only, as in 25'.
	FormFeet
	// FormInches has inches only, as in 6" or 5/8".
	FormInches
)

// Token is one measurement found in a string. Start and End are rune offsets.
type Token struct {
	Raw      string
	Start    int
	End      int
	Feet     int
	Inches   int
	Fraction *plan.Fraction
	Approx   bool
	Form     Form
}

// TotalInches returns feet*12 + inches + numerator/denominator
func (t Token) TotalInches() float64 {
	total := float64(t.Feet*12 + t.Inches)
	if t.Fraction != nil {
		total += float64(t.Fraction.Numerator) / float64(t.Fraction.Denominator)
	}
	return total
}

// ParseError is a token that reached a foot or inch mark and is malformed.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed dimension %q: %s", e.Raw, e.Reason)
}

// ErrNotDimension is returned by Parse for text with no measurement at all
var ErrNotDimension = errors.New("not a dimension")

const maxDigits = 6

// Parse reads text that is exactly one measurement, surrounding spaces aside.
func Parse(text string) (plan.Dimension, error) {
	trimmed := strings.TrimSpace(text)
	tokens, failures := Scan(trimmed)
	if len(failures) > 0 {
		return plan.Dimension{}, failures[0]
	}
	if len(tokens) != 1 || tokens[0].Start != 0 || tokens[0].End != len([]rune(trimmed)) {
		return plan.Dimension{}, fmt.Errorf("%w: %q", ErrNotDimension, text)
	}
	return tokens[0].Dimension(), nil
}

// Dimension converts the token to an unanchored dimension record
func (t Token) Dimension() plan.Dimension {
	d := plan.Dimension{
		RawText:       t.Raw,
		Feet:          t.Feet,
		Inches:        t.Inches,
		IsApproximate: t.Approx,
		TotalInches:   t.TotalInches(),
	}
	if t.Fraction != nil {
		f := *t.Fraction
		d.Fraction = &f
	}
	return d
}

// Scan finds every measurement in text in one left-to-right pass. Plain
// numbers are skipped silently; only candidates that reached a foot or inch
// mark and then failed are returned as failures.
func Scan(text string) ([]Token, []*ParseError) {
	s := scanner{rs: []rune(text)}
	var tokens []Token
	var failures []*ParseError

	for s.pos < len(s.rs) {
		tok, end, err := s.at(s.pos)
		switch {
		case err != nil:
			failures = append(failures, err)
			s.pos = end
		case tok != nil:
			tokens = append(tokens, *tok)
			s.pos = end
		default:
			s.pos = max(end, s.pos+1)
		}
	}
	return tokens, failures
}

type scanner struct {
	rs  []rune
	pos int
}

// at reads the measurement starting at start. With neither a token nor an
// error, the returned end, when past start, is where scanning resumes.
func (s *scanner) at(start int) (*Token, int, *ParseError) {
	rs := s.rs
	j := start
	approx := false
	switch {
	case rs[j] == '±':
		approx = true
		j = s.skipSpaces(j + 1)
	case s.hasPrefix(j, "+/-"):
		approx = true
		j = s.skipSpaces(j + 3)
	}
	if j >= len(rs) || !isDigit(rs[j]) {
		return nil, 0, nil
	}
	if !approx && s.glued(start) {
		// a number glued to a word, like L30'-6", is not read, and neither is
		// any of its tail
		if tok, end, err := s.measure(start, j, false); tok != nil || err != nil {
			return nil, end, nil
		}
		_, end, _ := s.readInt(j)
		return nil, end, nil
	}
	return s.measure(start, j, approx)
}

// glued reports whether the rune before start ties it to a preceding word.
// A times sign between two measurements, as in 25'-0"x30'-6", does not.
func (s *scanner) glued(start int) bool {
	if start == 0 || !isWordRune(s.rs[start-1]) {
		return false
	}
	if !isTimes(s.rs[start-1]) {
		return true
	}
	if start == 1 {
		return false
	}
	before := s.rs[start-2]
	return !(before == ' ' || before == '"' || before == '”' || before == '″' || isFootMark(before))
}

// measure reads the grammar from the first digit at j
func (s *scanner) measure(start, j int, approx bool) (*Token, int, *ParseError) {
	rs := s.rs
	n1, j, ok := s.readInt(j)
	if !ok {
		return nil, 0, nil
	}
	if j < len(rs) && (rs[j] == '.' || rs[j] == ',') && j+1 < len(rs) && isDigit(rs[j+1]) {
		// decimal numbers are not part of the grammar
		return nil, 0, nil
	}

	tok := &Token{Start: start, Approx: approx}
	fail := func(end int, reason string) (*Token, int, *ParseError) {
		return nil, max(end, start+1), &ParseError{Raw: string(rs[start:min(end, len(rs))]), Reason: reason}
	}

	// bare fraction of an inch, 5/8"
	if j < len(rs) && rs[j] == '/' {
		den, p, ok := s.readInt(j + 1)
		if !ok {
			return nil, 0, nil
		}
		m := s.inchMark(s.skipSpaces(p))
		if m == 0 {
			return nil, 0, nil
		}
		end := s.skipSpaces(p) + m
		tok.Fraction = &plan.Fraction{Numerator: n1, Denominator: den}
		tok.Form = FormInches
		if reason := checkFraction(tok.Fraction); reason != "" {
			return fail(end, reason)
		}
		return s.finish(tok, end), end, nil
	}

	k := s.skipSpaces(j)
	if m := s.inchMark(k); m > 0 {
		tok.Inches, tok.Form = n1, FormInches
		return s.finish(tok, k+m), k + m, nil
	}
	if frac, p, found := s.readFraction(j); found {
		q := s.skipSpaces(p)
		if m := s.inchMark(q); m > 0 {
			tok.Inches, tok.Fraction, tok.Form = n1, frac, FormInches
			if reason := checkFraction(frac); reason != "" {
				return fail(q+m, reason)
			}
			return s.finish(tok, q+m), q + m, nil
		}
		return nil, 0, nil
	}
	if k >= len(rs) || !isFootMark(rs[k]) {
		return nil, 0, nil
	}

	tok.Feet = n1
	feetEnd := k + 1
	p := s.skipSpaces(feetEnd)
	dash := false
	if p < len(rs) && rs[p] == '-' {
		dash = true
		p = s.skipSpaces(p + 1)
	}
	if p >= len(rs) || !isDigit(rs[p]) {
		if dash {
			return fail(p, "missing inches after dash")
		}
		tok.Form = FormFeet
		return s.finish(tok, feetEnd), feetEnd, nil
	}

	inches, p, ok := s.readInt(p)
	if !ok {
		return fail(p, "inches too long")
	}
	frac, p2, hasFrac := s.readFraction(p)
	if hasFrac {
		p = p2
	}
	q := s.skipSpaces(p)
	m := s.inchMark(q)
	if m == 0 {
		if !dash {
			// "25' 6 PIECES": the feet stand alone
			tok.Form = FormFeet
			return s.finish(tok, feetEnd), feetEnd, nil
		}
		return fail(p, "missing inch mark")
	}
	end := q + m
	if hasFrac {
		if reason := checkFraction(frac); reason != "" {
			return fail(end, reason)
		}
		tok.Fraction = frac
	}
	if inches >= 12 {
		return fail(end, fmt.Sprintf("%d inches with a feet component", inches))
	}
	tok.Inches, tok.Form = inches, FormFull
	return s.finish(tok, end), end, nil
}

func (s *scanner) finish(tok *Token, end int) *Token {
	tok.End = end
	tok.Raw = string(s.rs[tok.Start:end])
	return tok
}

func checkFraction(f *plan.Fraction) string {
	switch {
	case f.Denominator == 0:
		return "zero denominator"
	case f.Numerator >= f.Denominator:
		return "improper fraction"
	}
	return ""
}

// readFraction reads " n/d" after at least one space
func (s *scanner) readFraction(p int) (*plan.Fraction, int, bool) {
	q := s.skipSpaces(p)
	if q == p || q >= len(s.rs) || !isDigit(s.rs[q]) {
		return nil, p, false
	}
	num, q, ok := s.readInt(q)
	if !ok || q >= len(s.rs) || s.rs[q] != '/' {
		return nil, p, false
	}
	den, q, ok := s.readInt(q + 1)
	if !ok {
		return nil, p, false
	}
	return &plan.Fraction{Numerator: num, Denominator: den}, q, true
}

func (s *scanner) readInt(p int) (int, int, bool) {
	n, digits := 0, 0
	for p < len(s.rs) && isDigit(s.rs[p]) {
		n = n*10 + int(s.rs[p]-'0')
		digits++
		p++
	}
	return n, p, digits > 0 && digits <= maxDigits
}

func (s *scanner) skipSpaces(p int) int {
	for p < len(s.rs) && (s.rs[p] == ' ' || s.rs[p] == '\t' || s.rs[p] == '\u00a0') {
		p++
	}
	return p
}

// inchMark returns the rune length of the inch mark at p, or 0
func (s *scanner) inchMark(p int) int {
	if p >= len(s.rs) {
		return 0
	}
	switch s.rs[p] {
	case '"', '”', '″':
		return 1
	}
	if isFootMark(s.rs[p]) && p+1 < len(s.rs) && isFootMark(s.rs[p+1]) {
		return 2
	}
	return 0
}

func (s *scanner) hasPrefix(p int, prefix string) bool {
	for _, r := range prefix {
		if p >= len(s.rs) || s.rs[p] != r {
			return false
		}
		p++
	}
	return true
}

func isFootMark(r rune) bool {
	return r == '\'' || r == '’' || r == '′'
}

func isTimes(r rune) bool {
	return r == 'x' || r == 'X' || r == '×'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '/'
}
