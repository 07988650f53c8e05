package contentstream

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func tokens(t *testing.T, src string) []Token {
	t.Helper()
	lex := NewLexer(strings.NewReader(src))
	var out []Token
	for {
		tok, err := lex.Next()
		require.NoError(t, err)
		if tok.Type == TokenEOF {
			return out
		}
		out = append(out, tok)
	}
}

func TestLexer(t *testing.T) {
	toks := tokens(t, "% comment\n1 0 0 -1.5 .5 -3 cm /F1#20x 12 Tf (a\\(b\\)c\\101) Tj <48 65 6> Tj [(x) -250 (y)] TJ << /MCID 3 >> BDC")

	var kinds []TokenType
	var values []string
	for _, tok := range toks {
		kinds = append(kinds, tok.Type)
		values = append(values, tok.Value)
	}
	assert.Equal(t, []TokenType{
		TokenNumber, TokenNumber, TokenNumber, TokenNumber, TokenNumber, TokenNumber, TokenOperator,
		TokenName, TokenNumber, TokenOperator,
		TokenString, TokenOperator,
		TokenHexString, TokenOperator,
		TokenArrayStart, TokenString, TokenNumber, TokenString, TokenArrayEnd, TokenOperator,
		TokenDictStart, TokenName, TokenNumber, TokenDictEnd, TokenOperator,
	}, kinds)
	assert.Equal(t, "F1 x", values[7])
	assert.Equal(t, "a(b)cA", values[10])
	assert.Equal(t, "486560", values[12])

	v, ok := toks[3].Number()
	require.True(t, ok)
	assert.Equal(t, -1.5, v)
	v, _ = toks[4].Number()
	assert.Equal(t, 0.5, v)
}

func TestLexerSkipsInlineImages(t *testing.T) {
	toks := tokens(t, "BI /W 2 /H 1 ID \x00\xffEIx\x01 EI 10 20 m")
	var ops []string
	for _, tok := range toks {
		if tok.Type == TokenOperator {
			ops = append(ops, tok.Value)
		}
	}
	assert.Equal(t, []string{"BI", "ID", "m"}, ops)
}

func TestLexerErrors(t *testing.T) {
	_, err := NewLexer(strings.NewReader("<4G>")).Next()
	assert.Error(t, err)

	_, err = NewLexer(strings.NewReader("(open")).Next()
	assert.Error(t, err)
}

func extract(t *testing.T, src string) ([]plan.RawPath, Stats) {
	t.Helper()
	paths, stats, err := Extract(strings.NewReader(src), Identity())
	require.NoError(t, err)
	return paths, stats
}

func pt(x, y float64) plan.Point {
	return plan.Point{X: x, Y: y}
}

func TestRectangle(t *testing.T) {
	paths, stats := extract(t, "2 w 10 20 100 50 re S")
	require.Len(t, paths, 1)
	want := plan.RawPath{
		Kind:        plan.PathRect,
		Points:      []plan.Point{pt(10, 20), pt(110, 20), pt(110, 70), pt(10, 70)},
		Closed:      true,
		StrokeWidth: 2,
	}
	if diff := cmp.Diff(want, paths[0]); diff != "" {
		t.Errorf("rect mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, stats.Operators)
	assert.Equal(t, 1, stats.Painted)
}

func TestOpenPolylineSplitsIntoLines(t *testing.T) {
	paths, _ := extract(t, "0 0 m 100 0 l 100 100 l S")
	require.Len(t, paths, 2)
	assert.Equal(t, []plan.Point{pt(0, 0), pt(100, 0)}, paths[0].Points)
	assert.Equal(t, []plan.Point{pt(100, 0), pt(100, 100)}, paths[1].Points)
	assert.Equal(t, plan.PathLine, paths[1].Kind)
}

func TestClosedPolylineStaysWhole(t *testing.T) {
	paths, _ := extract(t, "0 0 m 100 0 l 50 80 l h f")
	require.Len(t, paths, 1)
	assert.Equal(t, plan.PathPolyline, paths[0].Kind)
	assert.True(t, paths[0].Closed)
	assert.Equal(t, []plan.Point{pt(0, 0), pt(100, 0), pt(50, 80)}, paths[0].Points)
}

func TestDoorLeafAndSwing(t *testing.T) {
	// leaf from the hinge, then a quarter circle back to the wall
	paths, _ := extract(t, "0 0 m 0 36 l 19.88 36 36 19.88 36 0 c S")
	require.Len(t, paths, 2)
	assert.Equal(t, plan.PathLine, paths[0].Kind)
	assert.Equal(t, plan.PathCurve, paths[1].Kind)
	assert.Equal(t, []plan.Point{pt(0, 36), pt(19.88, 36), pt(36, 19.88), pt(36, 0)}, paths[1].Points)
}

func TestChainedCurvesBecomeOnePolyline(t *testing.T) {
	b := NewBuilder(Identity())
	b.CurveSamples = 4
	require.NoError(t, b.Run(strings.NewReader("36 0 m 36 10 30 20 25.46 25.46 c 20 30 10 36 0 36 c S")))
	paths := b.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, plan.PathPolyline, paths[0].Kind)
	require.Len(t, paths[0].Points, 9)
	assert.Equal(t, pt(36, 0), paths[0].Points[0])
	assert.InDelta(t, 25.46, paths[0].Points[4].X, 1e-9)
	assert.InDelta(t, 36, paths[0].Points[8].Y, 1e-9)
}

func TestShorthandCurves(t *testing.T) {
	paths, _ := extract(t, "0 0 m 10 10 20 0 v S 0 0 m 5 5 20 0 y S")
	require.Len(t, paths, 2)
	assert.Equal(t, []plan.Point{pt(0, 0), pt(0, 0), pt(10, 10), pt(20, 0)}, paths[0].Points)
	assert.Equal(t, []plan.Point{pt(0, 0), pt(5, 5), pt(20, 0), pt(20, 0)}, paths[1].Points)
}

func TestTransformAndGraphicsState(t *testing.T) {
	paths, _ := extract(t, "q 2 0 0 2 100 100 cm 0.5 w 0 0 m 10 0 l S Q 0 0 m 10 0 l S")
	require.Len(t, paths, 2)
	assert.Equal(t, []plan.Point{pt(100, 100), pt(120, 100)}, paths[0].Points)
	assert.Equal(t, 1.0, paths[0].StrokeWidth)
	// Q restored the identity and the default width
	assert.Equal(t, []plan.Point{pt(0, 0), pt(10, 0)}, paths[1].Points)
	assert.Equal(t, 1.0, paths[1].StrokeWidth)
}

func TestBaseMatrix(t *testing.T) {
	paths, _, err := Extract(strings.NewReader("10 10 m 20 10 l S"), Translate(-10, -10))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []plan.Point{pt(0, 0), pt(10, 0)}, paths[0].Points)
}

func TestClipAndDiscard(t *testing.T) {
	paths, stats := extract(t, "0 0 612 792 re W n 0 0 m 5 5 l S")
	require.Len(t, paths, 1)
	assert.Equal(t, 1, stats.Discarded)
}

func TestTextAndUnknownOperators(t *testing.T) {
	paths, stats := extract(t, "BT /F1 12 Tf 10 10 Td [(A) 120 (B)] TJ ET /Im1 Do 1 2 zz")
	assert.Empty(t, paths)
	assert.Equal(t, 1, stats.XObjects)
	assert.Equal(t, 1, stats.Unknown)
}

func TestMissingOperandsAreIgnored(t *testing.T) {
	paths, _ := extract(t, "0 m 5 l 0 0 m 10 0 l S")
	require.Len(t, paths, 1)
	assert.Equal(t, []plan.Point{pt(0, 0), pt(10, 0)}, paths[0].Points)
}

func TestMatrix(t *testing.T) {
	scale := Matrix{2, 0, 0, 3, 0, 0}
	move := Translate(5, 7)
	assert.Equal(t, pt(7, 10), scale.Multiply(move).Apply(pt(1, 1)))
	assert.Equal(t, pt(12, 24), move.Multiply(scale).Apply(pt(1, 1)))
	assert.InDelta(t, math.Sqrt(6), scale.Scale(), 1e-12)
}
