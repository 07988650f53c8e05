package dimension

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		text string
		want plan.Dimension
	}{
		{
			text: `25'-6"`,
			want: plan.Dimension{RawText: `25'-6"`, Feet: 25, Inches: 6, TotalInches: 306},
		},
		{
			text: `±8'-0"`,
			want: plan.Dimension{RawText: `±8'-0"`, Feet: 8, TotalInches: 96, IsApproximate: true},
		},
		{
			text: `12'-6 5/8"`,
			want: plan.Dimension{
				RawText: `12'-6 5/8"`, Feet: 12, Inches: 6,
				Fraction: &plan.Fraction{Numerator: 5, Denominator: 8}, TotalInches: 150.625,
			},
		},
		{
			text: `25'`,
			want: plan.Dimension{RawText: `25'`, Feet: 25, TotalInches: 300},
		},
		{
			text: `6"`,
			want: plan.Dimension{RawText: `6"`, Inches: 6, TotalInches: 6},
		},
		{
			text: `  3’-4”  `,
			want: plan.Dimension{RawText: `3’-4”`, Feet: 3, Inches: 4, TotalInches: 40},
		},
		{
			text: `10' 11''`,
			want: plan.Dimension{RawText: `10' 11''`, Feet: 10, Inches: 11, TotalInches: 131},
		},
		{
			text: `+/- 4'-2"`,
			want: plan.Dimension{RawText: `+/- 4'-2"`, Feet: 4, Inches: 2, TotalInches: 50, IsApproximate: true},
		},
		{
			text: `5/8"`,
			want: plan.Dimension{RawText: `5/8"`, Fraction: &plan.Fraction{Numerator: 5, Denominator: 8}, TotalInches: 0.625},
		},
		{
			text: `1 1/2"`,
			want: plan.Dimension{RawText: `1 1/2"`, Inches: 1, Fraction: &plan.Fraction{Numerator: 1, Denominator: 2}, TotalInches: 1.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestTotalInchesMatchesParts(t *testing.T) {
	for feet := 0; feet <= 40; feet += 7 {
		for inches := 0; inches < 12; inches++ {
			for _, frac := range []plan.Fraction{{Numerator: 1, Denominator: 2}, {Numerator: 3, Denominator: 8}, {Numerator: 15, Denominator: 16}} {
				text := formatDimension(feet, inches, frac)
				d, err := Parse(text)
				require.NoError(t, err, text)
				want := float64(feet*12+inches) + float64(frac.Numerator)/float64(frac.Denominator)
				assert.InDelta(t, want, d.TotalInches, 1e-6, text)
				assert.False(t, d.IsApproximate)
			}
		}
	}
}

func formatDimension(feet, inches int, frac plan.Fraction) string {
	return fmt.Sprintf(`%d'-%d %d/%d"`, feet, inches, frac.Numerator, frac.Denominator)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		text   string
		reason string
	}{
		{`12'-6`, "missing inch mark"},
		{`12'-`, "missing inches after dash"},
		{`12'-14"`, "14 inches with a feet component"},
		{`3'-2 5/0"`, "zero denominator"},
		{`3'-2 9/8"`, "improper fraction"},
		{`7/0"`, "zero denominator"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := Parse(tt.text)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.reason, perr.Reason)
		})
	}
}

func TestParseNotDimension(t *testing.T) {
	for _, text := range []string{"", "CLASSE 204", "PHOTO 5/100", "12.5'", `25'-6" TYP.`} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrNotDimension, text)
	}
}

func TestScanEmbedded(t *testing.T) {
	tokens, failures := Scan(`25'-0" x 30'-6" TYP. PHOTO 5/100 12'-6 A12' 2024`)

	require.Len(t, failures, 1)
	assert.Equal(t, `12'-6`, failures[0].Raw)

	require.Len(t, tokens, 2)
	assert.Equal(t, `25'-0"`, tokens[0].Raw)
	assert.Equal(t, FormFull, tokens[0].Form)
	assert.Equal(t, `30'-6"`, tokens[1].Raw)
	assert.InDelta(t, 366, tokens[1].TotalInches(), 1e-9)
}

func TestScanFeetFollowedByCount(t *testing.T) {
	tokens, failures := Scan(`25' 6 PIECES`)
	assert.Empty(t, failures)
	require.Len(t, tokens, 1)
	assert.Equal(t, FormFeet, tokens[0].Form)
	assert.Equal(t, `25'`, tokens[0].Raw)
}

func TestScanGluedText(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{`25'-0"x30'-6"`, []string{`25'-0"`, `30'-6"`}},
		{`12'×10'`, []string{`12'`, `10'`}},
		{`25'-0" X 30'-6"`, []string{`25'-0"`, `30'-6"`}},
		{`L30'-6" 8"`, []string{`8"`}},
		{`BOX30'-6"`, nil},
		{`A12'-6 5/8"`, nil},
		{`MUR2x4`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			tokens, failures := Scan(tt.text)
			assert.Empty(t, failures)
			var got []string
			for _, tok := range tokens {
				got = append(got, tok.Raw)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
