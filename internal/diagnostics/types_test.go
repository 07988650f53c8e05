package diagnostics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func TestTypeSeverityAndOutcome(t *testing.T) {
	tests := []struct {
		typ      Type
		name     string
		severity Severity
		outcome  string
	}{
		{TypeParseFailure, "ParseFailure", SeverityWarning, "entity skipped"},
		{TypeGeometryFitFailure, "GeometryFitFailure", SeverityInfo, "entity kept at reduced confidence"},
		{TypePageProcessingFailure, "PageProcessingFailure", SeverityError, "page skipped"},
		{TypeInsufficientReferenceData, "InsufficientReferenceData", SeverityWarning, "status inconclusive"},
		{TypeNameConflict, "NameConflict", SeverityWarning, "best name kept without agreement bonus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.typ.String())
			assert.Equal(t, tt.severity, tt.typ.Severity())
			assert.Equal(t, tt.outcome, tt.typ.Outcome())
			assert.Equal(t, tt.typ, ParseType(tt.name))
		})
	}
	assert.Equal(t, TypeUnknown, ParseType("nope"))
}

func TestDiagnosticJSON(t *testing.T) {
	d := New(TypeParseFailure, 3, "missing inch mark").WithText(`12'-6`).WithBBox(plan.BBox{X1: 10, Y1: 4})

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"ParseFailure"`)

	var back Diagnostic
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, TypeParseFailure, back.Type)
	assert.Equal(t, `12'-6`, back.RawText)
	assert.Equal(t, "[ParseFailure] page 3: missing inch mark", d.Error())
}

func TestCollection(t *testing.T) {
	c := NewCollection()
	assert.Equal(t, "No diagnostics", c.Summary())

	c.Add(New(TypePageProcessingFailure, 5, "unreadable"))
	c.Add(nil)
	other := NewCollection()
	other.Add(New(TypeParseFailure, 2, "bad token"))
	other.Add(New(TypeGeometryFitFailure, 2, "fallback bbox"))
	c.Merge(other)

	require.Equal(t, 3, c.Len())
	items := c.Items()
	assert.Equal(t, 2, items[0].Page)
	assert.Equal(t, TypeParseFailure, items[0].Type)
	assert.Equal(t, 5, items[2].Page)

	errs, warns := c.Count()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 1, warns)
	assert.Equal(t, map[string]int{"PageProcessingFailure": 1, "ParseFailure": 1, "GeometryFitFailure": 1}, c.CountByType())
	assert.Equal(t, "3 diagnostic(s): 1 error(s), 1 warning(s)", c.Summary())
}
