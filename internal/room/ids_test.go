package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/rules"
)

func TestParseID(t *testing.T) {
	patterns := rules.Defaults().RoomNumbers

	tests := []struct {
		token     string
		canonical string
		block     string
		floor     string
		seq       string
		suffix    string
	}{
		{"204", "204", "", "2", "04", ""},
		{"1204", "1204", "", "12", "04", ""},
		{"A-204", "A-204", "A", "2", "04", ""},
		{"B105", "B-105", "B", "1", "05", ""},
		{"204A", "204-A", "", "2", "04", "A"},
		{"204-1", "204-1", "", "2", "04", "1"},
		{"204.2", "204-2", "", "2", "04", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			id, ok := ParseID(tt.token, patterns)
			require.True(t, ok)
			assert.Equal(t, tt.canonical, id.Canonical())
			assert.Equal(t, tt.block, id.Block)
			assert.Equal(t, tt.floor, id.Floor)
			assert.Equal(t, tt.seq, id.Sequence)
			assert.Equal(t, tt.suffix, id.Suffix)
		})
	}

	for _, token := range []string{"20", "CLASSE", "12345", "P-12"} {
		_, ok := ParseID(token, patterns)
		assert.False(t, ok, token)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("A-204"), Key("a204"))
	assert.Equal(t, "A204", Key("A 204"))
	assert.NotEqual(t, Key("A-204"), Key("B-204"))
}
