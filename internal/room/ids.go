package room

import (
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/rules"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// ID is a room number read from a label
type ID struct {
	Block    string
	Number   string
	Floor    string
	Sequence string
	Suffix   string
	// Pattern names the rule that matched and Strength is its weight.
	Pattern  string
	Strength float64
}

// Canonical returns the project-wide id, [BLOCK-]NUMBER[-SUFFIX]
func (id ID) Canonical() string {
	var b strings.Builder
	if id.Block != "" {
		b.WriteString(id.Block)
		b.WriteByte('-')
	}
	b.WriteString(id.Number)
	if id.Suffix != "" {
		b.WriteByte('-')
		b.WriteString(id.Suffix)
	}
	return b.String()
}

// Key reduces an id to its comparison form. "A-204" and "a204" share a key,
// "204-1" and "2041" do not.
func Key(id string) string {
	return vocab.IDKey(id)
}

// ParseID matches one token against the room number patterns in order.
// The token is expected folded to upper case.
func ParseID(token string, patterns []rules.RoomPattern) (ID, bool) {
	for _, p := range patterns {
		m := p.Expr.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		group := func(name string) string {
			if i := p.Expr.SubexpIndex(name); i >= 0 && i < len(m) {
				return m[i]
			}
			return ""
		}

		id := ID{
			Block:    group("block"),
			Suffix:   strings.TrimLeft(group("suffix"), "-."),
			Pattern:  p.Name,
			Strength: p.Strength,
		}
		if number := group("number"); number != "" {
			id.Number = number
		} else {
			id.Number = group("floor") + group("seq")
		}
		if id.Number == "" {
			continue
		}
		id.Floor, id.Sequence = splitNumber(id.Number)
		if floor := group("floor"); floor != "" {
			id.Floor, id.Sequence = floor, group("seq")
		}
		return id, true
	}
	return ID{}, false
}

// splitNumber takes the last two digits as the sequence and the rest as the floor
func splitNumber(number string) (floor, seq string) {
	if len(number) <= 2 {
		return "", number
	}
	return number[:len(number)-2], number[len(number)-2:]
}
