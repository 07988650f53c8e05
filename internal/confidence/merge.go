package confidence

import (
	"math"
	"sort"
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// PageEntities are the detector outputs of one page, as handed to the merge
type PageEntities struct {
	Page       int
	Rooms      []plan.Room
	Dimensions []plan.Dimension
	Doors      []plan.Door
}

// Conflict records a room id whose constituents disagree on the room name
type Conflict struct {
	RoomID string   `json:"room_id"`
	Names  []string `json:"names"`
	Pages  []int    `json:"pages"`
}

// Merged is the whole-project entity set
type Merged struct {
	Rooms      []plan.Room
	Dimensions []plan.Dimension
	Doors      []plan.Door
	Conflicts  []Conflict
}

// Merger collapses per-page candidates into project entities. Room ids are
// unique in the result.
type Merger struct {
	weights        plan.ConfidenceSettings
	nameSimilarity float64
	vocab          *vocab.Vocabulary
}

// NewMerger creates a merger. A nil vocabulary means the built-in one.
func NewMerger(settings plan.Settings, v *vocab.Vocabulary) *Merger {
	if v == nil {
		v = vocab.Default()
	}
	return &Merger{weights: settings.Confidence, nameSimilarity: settings.Validation.NameSimilarity, vocab: v}
}

// Merge runs over every page's entities in page order. Inputs are not modified.
// Door room ids are rewritten to the id of the merged room they name, or
// cleared when no merged room carries it.
func (m *Merger) Merge(pages []PageEntities) Merged {
	ordered := make([]PageEntities, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Page < ordered[j].Page })

	var out Merged
	var aliases []map[string]string
	out.Rooms, out.Conflicts, aliases = m.mergeRooms(ordered)
	out.Dimensions = m.mergeDimensions(ordered)

	byKey := make(map[string]string, len(out.Rooms))
	for _, r := range out.Rooms {
		byKey[vocab.IDKey(r.ID)] = r.ID
	}
	for i, p := range ordered {
		for _, d := range p.Doors {
			if d.RoomID != "" {
				id := d.RoomID
				if kept, ok := aliases[i][id]; ok {
					id = kept
				}
				d.RoomID = byKey[vocab.IDKey(id)]
			}
			out.Doors = append(out.Doors, d)
		}
	}
	return out
}

// mergeRooms groups rooms by id key across pages. aliases[i] maps the ids
// folded away on pages[i] to the id that absorbed them.
func (m *Merger) mergeRooms(pages []PageEntities) ([]plan.Room, []Conflict, []map[string]string) {
	groups := make(map[string][]plan.Room)
	var order []string
	aliases := make([]map[string]string, len(pages))
	for i, p := range pages {
		var kept []plan.Room
		kept, aliases[i] = m.collapsePage(p.Rooms)
		for _, r := range kept {
			key := vocab.IDKey(r.ID)
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], r)
		}
	}

	var rooms []plan.Room
	var conflicts []Conflict
	for _, key := range order {
		room, conflict := m.mergeRoom(groups[key])
		rooms = append(rooms, room)
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Page != rooms[j].Page {
			return rooms[i].Page < rooms[j].Page
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, conflicts, aliases
}

// collapsePage folds candidates of one page that sit at the same place and
// read as the same id, such as "204" and "B-204" printed twice on one label.
// The map sends each folded id to the id kept in its place.
func (m *Merger) collapsePage(rooms []plan.Room) ([]plan.Room, map[string]string) {
	var kept []plan.Room
	owner := make([]int, len(rooms))
	for i, r := range rooms {
		dup := -1
		for j, k := range kept {
			if m.samePlace(r, k) && sameID(r.ID, k.ID) {
				dup = j
				break
			}
		}
		if dup < 0 {
			owner[i] = len(kept)
			kept = append(kept, r)
			continue
		}
		owner[i] = dup
		if better(r, kept[dup]) {
			kept[dup] = r
		}
	}

	keptIDs := make(map[string]bool, len(kept))
	for _, k := range kept {
		keptIDs[k.ID] = true
	}
	aliases := make(map[string]string)
	for i, r := range rooms {
		if id := kept[owner[i]].ID; id != r.ID && !keptIDs[r.ID] {
			aliases[r.ID] = id
		}
	}
	return kept, aliases
}

func (m *Merger) samePlace(a, b plan.Room) bool {
	if a.LabelBBox.Center().Distance(b.LabelBBox.Center()) <= m.weights.DuplicateRadius {
		return true
	}
	return a.LabelBBox.OverlapRatio(b.LabelBBox) > 0
}

// sameID holds when the id keys are equal or one is the other with a block prefix
func sameID(a, b string) bool {
	ka, kb := vocab.IDKey(a), vocab.IDKey(b)
	if ka == kb {
		return true
	}
	if len(ka) < len(kb) {
		ka, kb = kb, ka
	}
	return len(ka) == len(kb)+1 && strings.HasSuffix(ka, kb) && ka[0] >= 'A' && ka[0] <= 'Z'
}

// better prefers higher confidence, then the block-qualified id
func better(a, b plan.Room) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return len(a.ID) > len(b.ID)
}

func (m *Merger) mergeRoom(constituents []plan.Room) (plan.Room, *Conflict) {
	sort.SliceStable(constituents, func(i, j int) bool {
		if constituents[i].Confidence != constituents[j].Confidence {
			return constituents[i].Confidence > constituents[j].Confidence
		}
		return constituents[i].Page < constituents[j].Page
	})

	merged := constituents[0]
	pages := make(map[int]bool)
	for _, c := range constituents {
		pages[c.Page] = true
		for _, p := range c.SourcePages {
			pages[p] = true
		}
	}
	merged.SourcePages = sortedPages(pages)

	// the best named constituent names the room
	if merged.Name == "" {
		for _, c := range constituents[1:] {
			if c.Name != "" {
				merged.Name, merged.RawName, merged.NameSubstituted, merged.Type = c.Name, c.RawName, c.NameSubstituted, c.Type
				break
			}
		}
	}
	if merged.Dimensions == nil {
		for _, c := range constituents[1:] {
			if c.Dimensions != nil {
				merged.Dimensions = c.Dimensions
				break
			}
		}
	}

	var names []string
	seen := make(map[string]bool)
	agree := true
	for _, c := range constituents {
		if c.Name == "" {
			continue
		}
		if !m.namesAgree(c.Name, merged.Name) {
			agree = false
		}
		if key := vocab.Key(c.Name); !seen[key] {
			seen[key] = true
			names = append(names, c.Name)
		}
	}

	if !agree {
		return merged, &Conflict{RoomID: merged.ID, Names: names, Pages: merged.SourcePages}
	}
	merged.Confidence = plan.Clamp01(merged.Confidence + Bonus(m.weights, len(distinctPages(constituents))))
	return merged, nil
}

func (m *Merger) namesAgree(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return m.vocab.Equivalent(a, b) || vocab.Similarity(a, b) >= m.nameSimilarity
}

type dimensionKey struct {
	total int64
	x, y  int64
}

func (m *Merger) mergeDimensions(pages []PageEntities) []plan.Dimension {
	grid := m.weights.PositionGrid
	if grid <= 0 {
		grid = 1
	}
	groups := make(map[dimensionKey][]plan.Dimension)
	var order []dimensionKey
	for _, p := range pages {
		for _, d := range p.Dimensions {
			c := d.BBox.Center()
			key := dimensionKey{
				total: int64(math.Round(d.TotalInches * 1e6)),
				x:     int64(math.Round(c.X / grid)),
				y:     int64(math.Round(c.Y / grid)),
			}
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], d)
		}
	}

	out := make([]plan.Dimension, 0, len(order))
	for _, key := range order {
		group := groups[key]
		best := group[0]
		pages := make(map[int]bool)
		for _, d := range group {
			pages[d.Page] = true
			if d.Confidence > best.Confidence {
				best = d
			}
		}
		best.SourcePages = sortedPages(pages)
		best.Confidence = plan.Clamp01(best.Confidence + Bonus(m.weights, len(pages)))
		out = append(out, best)
	}
	return out
}

func distinctPages(rooms []plan.Room) map[int]bool {
	pages := make(map[int]bool)
	for _, r := range rooms {
		pages[r.Page] = true
	}
	return pages
}

func sortedPages(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
