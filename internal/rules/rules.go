package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/vocab"
)

// RoomPattern matches one room-number token. The expression must define a
// "number" group, or "floor" and "seq" groups; "block" and "suffix" are optional.
type RoomPattern struct {
	Name     string
	Expr     *regexp.Regexp
	Strength float64
}

// Rules is the compiled pattern table consulted by the room and door detectors
// and the page classifier. It is read-only once built.
type Rules struct {
	Version      string
	RoomNumbers  []RoomPattern
	Deny         []*regexp.Regexp
	DoorLabels   []*regexp.Regexp
	BlockContext []*regexp.Regexp
	Vocabulary   *vocab.Vocabulary
	PageKeywords map[plan.PageType]map[string]float64
}

// PatternSpec is the file form of a RoomPattern
type PatternSpec struct {
	Name     string  `yaml:"name" json:"name"`
	Pattern  string  `yaml:"pattern" json:"pattern"`
	Strength float64 `yaml:"strength" json:"strength"`
}

// File is the on-disk override table. JSON is accepted as well since it is
// valid YAML. Non-empty sections replace the built-in ones; room names are
// appended to the built-in vocabulary unless ReplaceRoomNames is set.
type File struct {
	Version            string                        `yaml:"version" json:"version"`
	RoomNumberPatterns []PatternSpec                 `yaml:"room_number_patterns" json:"room_number_patterns"`
	DenyPatterns       []string                      `yaml:"deny_patterns" json:"deny_patterns"`
	DoorLabelPatterns  []string                      `yaml:"door_label_patterns" json:"door_label_patterns"`
	BlockPatterns      []string                      `yaml:"block_patterns" json:"block_patterns"`
	RoomNames          []vocab.Group                 `yaml:"room_names" json:"room_names"`
	ReplaceRoomNames   bool                          `yaml:"replace_room_names" json:"replace_room_names"`
	PageKeywords       map[string]map[string]float64 `yaml:"page_keywords" json:"page_keywords"`
}

var errNoNumberGroup = errors.New(`room pattern needs a "number" group or "floor" and "seq" groups`)

// Defaults returns the built-in rules
func Defaults() *Rules {
	r, err := compile(defaultFile())
	if err != nil {
		// the built-in table is covered by tests
		panic(fmt.Sprintf("rules: invalid built-in table: %v", err))
	}
	return r
}

// Load reads an override table from path and merges it over the defaults.
func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes an override table and merges it over the defaults.
func Parse(r io.Reader) (*Rules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Defaults(), nil
	}

	var override File
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("invalid rules table: %w", err)
	}
	return compile(merge(defaultFile(), override))
}

func merge(base, override File) File {
	if override.Version != "" {
		base.Version = override.Version
	}
	if len(override.RoomNumberPatterns) > 0 {
		base.RoomNumberPatterns = override.RoomNumberPatterns
	}
	if len(override.DenyPatterns) > 0 {
		base.DenyPatterns = override.DenyPatterns
	}
	if len(override.DoorLabelPatterns) > 0 {
		base.DoorLabelPatterns = override.DoorLabelPatterns
	}
	if len(override.BlockPatterns) > 0 {
		base.BlockPatterns = override.BlockPatterns
	}
	if override.ReplaceRoomNames {
		base.RoomNames = override.RoomNames
	} else {
		base.RoomNames = append(base.RoomNames, override.RoomNames...)
	}
	for typ, keywords := range override.PageKeywords {
		base.PageKeywords[typ] = keywords
	}
	return base
}

func compile(f File) (*Rules, error) {
	r := &Rules{
		Version:      f.Version,
		Vocabulary:   vocab.New(f.RoomNames),
		PageKeywords: make(map[plan.PageType]map[string]float64),
	}

	for _, spec := range f.RoomNumberPatterns {
		expr, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("room pattern %q: %w", spec.Name, err)
		}
		if !hasNumberGroups(expr) {
			return nil, fmt.Errorf("room pattern %q: %w", spec.Name, errNoNumberGroup)
		}
		strength := spec.Strength
		if strength <= 0 || strength > 1 {
			strength = 1
		}
		r.RoomNumbers = append(r.RoomNumbers, RoomPattern{Name: spec.Name, Expr: expr, Strength: strength})
	}

	var err error
	if r.Deny, err = compileAll("deny", f.DenyPatterns); err != nil {
		return nil, err
	}
	if r.DoorLabels, err = compileAll("door label", f.DoorLabelPatterns); err != nil {
		return nil, err
	}
	if r.BlockContext, err = compileAll("block", f.BlockPatterns); err != nil {
		return nil, err
	}

	for name, keywords := range f.PageKeywords {
		typ := plan.PageType(name)
		if !validPageType(typ) || typ == plan.PageOther {
			return nil, fmt.Errorf("page keywords: unknown page type %q", name)
		}
		r.PageKeywords[typ] = make(map[string]float64, len(keywords))
		for kw, w := range keywords {
			key := vocab.Key(kw)
			if key == "" || w <= 0 {
				continue
			}
			// accented and plain spellings fold to one key; keep the heavier weight
			if w > r.PageKeywords[typ][key] {
				r.PageKeywords[typ][key] = w
			}
		}
	}
	return r, nil
}

func compileAll(kind string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		expr, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s pattern %q: %w", kind, p, err)
		}
		out = append(out, expr)
	}
	return out, nil
}

func hasNumberGroups(expr *regexp.Regexp) bool {
	return expr.SubexpIndex("number") >= 0 ||
		(expr.SubexpIndex("floor") >= 0 && expr.SubexpIndex("seq") >= 0)
}

func validPageType(t plan.PageType) bool {
	for _, known := range plan.PageTypes() {
		if t == known {
			return true
		}
	}
	return false
}
