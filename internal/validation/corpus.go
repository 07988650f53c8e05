package validation

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Section is one devis section with its nested subsections
type Section struct {
	Code        string    `yaml:"code" json:"code"`
	Title       string    `yaml:"title" json:"title"`
	Content     string    `yaml:"content" json:"content"`
	Page        int       `yaml:"page" json:"page"`
	Subsections []Section `yaml:"subsections" json:"subsections,omitempty"`
}

// Corpus is the devis text searched for room ids
type Corpus struct {
	Sections []Section `yaml:"sections" json:"sections"`
}

// TextCorpus wraps plain text as a single untitled section
func TextCorpus(text string) Corpus {
	if strings.TrimSpace(text) == "" {
		return Corpus{}
	}
	return Corpus{Sections: []Section{{Content: text}}}
}

// Size is the rune count of every title and content in the corpus
func (c Corpus) Size() int {
	n := 0
	c.walk(func(_ string, s Section) {
		n += utf8.RuneCountInString(s.Title) + utf8.RuneCountInString(s.Content)
	})
	return n
}

// walk visits every section depth first with its " > " joined title path
func (c Corpus) walk(fn func(path string, s Section)) {
	var visit func(prefix string, sections []Section)
	visit = func(prefix string, sections []Section) {
		for i, s := range sections {
			name := s.Title
			if name == "" {
				name = s.Code
			}
			if name == "" {
				name = fmt.Sprintf("section %d", i+1)
			}
			path := name
			if prefix != "" {
				path = prefix + " > " + name
			}
			fn(path, s)
			visit(path, s.Subsections)
		}
	}
	visit("", c.Sections)
}

// LoadCorpus reads a devis from a YAML or JSON section file, or from plain text.
// .txt and .md files are always read as plain text.
func LoadCorpus(path string) (Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to read devis: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return TextCorpus(string(data)), nil
	}
	return ParseCorpus(bytes.NewReader(data))
}

// ParseCorpus decodes a section document. Input that is not a section
// mapping is taken as plain text.
func ParseCorpus(r io.Reader) (Corpus, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Corpus{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Corpus{}, nil
	}

	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil || probe == nil {
		return TextCorpus(string(data)), nil
	}
	if _, ok := probe["sections"]; !ok {
		return TextCorpus(string(data)), nil
	}

	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Corpus{}, fmt.Errorf("invalid devis sections: %w", err)
	}
	return c, nil
}
