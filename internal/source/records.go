package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// RecordFile is the on-disk form of a recorded vector extraction
type RecordFile struct {
	Source string            `json:"source,omitempty"`
	Pages  []plan.PageRecord `json:"pages"`
}

// LoadRecords reads a record file. Both {"pages": [...]} and a bare array of
// page records are accepted.
func LoadRecords(path string) ([]plan.PageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()

	recs, err := ParseRecords(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load records from %s: %w", path, err)
	}
	return recs, nil
}

// ParseRecords decodes page records
func ParseRecords(r io.Reader) ([]plan.PageRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty record file")
	}

	if data[0] == '[' {
		var pages []plan.PageRecord
		if err := json.Unmarshal(data, &pages); err != nil {
			return nil, fmt.Errorf("invalid page records: %w", err)
		}
		return pages, nil
	}

	var file RecordFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid record file: %w", err)
	}
	return file.Pages, nil
}

// WriteRecords writes page records as an indented record file
func WriteRecords(w io.Writer, source string, pages []plan.PageRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(RecordFile{Source: source, Pages: pages})
}
