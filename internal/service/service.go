// Package service ties the reader, the extraction pipeline, validation and
// persistence together behind the operations exposed by the MCP tools and the
// batch command.
package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/a3tai/mcp-plan-extractor/internal/classify"
	"github.com/a3tai/mcp-plan-extractor/internal/descriptions"
	"github.com/a3tai/mcp-plan-extractor/internal/pipeline"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/security"
	"github.com/a3tai/mcp-plan-extractor/internal/source"
	"github.com/a3tai/mcp-plan-extractor/internal/validation"
)

const (
	maxListedFiles = 100
	maxScanDepth   = 3
)

// RunStore persists finished extraction runs
type RunStore interface {
	SaveRun(ctx context.Context, doc *pipeline.Document) error
}

// Service handles plan set operations by orchestrating the extraction components
type Service struct {
	reader    *source.Reader
	extractor *pipeline.Extractor
	validator *validation.Validator
	paths     *security.PathValidator
	store     RunStore
	logger    *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithPathValidator confines every input path to the validator's directory
func WithPathValidator(v *security.PathValidator) Option {
	return func(s *Service) { s.paths = v }
}

// WithStore persists each extraction run
func WithStore(store RunStore) Option {
	return func(s *Service) { s.store = store }
}

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a service around a configured reader and extractor
func New(reader *source.Reader, extractor *pipeline.Extractor, opts ...Option) *Service {
	s := &Service{
		reader:    reader,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = validation.New(extractor.Settings().Validation, extractor.Rules().Vocabulary)
	return s
}

// ClassifyResult is the response of ClassifyPages
type ClassifyResult struct {
	Source    string                    `json:"source"`
	Pages     []plan.PageClassification `json:"pages"`
	Selection *classify.Selection       `json:"selection,omitempty"`
}

// ServerInfo describes the running service
type ServerInfo struct {
	ServerName  string     `json:"server_name"`
	Version     string     `json:"version"`
	Directory   string     `json:"directory,omitempty"`
	MaxFileSize int64      `json:"max_file_size"`
	Files       []FileInfo `json:"files"`
	Truncated   bool       `json:"truncated,omitempty"`
	Tools       []ToolInfo `json:"tools"`
	Workers     int        `json:"workers"`
	Persistence bool       `json:"persistence"`
}

// FileInfo is one readable input in the configured directory
type FileInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

// ToolInfo names a tool and its description
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Resolve applies the path confinement, if any
func (s *Service) Resolve(path string) (string, error) {
	if s.paths == nil {
		if path == "" {
			return "", fmt.Errorf("path cannot be empty")
		}
		return path, nil
	}
	resolved, err := s.paths.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("security validation failed: %w", err)
	}
	return resolved, nil
}

// Extract runs the full extraction on a PDF or a vector record file and
// persists the run when a store is configured.
func (s *Service) Extract(ctx context.Context, path string) (*pipeline.Document, error) {
	doc, err := s.extract(ctx, path)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.SaveRun(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to persist run %s: %w", doc.RunID, err)
		}
		s.logger.Info("run persisted", "run_id", doc.RunID, "rooms", len(doc.Rooms))
	}
	return doc, nil
}

func (s *Service) extract(ctx context.Context, path string) (*pipeline.Document, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	records, err := s.reader.Load(ctx, resolved)
	if err != nil {
		return nil, err
	}
	return s.extractor.Run(ctx, filepath.Base(resolved), records)
}

// ClassifyPages classifies every page. A positive selectCount adds a page selection.
func (s *Service) ClassifyPages(ctx context.Context, path string, selectCount int) (*ClassifyResult, error) {
	doc, err := s.extract(ctx, path)
	if err != nil {
		return nil, err
	}
	result := &ClassifyResult{Source: doc.Source, Pages: doc.PageClassifications}
	if selectCount > 0 {
		sel := classify.Select(doc.PageClassifications, selectCount)
		result.Selection = &sel
	}
	return result, nil
}

// ValidateGroundTruth extracts path and grades it against a reference room list
func (s *Service) ValidateGroundTruth(ctx context.Context, path, groundTruthPath string) (*validation.GroundTruthReport, *pipeline.Document, error) {
	gt, err := s.loadGroundTruth(groundTruthPath)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.Extract(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	report := s.validator.ValidateGroundTruth(doc.Rooms, gt)
	return &report, doc, nil
}

// CrossValidate extracts path and looks up every room id in a devis corpus
func (s *Service) CrossValidate(ctx context.Context, path, devisPath string) (*plan.CrossValidationResult, *pipeline.Document, error) {
	corpus, err := s.loadCorpus(devisPath)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.Extract(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	result := s.validator.CrossValidate(doc.Rooms, corpus)
	return &result, doc, nil
}

// Check validates an extracted document against a ground truth file and a
// devis corpus. An empty path skips that check and leaves its result nil.
func (s *Service) Check(doc *pipeline.Document, groundTruthPath, devisPath string) (*validation.GroundTruthReport, *plan.CrossValidationResult, error) {
	var report *validation.GroundTruthReport
	if groundTruthPath != "" {
		gt, err := s.loadGroundTruth(groundTruthPath)
		if err != nil {
			return nil, nil, err
		}
		r := s.validator.ValidateGroundTruth(doc.Rooms, gt)
		report = &r
	}

	var result *plan.CrossValidationResult
	if devisPath != "" {
		corpus, err := s.loadCorpus(devisPath)
		if err != nil {
			return nil, nil, err
		}
		r := s.validator.CrossValidate(doc.Rooms, corpus)
		result = &r
	}
	return report, result, nil
}

func (s *Service) loadGroundTruth(path string) (validation.GroundTruth, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return validation.GroundTruth{}, err
	}
	return validation.LoadGroundTruth(resolved)
}

func (s *Service) loadCorpus(path string) (validation.Corpus, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return validation.Corpus{}, err
	}
	return validation.LoadCorpus(resolved)
}

// ServerInfo lists the readable inputs of the configured directory and the tools
func (s *Service) ServerInfo(name, version string, maxFileSize int64) *ServerInfo {
	info := &ServerInfo{
		ServerName:  name,
		Version:     version,
		MaxFileSize: maxFileSize,
		Files:       make([]FileInfo, 0),
		Workers:     s.extractor.Settings().Pipeline.Workers,
		Persistence: s.store != nil,
	}
	for _, tool := range descriptions.GetAllToolNames() {
		info.Tools = append(info.Tools, ToolInfo{Name: tool, Description: descriptions.GetToolDescription(tool)})
	}
	if s.paths == nil {
		return info
	}

	root := s.paths.Directory()
	info.Directory = root
	info.Files, info.Truncated = s.scan(root)
	return info
}

// scan walks root a few levels deep for PDFs and JSON/YAML inputs
func (s *Service) scan(root string) ([]FileInfo, bool) {
	files := make([]FileInfo, 0)
	truncated := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || strings.Count(rel, string(filepath.Separator)) >= maxScanDepth-1) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		kind := ""
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdf":
			kind = "pdf"
		case ".json":
			kind = "json"
		case ".yaml", ".yml":
			kind = "yaml"
		default:
			return nil
		}
		if len(files) >= maxListedFiles {
			truncated = true
			return filepath.SkipAll
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{Path: rel, Kind: kind, Size: info.Size()})
		return nil
	})
	if err != nil {
		s.logger.Warn("directory scan failed", "directory", root, "error", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, truncated
}
