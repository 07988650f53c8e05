// Package pipeline runs the per-page detectors concurrently and merges their
// candidates into one output document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-plan-extractor/internal/classify"
	"github.com/a3tai/mcp-plan-extractor/internal/confidence"
	"github.com/a3tai/mcp-plan-extractor/internal/diagnostics"
	"github.com/a3tai/mcp-plan-extractor/internal/dimension"
	"github.com/a3tai/mcp-plan-extractor/internal/door"
	"github.com/a3tai/mcp-plan-extractor/internal/normalize"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/room"
	"github.com/a3tai/mcp-plan-extractor/internal/rules"
)

// ErrNoInput is returned when a run is given no page records
var ErrNoInput = errors.New("no page records to process")

// Entity kinds reported to the recorder
const (
	KindRoom      = "room"
	KindDoor      = "door"
	KindDimension = "dimension"
)

// Recorder receives per-page instrumentation. metrics.PipelineMetrics implements it.
type Recorder interface {
	StartPage()
	FinishPage(duration time.Duration, err error)
	AddEntities(kind string, n int)
}

type nopRecorder struct{}

func (nopRecorder) StartPage()                      {}
func (nopRecorder) FinishPage(time.Duration, error) {}
func (nopRecorder) AddEntities(string, int)         {}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(e *Extractor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock replaces time.Now for the generated_at stamp
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// Extractor owns one instance of every detector. The detectors are stateless,
// so one Extractor serves any number of sequential or concurrent runs.
type Extractor struct {
	settings plan.Settings
	rules    *rules.Rules
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	normalizer *normalize.Normalizer
	dimensions *dimension.Extractor
	rooms      *room.Detector
	doors      *door.Detector
	classifier *classify.Classifier
	merger     *confidence.Merger
}

// New builds an extractor. A nil rule table means the built-in rules.
func New(settings plan.Settings, r *rules.Rules, opts ...Option) (*Extractor, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	if r == nil {
		r = rules.Defaults()
	}
	e := &Extractor{
		settings:   settings,
		rules:      r,
		logger:     slog.Default(),
		recorder:   nopRecorder{},
		now:        time.Now,
		normalizer: normalize.New(settings.Normalize),
		dimensions: dimension.New(settings.Dimension, settings.Confidence),
		rooms:      room.New(settings.Room, settings.Confidence, r),
		doors:      door.New(settings.Door, settings.Confidence, r),
		classifier: classify.New(settings.Classifier, r),
		merger:     confidence.NewMerger(settings, r.Vocabulary),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the tuning the extractor was built with
func (e *Extractor) Settings() plan.Settings {
	return e.settings
}

// Rules returns the rule table the extractor was built with
func (e *Extractor) Rules() *rules.Rules {
	return e.rules
}

// pageResult is what one worker hands back to the merge
type pageResult struct {
	number         int
	failed         bool
	entities       confidence.PageEntities
	classification plan.PageClassification
	coverage       PageCoverage
	empty          bool
	diags          *diagnostics.Collection
}

// Run extracts every page and merges the candidates. Pages are processed in
// parallel by at most Pipeline.Workers goroutines; a page that fails, panics
// or exceeds Pipeline.PageTimeout becomes a PageProcessingFailure diagnostic
// and the run continues. Only cancellation of ctx aborts the run.
func (e *Extractor) Run(ctx context.Context, source string, records []plan.PageRecord) (*Document, error) {
	if len(records) == 0 {
		return nil, ErrNoInput
	}

	ordered := make([]plan.PageRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageNumber < ordered[j].PageNumber })

	results := make([]pageResult, len(ordered))
	seen := make(map[int]bool, len(ordered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.settings.Pipeline.Workers, 1))

	for i := range ordered {
		rec := &ordered[i]
		if seen[rec.PageNumber] && rec.PageNumber > 0 {
			results[i] = e.failed(rec.PageNumber, fmt.Errorf("duplicate page number %d", rec.PageNumber))
			continue
		}
		seen[rec.PageNumber] = true

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.runPage(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.assemble(source, results), nil
}

// runPage wraps processPage with the timeout, panic recovery and instrumentation
func (e *Extractor) runPage(ctx context.Context, rec *plan.PageRecord) pageResult {
	if e.settings.Pipeline.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.settings.Pipeline.PageTimeout)
		defer cancel()
	}

	e.recorder.StartPage()
	start := time.Now()

	res, err := e.safeProcess(ctx, rec)
	e.recorder.FinishPage(time.Since(start), err)
	if err != nil {
		e.logger.Warn("page processing failed", "page", rec.PageNumber, "error", err)
		return e.failed(rec.PageNumber, err)
	}

	e.recorder.AddEntities(KindRoom, len(res.entities.Rooms))
	e.recorder.AddEntities(KindDoor, len(res.entities.Doors))
	e.recorder.AddEntities(KindDimension, len(res.entities.Dimensions))
	e.logger.Debug("page processed",
		"page", rec.PageNumber,
		"type", res.classification.Type,
		"rooms", len(res.entities.Rooms),
		"doors", len(res.entities.Doors),
		"dimensions", len(res.entities.Dimensions),
		"duration", time.Since(start))
	return res
}

func (e *Extractor) safeProcess(ctx context.Context, rec *plan.PageRecord) (res pageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.processPage(ctx, rec)
}

// processPage runs the detectors of one page. The stages are CPU bound, so the
// deadline is checked between them.
func (e *Extractor) processPage(ctx context.Context, rec *plan.PageRecord) (pageResult, error) {
	diags := diagnostics.NewCollection()

	page, err := e.normalizer.Normalize(rec)
	if err != nil {
		return pageResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return pageResult{}, stageError("normalize", err)
	}

	dims, dimDiags := e.dimensions.Extract(page)
	for _, d := range dimDiags {
		diags.Add(d)
	}
	if err := ctx.Err(); err != nil {
		return pageResult{}, stageError("dimensions", err)
	}

	rooms, roomDiags := e.rooms.Detect(page)
	for _, d := range roomDiags {
		diags.Add(d)
	}
	if err := ctx.Err(); err != nil {
		return pageResult{}, stageError("rooms", err)
	}

	doors := e.doors.Detect(page, rooms)
	if err := ctx.Err(); err != nil {
		return pageResult{}, stageError("doors", err)
	}

	class := e.classifier.Classify(classify.Input{
		Page:        page,
		RoomMatches: len(rooms),
		Dimensions:  len(dims),
		DoorArcs:    doors.Accepted,
	})

	return pageResult{
		number: rec.PageNumber,
		entities: confidence.PageEntities{
			Page:       rec.PageNumber,
			Rooms:      rooms,
			Dimensions: dims,
			Doors:      doors.Doors,
		},
		classification: class,
		coverage: PageCoverage{
			Page:           rec.PageNumber,
			Type:           class.Type,
			DoorCoverage:   doors.Coverage.Resolve(class.Type),
			RoomCount:      len(rooms),
			DimensionCount: len(dims),
			DoorCount:      len(doors.Doors),
		},
		empty: len(page.Blocks) == 0 && len(page.Paths) == 0,
		diags: diags,
	}, nil
}

func stageError(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s stage: %w", stage, err)
	}
	return fmt.Errorf("cancelled after %s stage: %w", stage, err)
}

func (e *Extractor) failed(page int, err error) pageResult {
	diags := diagnostics.NewCollection()
	diags.Add(diagnostics.New(diagnostics.TypePageProcessingFailure, page, err.Error()))
	return pageResult{number: page, failed: true, diags: diags}
}

// assemble runs the single-threaded merge over the page results, in page order
func (e *Extractor) assemble(source string, results []pageResult) *Document {
	doc := &Document{
		RunID:               uuid.NewString(),
		GeneratedAt:         e.now().UTC(),
		Source:              source,
		PageClassifications: make([]plan.PageClassification, 0, len(results)),
		Coverage: Coverage{
			PagesTotal:  len(results),
			PerPage:     make([]PageCoverage, 0, len(results)),
			Limitations: make([]string, 0),
		},
	}

	all := diagnostics.NewCollection()
	entities := make([]confidence.PageEntities, 0, len(results))
	var failed, undetectable, empty []int

	for _, res := range results {
		all.Merge(res.diags)
		if res.failed {
			doc.Coverage.PagesFailed++
			failed = append(failed, res.number)
			continue
		}
		doc.Coverage.PagesProcessed++
		entities = append(entities, res.entities)
		doc.PageClassifications = append(doc.PageClassifications, res.classification)
		doc.Coverage.PerPage = append(doc.Coverage.PerPage, res.coverage)
		if res.coverage.DoorCoverage == door.CoverageNotDetectable {
			undetectable = append(undetectable, res.number)
		}
		if res.empty {
			empty = append(empty, res.number)
		}
	}

	merged := e.merger.Merge(entities)
	doc.Rooms = nonNil(merged.Rooms)
	doc.Dimensions = nonNil(merged.Dimensions)
	doc.Doors = nonNil(merged.Doors)
	doc.Alerts = nonNil(confidence.Alerts(merged, e.settings.Confidence, e.rules.Vocabulary))
	for _, c := range merged.Conflicts {
		page := 0
		if len(c.Pages) > 0 {
			page = c.Pages[0]
		}
		all.Add(diagnostics.Newf(diagnostics.TypeNameConflict, page,
			"room %s is named %s on %s", c.RoomID, strings.Join(c.Names, " / "), pageList(c.Pages)).
			WithEntity(c.RoomID))
	}
	doc.Diagnostics = all.Items()

	if len(failed) > 0 {
		doc.Coverage.Limitations = append(doc.Coverage.Limitations,
			fmt.Sprintf("could not process %s; their entities are missing", pageList(failed)))
	}
	if len(undetectable) > 0 {
		doc.Coverage.Limitations = append(doc.Coverage.Limitations,
			fmt.Sprintf("no arc primitives on %s; doors drawn with other symbols are not detected", pageList(undetectable)))
	}
	if len(empty) > 0 {
		doc.Coverage.Limitations = append(doc.Coverage.Limitations,
			fmt.Sprintf("no vector content on %s; scanned sheets are not analysed", pageList(empty)))
	}

	e.logger.Info("extraction finished",
		"run_id", doc.RunID,
		"source", source,
		"pages", doc.Coverage.PagesTotal,
		"failed", doc.Coverage.PagesFailed,
		"rooms", len(doc.Rooms),
		"doors", len(doc.Doors),
		"dimensions", len(doc.Dimensions),
		"diagnostics", all.Summary())
	return doc
}

// pageList renders "page 3" or "pages 1, 3"
func pageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	if len(parts) == 1 {
		return "page " + parts[0]
	}
	return "pages " + strings.Join(parts, ", ")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
