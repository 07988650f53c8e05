// Package source turns plan set files into per-page vector records: PDFs are
// read with ledongthuc/pdf for glyph runs and pdfcpu for content streams, and
// recorded vector files are loaded as JSON.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/source/contentstream"
)

// ErrNotPDF is returned when a file with PDF content was expected
var ErrNotPDF = errors.New("not a PDF file")

const (
	// DefaultMaxFileSize bounds the input size
	DefaultMaxFileSize = 200 * 1024 * 1024

	pdfMagic        = "%PDF-"
	headerScanBytes = 1024
	defaultFontSize = 10.0
)

// US Letter, used when no media box is found in the page tree
var letterBox = box{urx: 612, ury: 792}

type box struct {
	llx, lly, urx, ury float64
}

func (b box) width() float64  { return b.urx - b.llx }
func (b box) height() float64 { return b.ury - b.lly }

// Reader loads page records from PDFs and from recorded vector files
type Reader struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewReader creates a reader. A non-positive size means DefaultMaxFileSize,
// and a nil logger means slog.Default().
func NewReader(maxFileSize int64, logger *slog.Logger) *Reader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{maxFileSize: maxFileSize, logger: logger}
}

// IsPDFPath reports whether the path names a PDF by extension
func IsPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Load reads a PDF, or a vector record file for any other extension
func (r *Reader) Load(ctx context.Context, path string) ([]plan.PageRecord, error) {
	if IsPDFPath(path) {
		return r.ReadPDF(ctx, path)
	}
	if err := r.checkFile(path); err != nil {
		return nil, err
	}
	return LoadRecords(path)
}

func (r *Reader) checkFile(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if info.Size() > r.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), r.maxFileSize)
	}
	return nil
}

// ReadPDF extracts one record per page. Text comes from ledongthuc/pdf as
// glyph runs; paths come from the pdfcpu content stream of the page. A page
// whose content stream cannot be read keeps its text and loses its paths.
func (r *Reader) ReadPDF(ctx context.Context, path string) ([]plan.PageRecord, error) {
	if err := r.checkFile(path); err != nil {
		return nil, err
	}
	if err := checkMagic(path); err != nil {
		return nil, err
	}

	f, doc, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pdfCtx := r.readContext(path)

	total := doc.NumPage()
	records := make([]plan.PageRecord, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			r.logger.Warn("skipping unreadable page", "path", path, "page", i)
			continue
		}

		mb := mediaBox(page)
		rec := plan.PageRecord{
			PageNumber:   i,
			Width:        mb.width(),
			Height:       mb.height(),
			UnitsPerInch: plan.DefaultUnitsPerInch,
			Origin:       plan.OriginBottomLeft,
			TextRuns:     r.textRuns(page, mb, i),
			Paths:        make([]plan.RawPath, 0),
		}
		if pdfCtx != nil && i <= pdfCtx.PageCount {
			rec.Paths = r.paths(pdfCtx, mb, i)
		}
		records = append(records, rec)
	}

	r.logger.Debug("pdf read", "path", path, "pages", len(records), "vector_paths", pdfCtx != nil)
	return records, nil
}

// checkMagic looks for the PDF header in the first kilobyte
func checkMagic(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, headerScanBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("failed to read file header: %w", err)
	}
	if !bytes.Contains(head[:n], []byte(pdfMagic)) {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	return nil
}

// readContext opens the pdfcpu context in relaxed mode. Failure is logged and
// leaves the run text-only.
func (r *Reader) readContext(path string) *model.Context {
	file, err := os.Open(path)
	if err != nil {
		r.logger.Warn("content streams unavailable", "path", path, "error", err)
		return nil
	}
	defer file.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		r.logger.Warn("content streams unavailable", "path", path, "error", err)
		return nil
	}
	if err := ctx.EnsurePageCount(); err != nil {
		r.logger.Warn("content streams unavailable", "path", path, "error", err)
		return nil
	}
	return ctx
}

func (r *Reader) textRuns(page pdf.Page, mb box, pageNum int) (runs []plan.TextRun) {
	runs = make([]plan.TextRun, 0)
	defer func() {
		// ledongthuc panics on some broken font programs
		if rec := recover(); rec != nil {
			r.logger.Warn("text extraction failed", "page", pageNum, "error", rec)
			runs = make([]plan.TextRun, 0)
		}
	}()

	for _, t := range page.Content().Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		x, y := t.X-mb.llx, t.Y-mb.lly
		runs = append(runs, plan.TextRun{
			Text: t.S,
			BBox: plan.BBox{X0: x, Y0: y, X1: x + t.W, Y1: y + size},
			Font: t.Font,
			Size: size,
		})
	}
	return runs
}

func (r *Reader) paths(ctx *model.Context, mb box, pageNum int) []plan.RawPath {
	content, err := pdfcpu.ExtractPageContent(ctx, pageNum)
	if err != nil {
		r.logger.Warn("content stream unavailable", "page", pageNum, "error", err)
		return make([]plan.RawPath, 0)
	}
	if content == nil {
		return make([]plan.RawPath, 0)
	}

	paths, stats, err := contentstream.Extract(content, contentstream.Translate(-mb.llx, -mb.lly))
	if err != nil {
		r.logger.Warn("content stream truncated", "page", pageNum, "error", err, "paths", len(paths))
	}
	if stats.XObjects > 0 {
		r.logger.Debug("form xobjects not followed", "page", pageNum, "count", stats.XObjects)
	}
	if paths == nil {
		paths = make([]plan.RawPath, 0)
	}
	return paths
}

// mediaBox reads the page media box, walking up the page tree for an
// inherited one. Malformed boxes fall back to US Letter.
func mediaBox(page pdf.Page) box {
	current := page.V
	for i := 0; i < 10 && !current.IsNull(); i++ {
		if b, ok := parseBox(current.Key("MediaBox")); ok {
			return b
		}
		current = current.Key("Parent")
	}
	return letterBox
}

func parseBox(v pdf.Value) (box, bool) {
	if v.IsNull() || v.Kind() != pdf.Array || v.Len() != 4 {
		return box{}, false
	}
	var c [4]float64
	for i := range c {
		item := v.Index(i)
		switch item.Kind() {
		case pdf.Integer:
			c[i] = float64(item.Int64())
		case pdf.Real:
			c[i] = item.Float64()
		default:
			return box{}, false
		}
	}
	b := box{llx: min(c[0], c[2]), lly: min(c[1], c[3]), urx: max(c[0], c[2]), ury: max(c[1], c[3])}
	if b.width() <= 0 || b.height() <= 0 {
		return box{}, false
	}
	return b, true
}
