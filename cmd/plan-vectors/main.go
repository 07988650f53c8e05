// Command plan-vectors records the text runs and vector paths of a plan set PDF
// as a JSON record file. The extractor reads record files like PDFs, which
// makes extraction runs repeatable without the original drawing.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-plan-extractor/internal/logging"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/source"
)

var (
	output      = pflag.StringP("output", "o", "", "Record file to write (stdout when empty)")
	format      = pflag.String("format", "json", "Output format: json, text")
	verbose     = pflag.BoolP("verbose", "v", false, "Enable debug logging on stderr")
	maxFileSize = pflag.Int64("max-file-size", source.DefaultMaxFileSize, "Maximum PDF size in bytes")
)

func main() {
	pflag.Usage = printUsage
	pflag.Parse()

	if pflag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: PDF file path required\n\n")
		printUsage()
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.NewJSONLogger(os.Stderr, "plan-vectors", level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pdfPath := pflag.Arg(0)
	records, err := source.NewReader(*maxFileSize, logger).ReadPDF(ctx, pdfPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", pdfPath, err)
		os.Exit(1)
	}

	if err := writeOutput(pdfPath, records); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing records: %v\n", err)
		os.Exit(1)
	}
}

func writeOutput(pdfPath string, records []plan.PageRecord) error {
	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch *format {
	case "json":
		return source.WriteRecords(w, pdfPath, records)
	case "text":
		return writeSummary(w, pdfPath, records)
	default:
		return fmt.Errorf("unsupported format: %s", *format)
	}
}

// writeSummary prints one line per page with its element counts
func writeSummary(w io.Writer, pdfPath string, records []plan.PageRecord) error {
	if _, err := fmt.Fprintf(w, "%s: %d pages\n", pdfPath, len(records)); err != nil {
		return err
	}
	for _, r := range records {
		kinds := make(map[plan.PathKind]int)
		for _, p := range r.Paths {
			kinds[p.Kind]++
		}
		if _, err := fmt.Fprintf(w, "  Page %d (%.0fx%.0f): %d text runs, %d paths (%d lines, %d arcs)\n",
			r.PageNumber, r.Width, r.Height, len(r.TextRuns), len(r.Paths), kinds[plan.PathLine], kinds[plan.PathArc]); err != nil {
			return err
		}
	}
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Plan Vectors - record the text and vector paths of a plan set PDF")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "USAGE:")
	fmt.Fprintln(os.Stderr, "  plan-vectors [OPTIONS] <pdf-file>")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "OPTIONS:")
	pflag.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "EXAMPLES:")
	fmt.Fprintln(os.Stderr, "  plan-vectors plans/A-101.pdf -o plans/A-101.vectors.json")
	fmt.Fprintln(os.Stderr, "  plan-vectors --format text plans/A-101.pdf")
}
