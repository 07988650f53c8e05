package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-plan-extractor/internal/config"
	"github.com/a3tai/mcp-plan-extractor/internal/export"
	"github.com/a3tai/mcp-plan-extractor/internal/logging"
	"github.com/a3tai/mcp-plan-extractor/internal/mcp"
	"github.com/a3tai/mcp-plan-extractor/internal/metrics"
	"github.com/a3tai/mcp-plan-extractor/internal/pipeline"
	"github.com/a3tai/mcp-plan-extractor/internal/rules"
	"github.com/a3tai/mcp-plan-extractor/internal/security"
	"github.com/a3tai/mcp-plan-extractor/internal/service"
	"github.com/a3tai/mcp-plan-extractor/internal/source"
	"github.com/a3tai/mcp-plan-extractor/internal/store/postgres"
	"github.com/a3tai/mcp-plan-extractor/internal/validation"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging builds the process logger. In stdio mode stdout carries the
// MCP protocol, so logs go to stderr and only in debug.
func setupLogging(cfg *config.Config) *slog.Logger {
	if cfg.IsStdioMode() {
		return logging.NewStdioLogger(os.Stderr, cfg.ServerName, cfg.LogLevel)
	}
	return logging.NewJSONLogger(os.Stderr, cfg.ServerName, cfg.LogLevel)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg)
	logger.Debug("starting", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.Error("plan extractor failed", "error", err)
		if cfg.IsStdioMode() && !cfg.IsDebug() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// run wires the components for cfg and executes the configured mode
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	var roomRules *rules.Rules
	if cfg.RulesFile != "" {
		loaded, err := rules.Load(cfg.RulesFile)
		if err != nil {
			return err
		}
		roomRules = loaded
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.MetricsAddr != "" {
		m := metrics.NewPipelineMetrics()
		opts = append(opts, pipeline.WithRecorder(m))
		stopMetrics := serveMetrics(cfg.MetricsAddr, m, logger)
		defer stopMetrics()
	}

	extractor, err := pipeline.New(cfg.Tuning, roomRules, opts...)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	svcOpts := []service.Option{service.WithLogger(logger)}
	if cfg.DatabaseURL != "" {
		db, err := postgres.OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := postgres.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		svcOpts = append(svcOpts, service.WithStore(repo))
	}
	if !cfg.IsBatchMode() {
		paths, err := security.NewPathValidator(cfg.Directory)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, service.WithPathValidator(paths))
	}

	svc := service.New(source.NewReader(cfg.MaxFileSize, logger), extractor, svcOpts...)

	if cfg.IsBatchMode() {
		return runBatch(ctx, cfg, svc, logger, stdout)
	}

	server, err := mcp.NewServer(cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.Run(ctx)
}

// runBatch extracts one input and writes the document, the workbook and the
// validation report that cfg asks for
func runBatch(ctx context.Context, cfg *config.Config, svc *service.Service, logger *slog.Logger, stdout io.Writer) error {
	doc, err := svc.Extract(ctx, cfg.Input)
	if err != nil {
		return err
	}

	if cfg.Output == "" {
		if err := doc.WriteJSON(stdout); err != nil {
			return err
		}
	} else if err := doc.WriteFile(cfg.Output); err != nil {
		return err
	}

	if cfg.XLSXOutput != "" {
		if err := export.WriteFile(cfg.XLSXOutput, doc); err != nil {
			return err
		}
	}

	if cfg.GroundTruth == "" && cfg.Devis == "" {
		return nil
	}
	report, cv, err := svc.Check(doc, cfg.GroundTruth, cfg.Devis)
	if err != nil {
		return err
	}
	if report != nil {
		logger.Info("ground truth validation", "status", report.Status, "matched", report.Matched, "missing", report.Missing)
	}
	if cv != nil {
		logger.Info("cross validation", "status", cv.Status, "matched", cv.MatchedCount, "total", cv.TotalCount)
	}
	if cfg.ReportPath == "" {
		return nil
	}

	f, err := os.Create(cfg.ReportPath)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := validation.WriteReport(f, doc.Source, report, cv); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

// serveMetrics exposes /metrics on addr and returns the shutdown func
func serveMetrics(addr string, m *metrics.PipelineMetrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Plan Extractor\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
