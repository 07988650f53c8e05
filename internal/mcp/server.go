package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-plan-extractor/internal/config"
	"github.com/a3tai/mcp-plan-extractor/internal/descriptions"
	"github.com/a3tai/mcp-plan-extractor/internal/pipeline"
	"github.com/a3tai/mcp-plan-extractor/internal/service"
)

const (
	endpointPath    = "/mcp"
	shutdownTimeout = 5 * time.Second
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *service.Service
	mcpServer *server.MCPServer
	logger    *slog.Logger

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *service.Service, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   svc,
		mcpServer: mcpServer,
		logger:    logger,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	pathParam := mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Plan set PDF or vector record JSON, absolute or relative to the configured directory"),
	)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolExtractFile,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolExtractFile)),
		pathParam,
	), s.handleExtractFile)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolClassifyPages,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolClassifyPages)),
		pathParam,
		mcp.WithNumber("select",
			mcp.Description("Number of pages to select for analysis (0 or absent for none)"),
		),
	), s.handleClassifyPages)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolValidateGroundTruth,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolValidateGroundTruth)),
		pathParam,
		mcp.WithString("ground_truth_path",
			mcp.Required(),
			mcp.Description("Ground truth YAML or JSON file"),
		),
	), s.handleValidateGroundTruth)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolCrossValidate,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolCrossValidate)),
		pathParam,
		mcp.WithString("devis_path",
			mcp.Required(),
			mcp.Description("Specification corpus: YAML/JSON sections or plain text"),
		),
	), s.handleCrossValidate)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.ToolServerInfo)),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.service.Extract(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return resultWithJSON(formatExtractSummary(doc), doc)
}

func (s *Server) handleClassifyPages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	count := request.GetInt("select", 0)
	if count < 0 {
		return mcp.NewToolResultError("select must not be negative"), nil
	}

	result, err := s.service.ClassifyPages(ctx, path, count)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Page classification for: %s\n", result.Source)
	for _, p := range result.Pages {
		text += fmt.Sprintf("  Page %d: %s (%.2f)\n", p.Page, p.Type, p.Scores[p.Type])
	}
	if result.Selection != nil {
		pages := make([]string, len(result.Selection.Pages))
		for i, p := range result.Selection.Pages {
			pages[i] = fmt.Sprint(p.Page)
		}
		text += fmt.Sprintf("Selected (%s): %s\n", result.Selection.Strategy, strings.Join(pages, ", "))
	}
	return resultWithJSON(text, result)
}

func (s *Server) handleValidateGroundTruth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gtPath, err := request.RequireString("ground_truth_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, doc, err := s.service.ValidateGroundTruth(ctx, path, gtPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Ground truth validation for: %s\n", doc.Source)
	text += fmt.Sprintf("Status: %s\n", report.Status)
	if report.Note != "" {
		text += report.Note + "\n"
	}
	text += fmt.Sprintf("Reference rooms: %d, matched: %d (exact %d, id only %d, name only %d), missing: %d\n",
		report.GroundTruthCount, report.Matched, report.Exact, report.IDOnly, report.NameOnly, report.Missing)
	if report.Recall != nil && report.Precision != nil {
		text += fmt.Sprintf("Recall: %.1f%%, precision: %.1f%%\n", *report.Recall*100, *report.Precision*100)
	}
	return resultWithJSON(text, report)
}

func (s *Server) handleCrossValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	devisPath, err := request.RequireString("devis_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, doc, err := s.service.CrossValidate(ctx, path, devisPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Cross-validation for: %s\n", doc.Source)
	text += fmt.Sprintf("Status: %s\n", result.Status)
	if result.Note != "" {
		text += result.Note + "\n"
	}
	text += fmt.Sprintf("Room ids found in the devis: %d of %d (name only: %d)\n",
		result.MatchedCount, result.TotalCount, result.NameOnlyCount)
	return resultWithJSON(text, result)
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := s.service.ServerInfo(s.config.ServerName, s.config.Version, s.config.MaxFileSize)
	return mcp.NewToolResultText(formatServerInfo(info)), nil
}

// Formatting methods
func formatExtractSummary(doc *pipeline.Document) string {
	text := fmt.Sprintf("Extraction of: %s (run %s)\n", doc.Source, doc.RunID)
	text += fmt.Sprintf("Pages: %d processed, %d failed, %d total\n",
		doc.Coverage.PagesProcessed, doc.Coverage.PagesFailed, doc.Coverage.PagesTotal)
	text += fmt.Sprintf("Rooms: %d, doors: %d, dimensions: %d\n", len(doc.Rooms), len(doc.Doors), len(doc.Dimensions))
	text += fmt.Sprintf("Diagnostics: %d, alerts: %d\n", len(doc.Diagnostics), len(doc.Alerts))
	for _, l := range doc.Coverage.Limitations {
		text += "Limitation: " + l + "\n"
	}
	return text
}

func formatServerInfo(info *service.ServerInfo) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", info.ServerName, info.Version)
	if info.Directory != "" {
		text += fmt.Sprintf("Directory: %s\n", info.Directory)
	}
	text += fmt.Sprintf("Max File Size: %d MB\n", info.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Page workers: %d\n", info.Workers)
	text += fmt.Sprintf("Persistence: %t\n\n", info.Persistence)

	if len(info.Files) > 0 {
		text += fmt.Sprintf("Inputs (%d found):\n", len(info.Files))
		for i, f := range info.Files {
			text += fmt.Sprintf("   %d. %s [%s] (%d bytes)\n", i+1, f.Path, f.Kind, f.Size)
		}
		if info.Truncated {
			text += "   ... listing truncated\n"
		}
		text += "\n"
	} else {
		text += "Inputs: none found in the configured directory\n\n"
	}

	text += "Available Tools:\n"
	for _, tool := range info.Tools {
		summary, _, _ := strings.Cut(tool.Description, "\n")
		text += fmt.Sprintf("  • %s: %s\n", tool.Name, summary)
	}
	return text
}

func resultWithJSON(summary string, v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(summary + "\n" + string(data)), nil
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode for the MCP server: %s", s.config.Mode)
	}
}

// runStdioMode serves MCP over stdin/stdout until ctx is done or input ends
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("starting MCP server in stdio mode", "directory", s.config.Directory)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	if err := stdio.Listen(ctx, s.stdin, s.stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over streamable HTTP until ctx is done
func (s *Server) runServerMode(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(endpointPath, server.NewStreamableHTTPServer(s.mcpServer))

	httpServer := &http.Server{
		Addr:              s.config.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server", "address", httpServer.Addr, "endpoint", endpointPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}
