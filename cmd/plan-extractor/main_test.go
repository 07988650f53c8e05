package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/config"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
	"github.com/a3tai/mcp-plan-extractor/internal/source"
)

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	version = "1.2.3"
	buildTime = "2026-10-19_10:30:00"
	gitCommit = "abc123"

	var buf bytes.Buffer
	printVersion(&buf)

	output := buf.String()
	for _, expected := range []string{
		"Plan Extractor",
		"Version: 1.2.3",
		"Build Time: 2026-10-19_10:30:00",
		"Git Commit: abc123",
		"Built with: " + runtime.Version(),
	} {
		assert.Contains(t, output, expected)
	}
}

func TestSetupLogging(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "stdio quiet", mode: config.ModeStdio, level: "info", wantDebug: false, wantInfo: false},
		{name: "stdio debug", mode: config.ModeStdio, level: "debug", wantDebug: true, wantInfo: true},
		{name: "server info", mode: config.ModeServer, level: "info", wantDebug: false, wantInfo: true},
		{name: "batch debug", mode: config.ModeBatch, level: "debug", wantDebug: true, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Mode = tt.mode
			cfg.LogLevel = tt.level

			logger := setupLogging(cfg)
			ctx := context.Background()
			assert.Equal(t, tt.wantDebug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.wantInfo, logger.Enabled(ctx, slog.LevelInfo))
		})
	}
}

func writeRecords(t *testing.T, dir string) string {
	t.Helper()
	page := plan.PageRecord{
		PageNumber: 1,
		Width:      612,
		Height:     792,
		Origin:     plan.OriginTopLeft,
		TextRuns: []plan.TextRun{
			{Text: "PLAN DU 2E ÉTAGE", BBox: plan.BBox{X0: 200, Y0: 20, X1: 330, Y1: 32}, Size: 12},
			{Text: "CLASSE 204", BBox: plan.BBox{X0: 100, Y0: 100, X1: 160, Y1: 110}, Size: 10},
		},
		Paths: []plan.RawPath{},
	}

	path := filepath.Join(dir, "A-101.vectors.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, source.WriteRecords(f, "A-101.pdf", []plan.PageRecord{page}))
	require.NoError(t, f.Close())
	return path
}

func batchConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Mode = config.ModeBatch
	cfg.Directory = dir
	cfg.Input = writeRecords(t, dir)
	return cfg, dir
}

func TestRunBatchToStdout(t *testing.T) {
	cfg, _ := batchConfig(t)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, slog.New(slog.DiscardHandler), &out))

	var doc struct {
		Source string `json:"source"`
		Rooms  []struct {
			ID string `json:"id"`
		} `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "A-101.vectors.json", doc.Source)
	require.Len(t, doc.Rooms, 1)
	assert.Equal(t, "204", doc.Rooms[0].ID)
}

func TestRunBatchLogsExtractionOnce(t *testing.T) {
	cfg, _ := batchConfig(t)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	require.NoError(t, run(context.Background(), cfg, logger, &bytes.Buffer{}))

	assert.Equal(t, 1, strings.Count(logs.String(), `msg="extraction finished"`))
	assert.Contains(t, logs.String(), "rooms=1")
}

func TestRunBatchWritesFiles(t *testing.T) {
	cfg, dir := batchConfig(t)
	cfg.Output = filepath.Join(dir, "rooms.json")
	cfg.XLSXOutput = filepath.Join(dir, "rooms.xlsx")
	cfg.GroundTruth = filepath.Join(dir, "gt.yaml")
	cfg.ReportPath = filepath.Join(dir, "report.md")
	require.NoError(t, os.WriteFile(cfg.GroundTruth, []byte("rooms:\n  - id: \"204\"\n    name: CLASSE\n"), 0o600))

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, slog.New(slog.DiscardHandler), &out))
	assert.Zero(t, out.Len())

	for _, path := range []string{cfg.Output, cfg.XLSXOutput, cfg.ReportPath} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}

	report, err := os.ReadFile(cfg.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "# Validation report")
	assert.Contains(t, string(report), "## Ground truth")
}

func TestRunErrors(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("missing rules file", func(t *testing.T) {
		cfg, dir := batchConfig(t)
		cfg.RulesFile = filepath.Join(dir, "missing.yaml")
		assert.Error(t, run(context.Background(), cfg, logger, &bytes.Buffer{}))
	})

	t.Run("missing input", func(t *testing.T) {
		cfg, dir := batchConfig(t)
		cfg.Input = filepath.Join(dir, "missing.json")
		assert.Error(t, run(context.Background(), cfg, logger, &bytes.Buffer{}))
	})

	t.Run("missing devis", func(t *testing.T) {
		cfg, dir := batchConfig(t)
		cfg.Devis = filepath.Join(dir, "missing.txt")
		assert.ErrorContains(t, run(context.Background(), cfg, logger, &bytes.Buffer{}), "failed to read devis")
	})
}
