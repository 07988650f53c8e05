package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"
	ModeBatch  = "batch"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 200 * 1024 * 1024 // 200MB

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "PLAN"
)

// Config holds all configuration for the plan extractor
type Config struct {
	// Server configuration
	Mode string // "stdio", "server" or "batch"
	Host string
	Port int

	// Directory confines the paths accepted by the MCP tools
	Directory string

	// Batch configuration
	Input       string
	Output      string // JSON document, stdout when empty
	XLSXOutput  string
	RulesFile   string
	GroundTruth string
	Devis       string
	ReportPath  string

	// Integrations
	DatabaseURL string
	MetricsAddr string

	// Application configuration
	ConfigFile  string
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum input file size in bytes

	Tuning plan.Settings
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:        ModeStdio,
		Host:        DefaultHost,
		Port:        DefaultPort,
		Directory:   currentDir,
		Version:     "1.0.0",
		ServerName:  "mcp-plan-extractor",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
		Tuning:      plan.DefaultSettings(),
	}
}

// LoadFromFlags parses the process arguments and returns a configuration
func LoadFromFlags() (*Config, error) {
	return Load(os.Args[1:], os.Stderr)
}

// Load builds a configuration from args, PLAN_* environment variables and
// the optional --config file, in decreasing precedence. Usage goes to out.
func Load(args []string, out io.Writer) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setupViperEnvironment(v, cfg)
	fs := defineCommandLineFlags(cfg)
	fs.SetOutput(out)
	setupUsageMessage(fs, out)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	if rest := fs.Args(); len(rest) > 0 && !v.IsSet("input") {
		v.Set("input", rest[0])
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	if err := populateConfigFromViper(v, cfg); err != nil {
		return nil, err
	}

	if cfg.Directory != "" {
		if expanded, err := filepath.Abs(cfg.Directory); err == nil {
			cfg.Directory = expanded
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures the environment prefix and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.Directory)
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("max-file-size", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("plan-extractor", pflag.ContinueOnError)

	fs.String("mode", cfg.Mode, "Run mode: 'stdio' for MCP standard I/O, 'server' for streamable HTTP, 'batch' for one extraction")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.String("dir", cfg.Directory, "Directory the MCP tools may read from")
	fs.String("config", "", "Config file (YAML or JSON) with a 'tuning' section")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum input file size in bytes")

	fs.StringP("input", "i", "", "Plan set PDF or vector record file (batch mode)")
	fs.StringP("output", "o", "", "Output JSON document (stdout when empty)")
	fs.String("xlsx", "", "Also write the document as an XLSX workbook")
	fs.String("rules", "", "Stable rules YAML overriding the built-in room vocabulary")
	fs.String("ground-truth", "", "Ground truth YAML/JSON to validate against")
	fs.String("devis", "", "Specification corpus (YAML/JSON sections or plain text) to cross-validate against")
	fs.String("report", "", "Markdown validation report path")
	fs.Int("workers", 0, "Parallel page workers (0 keeps the tuning value)")

	fs.String("database-url", "", "Postgres URL; runs are persisted when set")
	fs.String("metrics-addr", "", "Address serving Prometheus metrics at /metrics")
	return fs
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, out io.Writer) {
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage of plan-extractor:\n")
		fmt.Fprintf(out, "\nPlan Extractor - rooms, doors and dimensions from construction plan PDFs\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  plan-extractor --dir=/plans                                # MCP over stdio\n")
		fmt.Fprintf(out, "  plan-extractor --mode=server --dir=/plans --port=8081      # MCP over HTTP\n")
		fmt.Fprintf(out, "  plan-extractor --mode=batch -i A-101.pdf -o rooms.json     # one extraction\n")
		fmt.Fprintf(out, "  plan-extractor --mode=batch -i A-101.pdf --ground-truth gt.yaml --report report.md\n")
		fmt.Fprintf(out, "\nEnvironment Variables:\n")
		fmt.Fprintf(out, "  PLAN_MODE, PLAN_HOST, PLAN_PORT, PLAN_DIR, PLAN_LOG_LEVEL, PLAN_MAX_FILE_SIZE,\n")
		fmt.Fprintf(out, "  PLAN_WORKERS, PLAN_DATABASE_URL, PLAN_METRICS_ADDR\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) error {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.Directory = v.GetString("dir")
	cfg.ConfigFile = v.GetString("config")
	cfg.LogLevel = strings.ToLower(v.GetString("log-level"))
	cfg.MaxFileSize = v.GetInt64("max-file-size")

	cfg.Input = v.GetString("input")
	cfg.Output = v.GetString("output")
	cfg.XLSXOutput = v.GetString("xlsx")
	cfg.RulesFile = v.GetString("rules")
	cfg.GroundTruth = v.GetString("ground-truth")
	cfg.Devis = v.GetString("devis")
	cfg.ReportPath = v.GetString("report")

	cfg.DatabaseURL = v.GetString("database-url")
	cfg.MetricsAddr = v.GetString("metrics-addr")

	if v.IsSet("tuning") {
		if err := v.UnmarshalKey("tuning", &cfg.Tuning); err != nil {
			return fmt.Errorf("invalid tuning section: %w", err)
		}
	}
	if workers := v.GetInt("workers"); workers > 0 {
		cfg.Tuning.Pipeline.Workers = workers
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer && c.Mode != ModeBatch {
		return errors.New("mode must be one of 'stdio', 'server' or 'batch'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Mode == ModeBatch {
		if c.Input == "" {
			return errors.New("batch mode requires an input file")
		}
	} else {
		if c.Directory == "" {
			return errors.New("directory cannot be empty")
		}
		if _, err := os.Stat(c.Directory); os.IsNotExist(err) {
			if err := os.MkdirAll(c.Directory, DefaultDirPerm); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", c.Directory, err)
			}
		} else if err != nil {
			return fmt.Errorf("cannot access directory %s: %w", c.Directory, err)
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if err := c.Tuning.Validate(); err != nil {
		return fmt.Errorf("invalid tuning: %w", err)
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Directory: %s, LogLevel: %s, MaxFileSize: %d, Workers: %d, Database: %t}",
		c.Mode, c.Host, c.Port, c.Directory, c.LogLevel, c.MaxFileSize, c.Tuning.Pipeline.Workers, c.DatabaseURL != "")
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// IsBatchMode returns true for a single command line extraction
func (c *Config) IsBatchMode() bool {
	return c.Mode == ModeBatch
}
