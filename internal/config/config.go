package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// Detection defaults
	DefaultTopRegionFraction = 0.28
	DefaultLineTolerance     = 3.0
	DefaultRectPadding       = 2.0
	DefaultMinRectSize       = 4.0

	// Viewport zoom clamp
	DefaultMinZoom = 0.1
	DefaultMaxZoom = 4.0

	// Extraction defaults
	DefaultBatchSize      = 4
	DefaultMaxExportPages = 30
	DefaultParallelism    = 3

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the statement redaction server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Statement configuration
	StatementDirectory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum statement file size in bytes

	// Detection configuration
	TopRegionFraction float64
	LineTolerance     float64
	RectPadding       float64
	MinRectSize       float64

	// Viewport configuration
	MinZoom float64
	MaxZoom float64

	// Extraction configuration
	APIKey          string
	BaseURL         string
	Model           string
	FallbackBaseURL string
	FallbackModel   string
	BatchSize       int
	MaxExportPages  int
	Parallelism     int

	// Host bridge configuration
	AllowedOrigins []string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:               ModeStdio, // Default to stdio mode for MCP compatibility
		Host:               DefaultHost,
		Port:               DefaultPort,
		StatementDirectory: currentDir,
		Version:            "1.0.0",
		ServerName:         "inkveil",
		LogLevel:           DefaultLogLevel,
		MaxFileSize:        DefaultMaxFileSize,
		TopRegionFraction:  DefaultTopRegionFraction,
		LineTolerance:      DefaultLineTolerance,
		RectPadding:        DefaultRectPadding,
		MinRectSize:        DefaultMinRectSize,
		MinZoom:            DefaultMinZoom,
		MaxZoom:            DefaultMaxZoom,
		Model:              "gpt-4o-mini",
		BatchSize:          DefaultBatchSize,
		MaxExportPages:     DefaultMaxExportPages,
		Parallelism:        DefaultParallelism,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.StatementDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.StatementDirectory); err == nil {
			cfg.StatementDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("INKVEIL")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.StatementDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("topregion", cfg.TopRegionFraction)
	viper.SetDefault("linetolerance", cfg.LineTolerance)
	viper.SetDefault("minzoom", cfg.MinZoom)
	viper.SetDefault("maxzoom", cfg.MaxZoom)
	viper.SetDefault("apikey", cfg.APIKey)
	viper.SetDefault("baseurl", cfg.BaseURL)
	viper.SetDefault("model", cfg.Model)
	viper.SetDefault("fallbackbaseurl", cfg.FallbackBaseURL)
	viper.SetDefault("fallbackmodel", cfg.FallbackModel)
	viper.SetDefault("batchsize", cfg.BatchSize)
	viper.SetDefault("maxexportpages", cfg.MaxExportPages)
	viper.SetDefault("parallelism", cfg.Parallelism)
	viper.SetDefault("allowedorigins", "")
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.StatementDirectory, "Directory containing statement files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum statement file size in bytes")
	pflag.Float64("topregion", cfg.TopRegionFraction, "Fraction of page height treated as the header region")
	pflag.Float64("linetolerance", cfg.LineTolerance, "Vertical tolerance for grouping fragments into lines")
	pflag.Float64("minzoom", cfg.MinZoom, "Minimum editor zoom factor")
	pflag.Float64("maxzoom", cfg.MaxZoom, "Maximum editor zoom factor")
	pflag.String("baseurl", cfg.BaseURL, "Extraction API base URL (empty for provider default)")
	pflag.String("model", cfg.Model, "Extraction vision model")
	pflag.String("fallbackbaseurl", cfg.FallbackBaseURL, "Fallback extraction API base URL")
	pflag.String("fallbackmodel", cfg.FallbackModel, "Fallback extraction vision model")
	pflag.Int("batchsize", cfg.BatchSize, "Pages per extraction request")
	pflag.Int("maxexportpages", cfg.MaxExportPages, "Maximum pages per export")
	pflag.Int("parallelism", cfg.Parallelism, "Extraction batches in flight")
	pflag.String("allowedorigins", "", "Comma-separated host origins allowed for the embedding bridge")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "loglevel", "maxfilesize",
		"topregion", "linetolerance", "minzoom", "maxzoom",
		"baseurl", "model", "fallbackbaseurl", "fallbackmodel",
		"batchsize", "maxexportpages", "parallelism", "allowedorigins",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ninkveil - statement redaction and extraction server\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/statements               "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/statements # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_MODE           Server mode\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_DIR            Statement directory\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_LOGLEVEL       Log level\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_MAXFILESIZE    Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_APIKEY         Extraction API key\n")
		fmt.Fprintf(os.Stderr, "  INKVEIL_ALLOWEDORIGINS Bridge origin allowlist\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.StatementDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.TopRegionFraction = viper.GetFloat64("topregion")
	cfg.LineTolerance = viper.GetFloat64("linetolerance")
	cfg.MinZoom = viper.GetFloat64("minzoom")
	cfg.MaxZoom = viper.GetFloat64("maxzoom")
	cfg.APIKey = viper.GetString("apikey")
	cfg.BaseURL = viper.GetString("baseurl")
	cfg.Model = viper.GetString("model")
	cfg.FallbackBaseURL = viper.GetString("fallbackbaseurl")
	cfg.FallbackModel = viper.GetString("fallbackmodel")
	cfg.BatchSize = viper.GetInt("batchsize")
	cfg.MaxExportPages = viper.GetInt("maxexportpages")
	cfg.Parallelism = viper.GetInt("parallelism")
	cfg.AllowedOrigins = splitOrigins(viper.GetString("allowedorigins"))
}

// splitOrigins parses a comma-separated origin list, dropping blanks.
func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate statement directory
	if c.StatementDirectory == "" {
		return errors.New("statement directory cannot be empty")
	}

	// Check if statement directory exists, create if it doesn't
	if _, err := os.Stat(c.StatementDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.StatementDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create statement directory %s: %w", c.StatementDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access statement directory %s: %w", c.StatementDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	// Validate detection knobs
	if c.TopRegionFraction <= 0 || c.TopRegionFraction > 1 {
		return errors.New("top region fraction must be in (0, 1]")
	}
	if c.LineTolerance <= 0 {
		return errors.New("line tolerance must be positive")
	}
	if c.RectPadding < 0 {
		return errors.New("rectangle padding cannot be negative")
	}
	if c.MinRectSize <= 0 {
		return errors.New("minimum rectangle size must be positive")
	}

	// Validate zoom clamp
	if c.MinZoom <= 0 || c.MaxZoom <= c.MinZoom {
		return errors.New("zoom clamp requires 0 < minzoom < maxzoom")
	}

	// Validate extraction settings
	if c.BatchSize < 1 {
		return errors.New("batch size must be at least 1")
	}
	if c.MaxExportPages < c.BatchSize {
		return errors.New("maximum export pages cannot be below the batch size")
	}
	if c.Parallelism < 1 {
		return errors.New("parallelism must be at least 1")
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
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, StatementDirectory: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.StatementDirectory, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
