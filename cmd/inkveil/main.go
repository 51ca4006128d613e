package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/inkveil/inkveil/internal/bridge"
	"github.com/inkveil/inkveil/internal/config"
	"github.com/inkveil/inkveil/internal/detect"
	"github.com/inkveil/inkveil/internal/extract"
	"github.com/inkveil/inkveil/internal/logger"
	"github.com/inkveil/inkveil/internal/mcp"
	"github.com/inkveil/inkveil/internal/render"
	"github.com/inkveil/inkveil/internal/session"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// buildExtractor assembles the vision extractor from the configured
// provider chain. A missing API key yields a nil extractor; the tools
// that need one report it at call time.
func buildExtractor(cfg *config.Config, zl *zap.Logger) session.Extractor {
	if cfg.APIKey == "" {
		return nil
	}

	providers := []extract.Provider{{
		Name:    "primary",
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}}
	if cfg.FallbackModel != "" {
		providers = append(providers, extract.Provider{
			Name:    "fallback",
			APIKey:  cfg.APIKey,
			BaseURL: cfg.FallbackBaseURL,
			Model:   cfg.FallbackModel,
		})
	}

	return extract.NewExtractor(providers, zl,
		extract.WithBatchSize(cfg.BatchSize),
		extract.WithMaxPages(cfg.MaxExportPages),
		extract.WithParallelism(cfg.Parallelism),
	)
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, zl *zap.Logger) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		zl.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()

		if err := <-serverErrCh; err != nil {
			zl.Error("server shutdown with error", zap.Error(err))
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			zl.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	zl.Info("server stopped")
}

// runStdioMode handles stdio mode execution. The parent process owns
// the lifecycle; we exit when stdin closes.
func runStdioMode(ctx context.Context, server *mcp.Server, zl *zap.Logger) {
	if err := server.Run(ctx); err != nil {
		zl.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	zl, err := logger.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.IsDebug() && cfg.IsServerMode() {
		zl.Debug("starting with configuration", zap.String("config", cfg.String()))
	}

	renderer := render.NewPDFRenderer(cfg.MaxFileSize)

	detectCfg := detect.DefaultConfig()
	detectCfg.TopRegionFraction = cfg.TopRegionFraction
	detectCfg.RectPadding = cfg.RectPadding
	detector := detect.NewDetector(detectCfg)

	sess := session.NewSession(renderer, detector, session.Options{
		LineTolerance:  cfg.LineTolerance,
		MinZoom:        cfg.MinZoom,
		MaxZoom:        cfg.MaxZoom,
		MinRectSize:    cfg.MinRectSize,
		ComposeWorkers: cfg.Parallelism,
	}, zl)

	// The bridge stays hostless until an embedding host posts a
	// handshake; exports then keep their results local.
	b := bridge.NewBridge(nil, cfg.AllowedOrigins, zl)

	server, err := mcp.NewServer(cfg, sess, buildExtractor(cfg, zl), b, zl)
	if err != nil {
		zl.Fatal("failed to create MCP server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server, zl)
	} else {
		runStdioMode(ctx, server, zl)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("inkveil statement redaction server\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
