// =============================================================================
// agentwatch entry point
// =============================================================================
// Usage:
//
//	agentwatch chat                          # multi-agent conversation
//	agentwatch assistant --config cfg.yaml   # single agent with tools
//	agentwatch version
// =============================================================================

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BaSui01/agentwatch/config"
	"github.com/BaSui01/agentwatch/internal/server"
	"github.com/BaSui01/agentwatch/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	modeChat      = "chat"
	modeAssistant = "assistant"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case modeChat, modeAssistant:
		if err := runConsole(os.Args[1], os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "agentwatch: %v\n", err)
			os.Exit(1)
		}
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// Console commands
// =============================================================================

func runConsole(mode string, args []string) error {
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML or JSON)")
	_ = fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelProviders, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()
	logger = otelProviders.AttachLogger(logger)

	logger.Info("starting agentwatch",
		zap.String("mode", mode),
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	provider := newProvider(cfg.LLM, logger)
	console, err := buildConsole(mode, cfg, provider, otelProviders, logger, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if registry := otelProviders.PrometheusRegistry(); registry != nil {
		mgr := server.NewManager(server.NewMetricsHandler(registry), server.ConfigFrom(cfg.Metrics), logger)
		g.Go(func() error { return mgr.Run(gctx) })
	}
	g.Go(func() error {
		// Leaving the console stops the metrics server too.
		defer cancel()
		return console.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("agentwatch stopped")
	return nil
}

// =============================================================================
// Version and help
// =============================================================================

func printVersion() {
	fmt.Printf("agentwatch %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`agentwatch - observable multi-agent conversations

Usage:
  agentwatch <command> [options]

Commands:
  chat        Multi-agent conversation (ends on approval or turn cap)
  assistant   Single assistant with the Lights tools
  version     Show version information
  help        Show this help message

Options for 'chat' and 'assistant':
  --config <path>   Path to configuration file (YAML or JSON)

Environment overrides use the AGENTWATCH_ prefix, for example:
  AGENTWATCH_LLM_ENDPOINT, AGENTWATCH_LLM_API_KEY, AGENTWATCH_CHAT_MAX_TURNS,
  AGENTWATCH_TELEMETRY_ENABLED, AGENTWATCH_TELEMETRY_EXPORTER

Examples:
  agentwatch chat
  agentwatch assistant --config env.local.json
  agentwatch version`)
}

// =============================================================================
// Logger
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
