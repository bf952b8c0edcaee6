// veille-mcp is a standalone MCP server for the veille monitoring engine.
// It opens the same SQLite database as the veille CLI and serves topic,
// source, scan and dashboard tools over stdio. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/matthewjhunter/veille"
	"github.com/matthewjhunter/veille/internal/logging"
	"github.com/matthewjhunter/veille/internal/storage"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "config file path (.yaml or .toml)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	poll := flag.Duration("poll", 0, "scan every topic on this interval (0 disables)")
	flag.Parse()

	if err := run(*configPath, *envFile, *poll); err != nil {
		fmt.Fprintf(os.Stderr, "veille-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, pollInterval time.Duration) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := storage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	engine, err := veille.NewEngine(veille.EngineConfig{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("create veille engine: %w", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPoller(engine, logger, pollInterval)
	p.start(ctx)
	defer p.stop()

	return newServer(engine, logger, p).run(ctx)
}
