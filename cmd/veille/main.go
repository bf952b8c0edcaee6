package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matthewjhunter/veille"
	"github.com/matthewjhunter/veille/internal/logging"
	"github.com/matthewjhunter/veille/internal/output"
	"github.com/matthewjhunter/veille/internal/storage"
)

var (
	configPath   string
	envFile      string
	cfg          *storage.Config
	logger       *slog.Logger
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "veille",
		Short:         "Competitive monitoring: watch sources, analyze articles with an LLM, chart the results",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yaml", "config file path (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(topicCmd())
	rootCmd.AddCommand(sourceCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(cardsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the dotenv file, then the config file, then applies
// environment overrides.
func loadConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var err error
	cfg, err = storage.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Debug("config loaded", "path", configPath, "config", cfg.String())
	return nil
}

// openEngine builds the engine from the loaded config. reg may be nil.
func openEngine(reg prometheus.Registerer) (*veille.Engine, error) {
	return veille.NewEngine(veille.EngineConfig{
		Config:     cfg,
		Logger:     logger,
		Registerer: reg,
	})
}

func newFormatter() (*output.Formatter, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		Long:  "Write the default configuration to --config. A .toml extension selects TOML, anything else YAML.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			data, err := storage.DefaultConfig().Marshal(configPath)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
