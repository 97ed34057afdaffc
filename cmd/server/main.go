package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quill/internal/config"
)

var (
	flagPort    string
	flagStorage string
	flagSeed    bool
)

// rootCmd serves the API when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "quill",
	Short:         "Quill: a social blogging backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo data into the configured database and exit",
	RunE:  runSeed,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "Port to listen on (overrides PORT)")
	rootCmd.PersistentFlags().StringVarP(&flagStorage, "storage", "s", "", "Storage backend: memory, sqlite or postgres (overrides STORAGE)")
	rootCmd.PersistentFlags().BoolVar(&flagSeed, "seed", false, "Load demo data before serving (overrides SEED)")
	rootCmd.AddCommand(serveCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("quill")
	}
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if flagStorage != "" {
		cfg.Storage = strings.ToLower(flagStorage)
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = flagSeed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
