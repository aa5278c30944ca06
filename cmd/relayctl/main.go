// Command relayctl runs either end of a parameter relay session: an engine
// simulator serving the configured parameters and meters, or a surface that
// watches or sets them, optionally driven by a MIDI controller.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/leandrodaf/paramrelay/internal/config"
	"github.com/leandrodaf/paramrelay/internal/setup"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	envPath    string
	logLevel   string

	cfg config.Config
	log contracts.Logger
)

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Parameter relay engine simulator and control surface",
	Long: `relayctl speaks the parameter relay protocol over a websocket.

"serve" plays the engine: it answers every relay handshake with the
configured parameter properties and values, and broadcasts meter levels.
"watch" and "set" play the control surface.`,
	SilenceUsage:      true,
	PersistentPreRunE: initialize,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (default: built-in GRAIN layout)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(setCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func initialize(cmd *cobra.Command, _ []string) error {
	if err := loadDotEnv(envPath); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}

	options, err := setup.ApplyDefaultOptions(
		contracts.WithLogLevel(c.Level()),
		contracts.WithLogFile(c.LogFile),
	)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	cfg = c
	log = options.Logger
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// loadDotEnv loads path into the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
