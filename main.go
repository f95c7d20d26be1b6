package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hannes/pagepack/config"
	"github.com/hannes/pagepack/telemetry"
)

// globalOptions holds the flags shared by every command
type globalOptions struct {
	configPath string
	mode       string
	noColor    bool
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file from current directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	telemetry.Flush(2 * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pagepack: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "pagepack",
		Short:         "Bundle a web page with esbuild and serve it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a JSON or YAML config file")
	cmd.PersistentFlags().StringVar(&opts.mode, "mode", "", "Build mode: development or production (default from NODE_ENV)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored build reports")

	cmd.AddCommand(
		buildCmd(opts),
		serveCmd(opts),
		devCmd(opts),
		historyCmd(opts),
	)
	return cmd
}

// loadConfig applies defaults, then the config file, then the environment, then global flags
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if opts.configPath != "" {
		if err := config.LoadFile(opts.configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadConfigFromEnv(cfg); err != nil {
		return nil, err
	}

	if opts.mode != "" {
		mode, err := config.ParseMode(opts.mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}
	if opts.noColor {
		cfg.Stats.Colors = false
	}
	return cfg, nil
}

// finishConfig validates cfg and starts error reporting
func finishConfig(cfg *config.Config) error {
	if err := cfg.ValidateConfig(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := telemetry.Init(cfg.Sentry, cfg.Mode); err != nil {
		log.Printf("[Telemetry] %v", err)
	}
	return nil
}
