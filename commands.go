package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/hannes/pagepack/bundler"
	"github.com/hannes/pagepack/config"
	"github.com/hannes/pagepack/report"
	"github.com/hannes/pagepack/server"
	"github.com/hannes/pagepack/store"
	"github.com/hannes/pagepack/telemetry"
)

func buildCmd(opts *globalOptions) *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "build",
		Short: "Bundle the entry points into the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if output != "" {
				cfg.Output.Path = output
			}
			if err := finishConfig(cfg); err != nil {
				return err
			}
			return runBuild(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "", "Output directory (overrides output.path)")
	return c
}

// runBuild runs one build, prints its report and records it
func runBuild(ctx context.Context, cfg *config.Config, out io.Writer) error {
	b, err := bundler.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bundler: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Printf("[Bundler] Failed to close: %v", err)
		}
	}()

	builds := openStore(ctx, cfg)
	defer closeStore(builds)

	result, err := b.Build(ctx)
	var buildErr *bundler.BuildError
	if err != nil && !errors.As(err, &buildErr) {
		return err
	}

	if err := report.Write(out, result, cfg.Stats.Colors); err != nil {
		log.Printf("Failed to write build report: %v", err)
	}
	if err := builds.SaveBuild(ctx, store.NewRecord(result)); err != nil {
		log.Printf("[Store] Failed to record build %s: %v", result.ID, err)
	}

	if buildErr != nil {
		telemetry.CaptureError(buildErr, map[string]string{
			"build_id": result.ID,
			"mode":     string(result.Mode),
		})
		return buildErr
	}
	return nil
}

func serveCmd(opts *globalOptions) *cobra.Command {
	var port int
	var root string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the built output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if root != "" {
				cfg.Server.Root = root
			}
			if err := finishConfig(cfg); err != nil {
				return err
			}

			var srv *server.Server
			if embeddedAssets && root == "" {
				srv, err = server.NewServerWithEmbedded(cfg, distFiles)
				log.Println("Using embedded assets")
			} else {
				srv, err = server.NewServer(cfg)
			}
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Start(cmd.Context())
		},
	}

	c.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
	c.Flags().StringVar(&root, "root", "", "Directory to serve (overrides server.root)")
	return c
}

func devCmd(opts *globalOptions) *cobra.Command {
	var port int
	var https bool

	c := &cobra.Command{
		Use:   "dev",
		Short: "Build, watch and serve with live reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.DevServer.Port = port
			}
			if https {
				cfg.DevServer.HTTPS = true
			}
			if err := finishConfig(cfg); err != nil {
				return err
			}

			builds := openStore(cmd.Context(), cfg)
			defer closeStore(builds)

			d, err := server.NewDevServer(cfg, builds, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() {
				if err := d.Close(); err != nil {
					log.Printf("[DevServer] Failed to close: %v", err)
				}
			}()
			return d.Start(cmd.Context())
		},
	}

	c.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides dev_server.port)")
	c.Flags().BoolVar(&https, "https", false, "Serve over HTTPS with a local development CA")
	return c
}

func historyCmd(opts *globalOptions) *cobra.Command {
	var limit int
	var prune time.Duration

	c := &cobra.Command{
		Use:   "history",
		Short: "List recent builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := finishConfig(cfg); err != nil {
				return err
			}

			builds, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open build history: %w", err)
			}
			defer closeStore(builds)

			if prune > 0 {
				removed, err := builds.CleanupOldBuilds(cmd.Context(), prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d builds older than %s\n", removed, prune)
			}

			records, err := builds.ListBuilds(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return report.History(cmd.OutOrStdout(), records, cfg.Stats.Colors)
		},
	}

	c.Flags().IntVarP(&limit, "limit", "n", 10, "Number of builds to show")
	c.Flags().DurationVar(&prune, "prune", 0, "Remove builds older than this duration first (e.g. 720h)")
	return c
}

// openStore opens the configured build history, falling back to memory
func openStore(ctx context.Context, cfg *config.Config) store.BuildStore {
	builds, err := store.Open(ctx, cfg.Database)
	if err != nil {
		log.Printf("[Store] Warning: %v", err)
		log.Println("[Store] Using in-memory build history")
		return store.NewMemoryStore()
	}
	return builds
}

func closeStore(builds store.BuildStore) {
	if err := builds.Close(); err != nil {
		log.Printf("[Store] Failed to close: %v", err)
	}
}
