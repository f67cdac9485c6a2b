package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epiguide/epiguide/db"
	"github.com/epiguide/epiguide/internal/config"
	"github.com/epiguide/epiguide/internal/guideline"
	"github.com/epiguide/epiguide/internal/log"
	"github.com/epiguide/epiguide/internal/observability"
	"github.com/epiguide/epiguide/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve [addr]",
	Short: "Start the HTTP API server",
	Long: `Starts the HTTP server with the browser UI and the JSON API.

The address can be given as a positional argument or with --addr;
it defaults to ` + web.DefaultAddr + `.`,
	Example: `  epiguide serve
  epiguide serve :8080
  epiguide serve --addr 0.0.0.0:8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "server address (host:port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateStorage(); err != nil {
		return fmt.Errorf("validating storage config: %w", err)
	}

	addr, err := resolveServeAddr(cfg, args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{})
	logger.Info("starting epiguide server", "version", AppVersion)

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store, err := newStore(ctx, cfg, guideline.NewQuerier(pool), logger)
	if err != nil {
		return err
	}

	p, err := newPlanner(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	srv := web.NewServer(web.Config{
		Pipeline: p,
		Pool:     pool,
		Logger:   logger,
		Version:  AppVersion,
	})
	return srv.Run(ctx, addr)
}

// resolveServeAddr picks the address: positional arg > --addr flag >
// configured default.
func resolveServeAddr(cfg *config.Config, args []string) (string, error) {
	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	if len(args) > 0 {
		addr = args[0]
	}
	if addr == "" {
		addr = web.DefaultAddr
	}
	if err := validateAddr(addr); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return addr, nil
}
