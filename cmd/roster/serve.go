package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/roster"
	"github.com/aretw0/roster/internal/config"
	"github.com/aretw0/roster/internal/presentation/tui"
	"github.com/aretw0/roster/pkg/acceptor"
	httpAdapter "github.com/aretw0/roster/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/roster/pkg/adapters/mcp"
	redisAdapter "github.com/aretw0/roster/pkg/adapters/redis"
	"github.com/aretw0/roster/pkg/registry"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept client sessions and serve the admin API",
	Long: `Starts the session acceptor on the configured listen address together with
the admin HTTP API. MCP over SSE and the Redis presence mirror start when
configured. On SIGINT/SIGTERM new connections are refused, live sessions get
the shutdown grace period to finish and are then killed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Listen = listen
		}
		if admin, _ := cmd.Flags().GetString("admin"); cmd.Flags().Changed("admin") {
			cfg.Admin = admin
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		if cfg.LogFormat != "json" && isTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, roster.Version)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Session listen address (overrides config)")
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	reg, err := registry.CreateInstance(registry.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.DestroyInstance(); err != nil {
			logger.Error("Registry teardown failed", "err", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	acc := acceptor.New(reg, acceptor.WithLogger(logger))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- acc.Serve(ctx, ln)
	}()

	var admin *http.Server
	adminErr := make(chan error, 1)
	if cfg.Admin != "" {
		admin = &http.Server{
			Addr: cfg.Admin,
			Handler: httpAdapter.NewHandler(reg,
				httpAdapter.WithLogger(logger),
				httpAdapter.WithStatsInterval(cfg.StatsInterval),
			),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("Admin API listening", "address", cfg.Admin)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				adminErr <- err
			}
		}()
	}

	var background sync.WaitGroup
	if cfg.MCPPort > 0 {
		mcpServer := mcpAdapter.NewServer(reg, mcpAdapter.WithLogger(logger))
		background.Add(1)
		go func() {
			defer background.Done()
			if err := mcpServer.ServeSSE(ctx, cfg.MCPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("MCP server failed", "err", err)
			}
		}()
	}

	var mirror *redisAdapter.Mirror
	if cfg.Redis.Addr != "" {
		mirror = redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, reg,
			redisAdapter.WithPrefix(cfg.Redis.Prefix),
			redisAdapter.WithTTL(cfg.Redis.TTL),
			redisAdapter.WithLogger(logger),
		)
		logger.Info("Mirroring sessions to redis", "address", cfg.Redis.Addr, "replica", mirror.Replica())
		background.Add(1)
		go func() {
			defer background.Done()
			mirror.Run(ctx, cfg.Redis.Interval)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		runErr = err
		serveErr = nil
	case err := <-adminErr:
		runErr = fmt.Errorf("admin API failed: %w", err)
	}
	cancel()
	if serveErr != nil {
		if err := <-serveErr; err != nil && runErr == nil {
			runErr = err
		}
	}

	if admin != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Admin API did not stop gracefully", "err", err)
			admin.Close()
		}
		cancelShutdown()
	}

	drain(reg, acc, cfg.ShutdownGrace, logger)
	background.Wait()

	if mirror != nil {
		removeCtx, cancelRemove := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mirror.Remove(removeCtx); err != nil {
			logger.Warn("Failed to withdraw replica from redis", "err", err)
		}
		cancelRemove()
		mirror.Close()
	}

	logger.Info("Roster stopped", "threads_created", reg.NumThreadCreated())
	return runErr
}

// drain gives live sessions the grace period to leave, then kills the rest
// and waits for every connection worker.
func drain(reg *registry.Manager, acc *acceptor.Acceptor, grace time.Duration, logger *slog.Logger) {
	if n := reg.SessionCount(); n > 0 {
		logger.Info("Waiting for sessions to finish", "sessions", n, "grace", grace)
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := reg.WaitUntilEmpty(ctx); err != nil {
		killed := acc.KillAll()
		logger.Warn("Grace period expired, killing sessions", "killed", killed)
	}
	acc.Wait()
}
