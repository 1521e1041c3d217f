package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/wormnetgo/server/internal/config"
	"github.com/wormnetgo/server/internal/lobby"
	"github.com/wormnetgo/server/internal/registry"
)

const ConfigPath = "config/wormnetd.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("wormnet lobby server starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("WORMNET_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port)

	// Session registry shared by every connection
	reg := registry.New()
	defer reg.Stop()

	server := lobby.NewServer(cfg, reg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting lobby server")
		if err := server.Run(gctx); err != nil {
			return fmt.Errorf("lobby server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
