package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/forgefit/forge/internal/app"
	"github.com/forgefit/forge/internal/config"
	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/logging"
	"github.com/forgefit/forge/internal/mcp"
	"github.com/forgefit/forge/internal/metrics"
	"github.com/forgefit/forge/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	webDir := flag.String("web", "", "directory with the built frontend to serve")
	migrateOnly := flag.Bool("migrate-only", false, "open the store (running migrations) and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log)
	log.Info("Forge starting", "version", Version, "storage", cfg.Storage.Backend)

	ctx := context.Background()
	store, err := kv.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	reg := metrics.NewRegistry()
	m := metrics.NewManager("forge", "api", reg)

	svc, err := app.Build(ctx, cfg, store, m, log)
	if err != nil {
		log.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	if cfg.Exercises.Refresh {
		go svc.RefreshExercises(refreshCtx, log)
	}

	deps := svc.ServerDeps(cfg.Auth.APIKey, m)
	deps.Gatherer = reg
	srv := server.New(deps, log)

	mcpSrv := mcp.New(svc.DataSource(), Version, cfg.Clock.Location(), log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv))

	if *webDir != "" {
		srv.SetFrontend(os.DirFS(*webDir))
		log.Info("serving frontend", "dir", *webDir)
	}

	listener, closeListener, err := listen(cfg, log)
	if err != nil {
		log.Error("listen failed", "error", err)
		os.Exit(1)
	}
	defer closeListener()

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	cancelRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// listen opens either a tailnet listener or a plain TCP one.
func listen(cfg *config.Config, log *slog.Logger) (net.Listener, func(), error) {
	if cfg.Tailscale.Enabled {
		ts := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := ts.Start(); err != nil {
			return nil, nil, fmt.Errorf("tsnet start: %w", err)
		}
		ln, err := ts.Listen("tcp", ":80")
		if err != nil {
			ts.Close()
			return nil, nil, fmt.Errorf("tsnet listen: %w", err)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
		return ln, func() { ts.Close() }, nil
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	return ln, func() {}, nil
}
