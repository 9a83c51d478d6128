package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgefit/forge/internal/config"
	"github.com/forgefit/forge/internal/logging"
	"github.com/forgefit/forge/internal/metrics"
	"github.com/forgefit/forge/internal/offline"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
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
	log.Info("Forge offline proxy starting", "version", Version, "upstream", cfg.Offline.Upstream)

	reg := metrics.NewRegistry()
	m := metrics.NewManager("forge", "offline", reg)

	router, err := offline.New(offline.Options{
		Upstream:       cfg.Offline.Upstream,
		NetworkTimeout: cfg.Offline.NetworkTimeout,
		CriticalPaths:  cfg.Offline.CriticalPaths,
		CacheSizeBytes: cfg.Offline.CacheSizeMB << 20,
		MaxBodyBytes:   int64(cfg.Offline.MaxBodyMB) << 20,
		Metrics:        m,
	}, log)
	if err != nil {
		log.Error("failed to create router", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if _, err := router.Register(ctx, cfg.Offline.Version); err != nil {
		log.Error("worker registration failed", "error", err)
		os.Exit(1)
	}

	mux := chi.NewRouter()
	mux.Handle("/sw", router.Hub())
	mux.Get("/sw/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(router.Registration().Status())
	})
	// A deploy registers the new version; pages pick it up via SKIP_WAITING.
	mux.Post("/sw/register", func(w http.ResponseWriter, r *http.Request) {
		version := r.URL.Query().Get("version")
		if version == "" {
			http.Error(w, "version is required", http.StatusBadRequest)
			return
		}
		worker, err := router.Register(r.Context(), version)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"version": worker.Version, "state": string(worker.State())})
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/*", router)

	addr := fmt.Sprintf("%s:%d", cfg.Offline.Host, cfg.Offline.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("offline proxy listening", "addr", addr, "worker", cfg.Offline.Version)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	router.Close()
	log.Info("offline proxy stopped")
}
