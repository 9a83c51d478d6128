package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/forgefit/forge/internal/app"
	"github.com/forgefit/forge/internal/config"
	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/logging"
	"github.com/forgefit/forge/internal/mcp"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	serverURL := flag.String("server", "", "forge server URL for remote mode (e.g. https://forge.tail1234.ts.net)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("forge-mcp", Version)
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol.
	log := slog.New(logging.NewHandler(cfg.Log, os.Stderr))

	var ds mcp.DataSource
	if *serverURL != "" {
		ds = mcp.NewHTTPClient(*serverURL)
		log.Info("mcp remote mode", "server", *serverURL)
	} else {
		ctx := context.Background()
		store, err := kv.Open(ctx, cfg.Storage, log)
		if err != nil {
			log.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		svc, err := app.Build(ctx, cfg, store, nil, log)
		if err != nil {
			log.Error("failed to build services", "error", err)
			os.Exit(1)
		}
		ds = svc.DataSource()
		log.Info("mcp local mode", "storage", cfg.Storage.Backend)
	}

	s := mcp.New(ds, Version, cfg.Clock.Location(), log)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
