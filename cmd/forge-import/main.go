package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/forgefit/forge/internal/config"
	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/ingest"
	"github.com/forgefit/forge/internal/ingest/alpha"
	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	alphaPath := flag.String("alpha", "", "Alpha Progression CSV export to merge into the history")
	warmups := flag.Bool("warmups", false, "keep warm-up sets from the CSV export")
	importPath := flag.String("import", "", "history JSON to import (replaces the stored history)")
	exportPath := flag.String("export", "", "write the stored history as JSON to this file (- for stdout)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing to the store")
	flag.Parse()

	set := 0
	for _, p := range []string{*alphaPath, *importPath, *exportPath} {
		if p != "" {
			set++
		}
	}
	if set != 1 {
		fmt.Fprintf(os.Stderr, "Usage: forge-import -config config.yaml (-alpha export.csv [-warmups] [-dry-run] | -import history.json | -export history.json)\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stderr keeps stdout clean for -export -.
	log := slog.New(logging.NewHandler(cfg.Log, os.Stderr))

	ctx := context.Background()
	store, err := kv.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	loc := cfg.Clock.Location()
	hist := history.New(store, log, history.WithLocation(loc))

	switch {
	case *alphaPath != "":
		err = importAlpha(ctx, hist, loc, log, *alphaPath, alpha.Options{Warmups: *warmups, DryRun: *dryRun})
	case *importPath != "":
		err = importHistory(ctx, hist, log, *importPath, *dryRun)
	default:
		err = exportHistory(ctx, hist, log, *exportPath)
	}
	if err != nil {
		log.Error("import failed", "error", err)
		store.Close()
		os.Exit(1)
	}
}

func importAlpha(ctx context.Context, hist *history.Store, loc *time.Location, log *slog.Logger, path string, opts alpha.Options) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	if opts.DryRun {
		log.Info("DRY RUN mode: nothing will be written to the store")
	}
	res, err := alpha.NewProvider(hist, loc, log).Ingest(ctx, f, opts)
	if err != nil {
		return err
	}
	printResult(log, res)
	return nil
}

func importHistory(ctx context.Context, hist *history.Store, log *slog.Logger, path string, dryRun bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if dryRun {
		log.Info("dry run: history file read", "bytes", len(data))
		return nil
	}
	res, err := hist.Import(ctx, data)
	if err != nil {
		return err
	}
	log.Info("history imported", "received", res.WorkoutsReceived, "malformed", res.WorkoutsMalformed)
	return nil
}

func exportHistory(ctx context.Context, hist *history.Store, log *slog.Logger, path string) error {
	data, err := hist.Export(ctx)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	log.Info("history exported", "path", path, "bytes", len(data))
	return nil
}

func printResult(log *slog.Logger, res ingest.Result) {
	log.Info("import stats",
		"sessions_received", res.SessionsReceived,
		"workouts_added", res.WorkoutsAdded,
		"workouts_skipped", res.WorkoutsSkipped,
		"sets_received", res.SetsReceived,
		"warmups_skipped", res.WarmupsSkipped,
		"dry_run", res.DryRun,
	)
}
