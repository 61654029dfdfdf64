package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/baxromumarov/recipe-hunter/internal/config"
	"github.com/baxromumarov/recipe-hunter/internal/core"
	"github.com/baxromumarov/recipe-hunter/internal/observability"
	"github.com/baxromumarov/recipe-hunter/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code. Deferred cleanup runs before main exits.
func run(args []string) int {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []core.Option{
		core.WithIncremental(cfg.Incremental),
		core.WithLogger(logger),
	}
	if robots := core.RobotsFromConfig(cfg); robots != nil {
		opts = append(opts, core.WithRobots(robots))
	}
	if mirror := openMirror(ctx, cfg); mirror != nil {
		defer func() {
			if err := mirror.Close(); err != nil {
				slog.Warn("closing sql mirror failed", "error", err)
			}
		}()
		opts = append(opts, core.WithMirror(mirror))
	}

	svc, err := core.NewIngestionService(
		core.FetcherFromConfig(cfg),
		store.NewFileStore(cfg.OutputPath),
		cfg.BaseURL,
		cfg.ListingURL(),
		opts...,
	)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		return 1
	}

	res, err := svc.Run(ctx)
	if err != nil {
		slog.Error("scrape run failed", "run_id", res.RunID, "error", err)
		return 1
	}

	fmt.Printf("Saved %d recipes to %s\n", res.Persisted, cfg.OutputPath)
	printSummary(res)
	return 0
}

// openMirror returns nil when the SQL mirror is off or unreachable. The JSON
// file stays the source of truth either way.
func openMirror(ctx context.Context, cfg config.Config) *store.Mirror {
	if cfg.DatabaseDriver == "" {
		return nil
	}
	mirror, err := store.NewMirror(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		slog.Warn("sql mirror disabled", "driver", cfg.DatabaseDriver, "error", err)
		return nil
	}
	if err := mirror.RunMigrations(ctx); err != nil {
		slog.Warn("sql mirror disabled", "driver", cfg.DatabaseDriver, "error", err)
		mirror.Close()
		return nil
	}
	return mirror
}

func printSummary(res core.RunResult) {
	stats := observability.Snapshot()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", res.RunID})
	t.AppendRows([]table.Row{
		{"Links discovered", res.Discovered},
		{"Skipped (known)", res.Skipped},
		{"Scraped", res.Scraped},
		{"Error pages", res.ErrorPages},
		{"Failed", res.Failed},
		{"Persisted", res.Persisted},
		{"Malformed blocks", stats.BlocksDropped},
		{"Avg fetch (s)", fmt.Sprintf("%.2f", stats.FetchSecondsAvg)},
		{"Duration", res.Duration.Round(time.Millisecond).String()},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
