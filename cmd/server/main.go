package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/baxromumarov/recipe-hunter/internal/api"
	"github.com/baxromumarov/recipe-hunter/internal/config"
	"github.com/baxromumarov/recipe-hunter/internal/core"
	"github.com/baxromumarov/recipe-hunter/internal/observability"
	"github.com/baxromumarov/recipe-hunter/internal/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg.BindFlags(flag.CommandLine)
	port := flag.String("port", cfg.Port, "HTTP port")
	webDir := flag.String("web", cfg.WebDir, "static front-end directory")
	flag.Parse()
	cfg.Port, cfg.WebDir = *port, *webDir

	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observability.RegisterMetrics(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := store.NewFileStore(cfg.OutputPath)

	if cfg.ScrapeSchedule != "" {
		opts := []core.Option{core.WithIncremental(cfg.Incremental), core.WithLogger(logger)}
		if robots := core.RobotsFromConfig(cfg); robots != nil {
			opts = append(opts, core.WithRobots(robots))
		}
		if cfg.DatabaseDriver != "" {
			mirror, err := store.NewMirror(cfg.DatabaseDriver, cfg.DatabaseURL)
			if err == nil {
				err = mirror.RunMigrations(ctx)
			}
			if err != nil {
				slog.Warn("sql mirror disabled", "driver", cfg.DatabaseDriver, "error", err)
			} else {
				defer mirror.Close()
				opts = append(opts, core.WithMirror(mirror))
			}
		}

		svc, err := core.NewIngestionService(core.FetcherFromConfig(cfg), files, cfg.BaseURL, cfg.ListingURL(), opts...)
		if err != nil {
			slog.Error("failed to build pipeline", "error", err)
			os.Exit(1)
		}
		scheduler, err := core.NewScheduler(cfg.ScrapeSchedule, svc, logger)
		if err != nil {
			slog.Error("failed to schedule scrapes", "error", err)
			os.Exit(1)
		}
		scheduler.Start(ctx)
		slog.Info("scrape schedule active", "schedule", cfg.ScrapeSchedule)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewServer(files, cfg.WebDir, reg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Port, "recipes", cfg.OutputPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
