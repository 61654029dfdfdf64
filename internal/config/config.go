// Package config loads scraper and server settings.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults
//  2. an optional YAML file
//  3. environment variables (.env.local and .env are loaded first when present)
//  4. command-line flags bound with BindFlags
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	FetcherBrowser = "browser"
	FetcherStatic  = "static"
)

type Config struct {
	BaseURL        string        `yaml:"base_url"`
	MenuPath       string        `yaml:"menu_path"`
	OutputPath     string        `yaml:"output_path"`
	Fetcher        string        `yaml:"fetcher"`
	Headless       bool          `yaml:"headless"`
	NavTimeout     time.Duration `yaml:"nav_timeout"`
	ListingSettle  time.Duration `yaml:"listing_settle"`
	PageSettle     time.Duration `yaml:"page_settle"`
	UserAgent      string        `yaml:"user_agent"`
	Incremental    bool          `yaml:"incremental"`
	RespectRobots  bool          `yaml:"respect_robots"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	DatabaseDriver string        `yaml:"database_driver"`
	DatabaseURL    string        `yaml:"database_url"`
	Port           string        `yaml:"port"`
	WebDir         string        `yaml:"web_dir"`
	ScrapeSchedule string        `yaml:"scrape_schedule"`
	LogLevel       string        `yaml:"log_level"`
}

func Default() Config {
	return Config{
		BaseURL:       "https://marleyspoon.de",
		MenuPath:      "/menu",
		OutputPath:    "data/recipes.json",
		Fetcher:       FetcherBrowser,
		Headless:      true,
		NavTimeout:    45 * time.Second,
		ListingSettle: 2500 * time.Millisecond,
		PageSettle:    800 * time.Millisecond,
		Incremental:   true,
		RatePerSecond: 1,
		Port:          "8080",
		WebDir:        "web",
		LogLevel:      "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("BASE_URL", &cfg.BaseURL)
	str("MENU_PATH", &cfg.MenuPath)
	str("OUTPUT_PATH", &cfg.OutputPath)
	str("FETCHER", &cfg.Fetcher)
	boolean("HEADLESS", &cfg.Headless)
	duration("NAV_TIMEOUT", &cfg.NavTimeout)
	duration("LISTING_SETTLE", &cfg.ListingSettle)
	duration("PAGE_SETTLE", &cfg.PageSettle)
	str("USER_AGENT", &cfg.UserAgent)
	boolean("INCREMENTAL", &cfg.Incremental)
	boolean("RESPECT_ROBOTS", &cfg.RespectRobots)
	if v, ok := os.LookupEnv("RATE_PER_SECOND"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RATE_PER_SECOND: %w", err))
		} else {
			cfg.RatePerSecond = f
		}
	}
	str("DATABASE_DRIVER", &cfg.DatabaseDriver)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("PORT", &cfg.Port)
	str("WEB_DIR", &cfg.WebDir)
	str("SCRAPE_SCHEDULE", &cfg.ScrapeSchedule)
	str("LOG_LEVEL", &cfg.LogLevel)

	return errors.Join(errs...)
}

// BindFlags registers flags whose defaults are the current values, so parsed
// flags override everything loaded before.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.BaseURL, "base-url", c.BaseURL, "site root")
	fs.StringVar(&c.MenuPath, "menu-path", c.MenuPath, "listing page path")
	fs.StringVar(&c.OutputPath, "out", c.OutputPath, "recipes JSON file")
	fs.StringVar(&c.Fetcher, "fetcher", c.Fetcher, "page fetcher: browser or static")
	fs.BoolVar(&c.Headless, "headless", c.Headless, "run the browser headless")
	fs.DurationVar(&c.NavTimeout, "nav-timeout", c.NavTimeout, "per-page navigation timeout")
	fs.BoolVar(&c.Incremental, "incremental", c.Incremental, "skip recipes already in the output file")
	fs.BoolVar(&c.RespectRobots, "respect-robots", c.RespectRobots, "check robots.txt before fetching")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}

func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("invalid base url %q", c.BaseURL))
	}
	switch c.Fetcher {
	case FetcherBrowser, FetcherStatic:
	default:
		errs = append(errs, fmt.Errorf("unknown fetcher %q", c.Fetcher))
	}
	if c.NavTimeout <= 0 {
		errs = append(errs, errors.New("nav timeout must be positive"))
	}
	if c.ListingSettle < 0 || c.PageSettle < 0 {
		errs = append(errs, errors.New("settle delays must not be negative"))
	}
	if c.OutputPath == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if c.RatePerSecond < 0 {
		errs = append(errs, errors.New("rate per second must not be negative"))
	}
	switch c.DatabaseDriver {
	case "":
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("database url is required for driver %s", c.DatabaseDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.DatabaseDriver))
	}
	if c.ScrapeSchedule != "" {
		if _, err := cron.ParseStandard(c.ScrapeSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid scrape schedule: %w", err))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ListingURL is the absolute URL of the menu page.
func (c Config) ListingURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.MenuPath, "/")
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger returns the JSON logger used by every binary.
func NewLogger(level string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
