package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/recipe-hunter/internal/content"
	"github.com/baxromumarov/recipe-hunter/internal/discovery"
	"github.com/baxromumarov/recipe-hunter/internal/observability"
	"github.com/baxromumarov/recipe-hunter/internal/recipe"
	"github.com/baxromumarov/recipe-hunter/internal/store"
	"github.com/baxromumarov/recipe-hunter/internal/urlutil"
)

// Fetcher returns the HTML of a page. Implementations decide whether scripts
// run before the markup is captured.
type Fetcher interface {
	FetchListing(ctx context.Context, rawURL string) (string, error)
	FetchRecipe(ctx context.Context, rawURL string) (string, error)
	Close() error
}

// FetcherFactory opens a fetcher for one run. The run closes it.
type FetcherFactory func() (Fetcher, error)

type RobotsChecker interface {
	Check(ctx context.Context, rawURL string) error
}

type Option func(*IngestionService)

// WithIncremental toggles skipping URLs whose id is already persisted.
func WithIncremental(enabled bool) Option {
	return func(s *IngestionService) { s.incremental = enabled }
}

func WithMirror(m *store.Mirror) Option {
	return func(s *IngestionService) { s.mirror = m }
}

func WithRobots(r RobotsChecker) Option {
	return func(s *IngestionService) { s.robots = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *IngestionService) {
		if l != nil {
			s.logger = l
		}
	}
}

type IngestionService struct {
	open        FetcherFactory
	files       *store.FileStore
	mirror      *store.Mirror
	robots      RobotsChecker
	base        *url.URL
	listingURL  string
	incremental bool
	logger      *slog.Logger
}

// RunResult summarizes one scrape run.
type RunResult struct {
	RunID      string
	Discovered int
	Skipped    int
	Scraped    int
	ErrorPages int
	Failed     int
	Persisted  int
	Duration   time.Duration
}

func NewIngestionService(open FetcherFactory, files *store.FileStore, baseURL, listingURL string, opts ...Option) (*IngestionService, error) {
	if open == nil {
		return nil, errors.New("fetcher factory is required")
	}
	if files == nil {
		return nil, errors.New("file store is required")
	}
	base, err := urlutil.ParseBase(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	s := &IngestionService{
		open:        open,
		files:       files,
		base:        base,
		listingURL:  listingURL,
		incremental: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run performs one full scrape: listing, discovery, per-recipe extraction and
// a single merged write. Failures of individual recipe pages are logged and
// skipped; failures to open the fetcher, load the listing or write the file
// abort the run and leave the persisted file untouched.
func (s *IngestionService) Run(ctx context.Context) (result RunResult, err error) {
	start := time.Now()
	result.RunID = uuid.NewString()
	log := s.logger.With("run_id", result.RunID)

	defer func() {
		result.Duration = time.Since(start)
		switch {
		case err == nil:
			observability.IncRun("success")
		case errors.Is(err, context.Canceled):
			observability.IncRun("cancelled")
		default:
			observability.IncRun("failed")
		}
	}()

	policy := "full"
	if s.incremental {
		policy = "incremental"
	}
	log.Info("scrape run started", "listing", s.listingURL, "policy", policy, "output", s.files.Path())

	existing := s.files.Load()
	known := store.KnownIDs(store.Purge(existing))

	fetcher, err := s.open()
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "fetcher")
		return result, fmt.Errorf("open fetcher: %w", err)
	}
	defer func() {
		if cerr := fetcher.Close(); cerr != nil {
			log.Warn("closing fetcher failed", "error", cerr)
		}
	}()

	if err := s.checkRobots(ctx, s.listingURL); err != nil {
		return result, fmt.Errorf("listing page: %w", err)
	}
	listingHTML, err := timedFetch(ctx, "listing", s.listingURL, fetcher.FetchListing)
	if err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "listing")
		return result, fmt.Errorf("fetch listing: %w", err)
	}

	links, err := discovery.RecipeLinks(listingHTML, s.base)
	if err != nil {
		observability.IncError(observability.ErrorParsing, "discovery")
		return result, err
	}
	result.Discovered = len(links)
	log.Info("discovered recipe links", "count", len(links))

	scraped := make([]recipe.Record, 0, len(links))
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if s.incremental {
			if _, ok := known[recipe.ID(link)]; ok {
				result.Skipped++
				observability.IncKnownIDSkipped()
				log.Debug("skipping known recipe", "url", link)
				continue
			}
		}

		log.Info("scraping recipe", "index", i+1, "total", len(links), "url", link)
		rec, err := s.scrapeRecipe(ctx, fetcher, link)
		switch {
		case errors.Is(err, recipe.ErrErrorPage):
			result.ErrorPages++
			observability.IncErrorPageSkipped()
			log.Debug("discarding error page", "url", link)
		case err != nil:
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			observability.IncError(observability.ClassifyScrapeError(err), "recipe")
			log.Warn("recipe page failed", "url", link, "error", err)
		default:
			result.Scraped++
			observability.IncRecipesExtracted()
			scraped = append(scraped, rec)
		}
	}

	merged := store.Merge(existing, scraped)
	if err := s.files.Save(merged); err != nil {
		observability.IncError(observability.ErrorStore, "store")
		return result, fmt.Errorf("save recipes: %w", err)
	}
	result.Persisted = len(merged)
	observability.SetRecipesPersisted(len(merged))
	log.Info("saved recipes", "count", len(merged), "path", s.files.Path())

	if s.mirror != nil {
		if err := s.mirror.ReplaceAll(ctx, merged); err != nil {
			observability.IncError(observability.ErrorStore, "mirror")
			log.Warn("sql mirror update failed", "error", err)
		}
	}

	return result, nil
}

func (s *IngestionService) scrapeRecipe(ctx context.Context, fetcher Fetcher, link string) (recipe.Record, error) {
	if err := s.checkRobots(ctx, link); err != nil {
		return recipe.Record{}, err
	}
	html, err := timedFetch(ctx, "recipe", link, fetcher.FetchRecipe)
	if err != nil {
		return recipe.Record{}, err
	}
	page, err := content.Analyze(html)
	if err != nil {
		return recipe.Record{}, fmt.Errorf("parse failed: %w", err)
	}
	observability.AddBlocksDropped(page.DroppedBlocks)
	return recipe.Normalize(link, page)
}

func (s *IngestionService) checkRobots(ctx context.Context, rawURL string) error {
	if s.robots == nil {
		return nil
	}
	if err := s.robots.Check(ctx, rawURL); err != nil {
		observability.IncError(observability.ClassifyFetchError(err), "robots")
		return err
	}
	return nil
}

func timedFetch(ctx context.Context, kind, rawURL string, fetch func(context.Context, string) (string, error)) (string, error) {
	start := time.Now()
	html, err := fetch(ctx, rawURL)
	observability.ObserveFetchDuration(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	observability.IncPagesFetched(kind)
	return html, nil
}
