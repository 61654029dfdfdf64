package core

import (
	"github.com/baxromumarov/recipe-hunter/internal/browser"
	"github.com/baxromumarov/recipe-hunter/internal/config"
	"github.com/baxromumarov/recipe-hunter/internal/httpx"
)

// FetcherFromConfig returns a factory for the fetcher named by cfg.Fetcher.
func FetcherFromConfig(cfg config.Config) FetcherFactory {
	if cfg.Fetcher == config.FetcherStatic {
		return func() (Fetcher, error) {
			return httpx.NewCollyFetcher(cfg.UserAgent,
				httpx.WithTimeout(cfg.NavTimeout),
				httpx.WithRate(cfg.RatePerSecond, 1),
			), nil
		}
	}
	return func() (Fetcher, error) {
		return browser.NewSession(browser.Options{
			Headless:      cfg.Headless,
			UserAgent:     cfg.UserAgent,
			NavTimeout:    cfg.NavTimeout,
			ListingSettle: cfg.ListingSettle,
			PageSettle:    cfg.PageSettle,
			RatePerSecond: cfg.RatePerSecond,
		})
	}
}

// RobotsFromConfig returns nil when robots.txt checks are off.
func RobotsFromConfig(cfg config.Config) RobotsChecker {
	if !cfg.RespectRobots {
		return nil
	}
	return httpx.NewRobotsGate(cfg.UserAgent, nil)
}
