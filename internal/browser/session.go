// Package browser drives a headless Chrome session for pages whose content is
// rendered client-side.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

type Options struct {
	Headless      bool
	UserAgent     string
	ExecPath      string
	NavTimeout    time.Duration
	ListingSettle time.Duration
	PageSettle    time.Duration
	// RatePerSecond bounds navigations; zero disables the limit.
	RatePerSecond float64
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 45 * time.Second
	}
	if o.ListingSettle < 0 {
		o.ListingSettle = 0
	}
	if o.PageSettle < 0 {
		o.PageSettle = 0
	}
	return o
}

// NavigationError wraps a failed page load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Session owns one browser process. Every page is loaded in its own tab which
// is closed before the fetch returns.
type Session struct {
	opts          Options
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	limiter       *rate.Limiter
	closeOnce     sync.Once
}

// NewSession starts the browser. Failing here is fatal for a run.
func NewSession(opts Options) (*Session, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// an empty Run launches the browser so startup errors surface here
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	s := &Session{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	if opts.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return s, nil
}

// FetchListing loads the menu page and waits for cards to render.
func (s *Session) FetchListing(ctx context.Context, rawURL string) (string, error) {
	return s.render(ctx, rawURL, s.opts.ListingSettle)
}

// FetchRecipe loads one recipe page.
func (s *Session) FetchRecipe(ctx context.Context, rawURL string) (string, error) {
	return s.render(ctx, rawURL, s.opts.PageSettle)
}

func (s *Session) render(ctx context.Context, rawURL string, settle time.Duration) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	navCtx, cancelNav := context.WithTimeout(tabCtx, s.opts.NavTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(rawURL))
	cancelNav()
	if err != nil {
		return "", &NavigationError{URL: rawURL, Err: err}
	}

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", &NavigationError{URL: rawURL, Err: err}
	}
	return html, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
	})
	return nil
}
