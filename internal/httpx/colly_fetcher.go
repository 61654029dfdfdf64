package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/baxromumarov/recipe-hunter/internal/urlutil"
)

const DefaultUserAgent = "recipe-hunter-bot/1.0"

// CollyFetcher loads pages without executing JavaScript. It is the fallback
// for sites that ship their structured data in the initial HTML.
type CollyFetcher struct {
	userAgent    string
	timeout      time.Duration
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
	hosts        map[string]*hostPolicy
}

type hostPolicy struct {
	limiter     *rate.Limiter
	nextAllowed time.Time
	mu          sync.Mutex
}

type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type CollyOption func(*CollyFetcher)

func WithTimeout(d time.Duration) CollyOption {
	return func(f *CollyFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRate sets the default per-host rate in requests per second.
func WithRate(perSecond float64, burst int) CollyOption {
	return func(f *CollyFetcher) {
		if perSecond > 0 {
			f.defaultRate = rate.Limit(perSecond)
		}
		if burst > 0 {
			f.defaultBurst = burst
		}
	}
}

func NewCollyFetcher(userAgent string, opts ...CollyOption) *CollyFetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	f := &CollyFetcher{
		userAgent:    userAgent,
		timeout:      45 * time.Second,
		defaultRate:  rate.Every(time.Second),
		defaultBurst: 2,
		hosts:        make(map[string]*hostPolicy),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *CollyFetcher) FetchListing(ctx context.Context, rawURL string) (string, error) {
	return f.FetchHTML(ctx, rawURL)
}

func (f *CollyFetcher) FetchRecipe(ctx context.Context, rawURL string) (string, error) {
	return f.FetchHTML(ctx, rawURL)
}

// FetchHTML returns the response body of rawURL as served. 429 and 5xx
// responses are retried with per-host backoff.
func (f *CollyFetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	host := urlutil.HostKey(target)

	var lastErr error
	status := 0
	for attempt := 0; attempt < 3; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err := f.waitForHost(ctx, host); err != nil {
			return "", err
		}
		var body []byte
		body, status, lastErr = f.fetchOnce(ctx, target)
		if lastErr == nil {
			return string(body), nil
		}
		if !shouldBackoff(status) {
			break
		}
		f.applyBackoff(host, attempt)
	}

	if lastErr == nil {
		lastErr = errors.New("colly fetch failed")
	}
	return "", &FetchError{Status: status, Err: lastErr}
}

// Close satisfies the fetcher contract; colly holds no long-lived resources.
func (f *CollyFetcher) Close() error {
	return nil
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, target string) ([]byte, int, error) {
	c := f.newCollector()

	var body []byte
	status := 0
	var reqErr error
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	collyCtx := colly.NewContext()
	collyCtx.Put("ctx", ctx)

	if err := c.Request(http.MethodGet, target, nil, collyCtx, nil); err != nil {
		return nil, status, err
	}
	switch {
	case reqErr != nil:
		return nil, status, reqErr
	case status >= 400:
		return nil, status, fmt.Errorf("status %d", status)
	}
	return body, status, nil
}

func (f *CollyFetcher) newCollector() *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(f.userAgent))
	// robots.txt is handled by RobotsGate so both fetchers share one policy
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(f.timeout)

	c.OnRequest(func(r *colly.Request) {
		ctx := context.Background()
		if v := r.Ctx.GetAny("ctx"); v != nil {
			if reqCtx, ok := v.(context.Context); ok {
				ctx = reqCtx
			}
		}
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	return c
}

func (f *CollyFetcher) waitForHost(ctx context.Context, host string) error {
	policy := f.hostPolicy(host)
	if err := policy.waitBackoff(ctx); err != nil {
		return err
	}
	return policy.limiter.Wait(ctx)
}

func (f *CollyFetcher) hostPolicy(host string) *hostPolicy {
	key := urlutil.NormalizeHost(host)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreatePolicyLocked(key)
}

func (f *CollyFetcher) getOrCreatePolicyLocked(host string) *hostPolicy {
	if host == "" {
		host = "default"
	}
	if policy, ok := f.hosts[host]; ok {
		return policy
	}
	policy := &hostPolicy{
		limiter: rate.NewLimiter(f.defaultRate, f.defaultBurst),
	}
	f.hosts[host] = policy
	return policy
}

func (f *CollyFetcher) applyBackoff(host string, attempt int) {
	if attempt < 0 {
		attempt = 0
	}
	policy := f.hostPolicy(host)
	delay := time.Duration(500*(1<<attempt)) * time.Millisecond
	policy.mu.Lock()
	next := time.Now().Add(delay)
	if next.After(policy.nextAllowed) {
		policy.nextAllowed = next
	}
	policy.mu.Unlock()
}

func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

func shouldBackoff(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *hostPolicy) waitBackoff(ctx context.Context) error {
	for {
		p.mu.Lock()
		next := p.nextAllowed
		p.mu.Unlock()
		now := time.Now()
		if !now.Before(next) {
			return nil
		}
		if err := sleepWithContext(ctx, next.Sub(now)); err != nil {
			return err
		}
	}
}
