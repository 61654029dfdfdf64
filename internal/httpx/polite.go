package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// ErrDisallowed is returned for URLs excluded by robots.txt.
var ErrDisallowed = errors.New("blocked by robots.txt")

// RobotsGate checks URLs against the host's robots.txt before any fetcher
// touches them. Rules are cached per host for the life of the gate.
type RobotsGate struct {
	client      *http.Client
	ua          string
	limiters    map[string]*rate.Limiter
	robotsCache map[string]*robotstxt.RobotsData
	mu          sync.Mutex
}

func NewRobotsGate(userAgent string, client *http.Client) *RobotsGate {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &RobotsGate{
		client:      client,
		ua:          userAgent,
		limiters:    map[string]*rate.Limiter{},
		robotsCache: map[string]*robotstxt.RobotsData{},
	}
}

func (g *RobotsGate) limiterFor(host string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(time.Second), 2) // 1 req/s, burst 2
	g.limiters[host] = l
	return l
}

func (g *RobotsGate) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	g.mu.Lock()
	if data, ok := g.robotsCache[host]; ok {
		g.mu.Unlock()
		return data, nil
	}
	g.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.ua)

	if err := g.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.robotsCache[host] = data
	g.mu.Unlock()
	return data, nil
}

// Check returns ErrDisallowed when robots.txt forbids rawURL for our agent.
func (g *RobotsGate) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if !g.allowed(ctx, u) {
		return fmt.Errorf("%w: %s", ErrDisallowed, u)
	}
	return nil
}

func (g *RobotsGate) allowed(ctx context.Context, u *url.URL) bool {
	data, err := g.robotsFor(ctx, u)
	if err != nil {
		return true // fail open to avoid blocking everything
	}
	group := data.FindGroup(g.ua)
	if group == nil {
		return true
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	return group.Test(p)
}
