package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollyFetcherFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/menu/a">A</a></body></html>`)
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent", WithRate(100, 10))
	body, err := f.FetchRecipe(context.Background(), srv.URL+"/menu/a")
	require.NoError(t, err)
	assert.Contains(t, body, `href="/menu/a"`)
	require.NoError(t, f.Close())
}

func TestCollyFetcherNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := NewCollyFetcher("test-agent", WithRate(100, 10))
	_, err := f.FetchListing(context.Background(), srv.URL+"/menu")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
}

func TestCollyFetcherRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer srv.Close()

	f := NewCollyFetcher("test-agent", WithRate(100, 10))
	body, err := f.FetchHTML(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "ok")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCollyFetcherHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewCollyFetcher("test-agent", WithTimeout(time.Second))
	_, err := f.FetchHTML(ctx, "https://example.invalid/menu")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRobotsGate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := NewRobotsGate("test-agent", srv.Client())
	ctx := context.Background()

	assert.NoError(t, gate.Check(ctx, srv.URL+"/menu/a"))
	err := gate.Check(ctx, srv.URL+"/private/x")
	assert.ErrorIs(t, err, ErrDisallowed)
}

func TestRobotsGateMissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	gate := NewRobotsGate("test-agent", srv.Client())
	assert.NoError(t, gate.Check(context.Background(), srv.URL+"/menu/a"))
}

func TestRobotsGateFailsOpenWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/menu/a"
	srv.Close()

	gate := NewRobotsGate("test-agent", &http.Client{Timeout: time.Second})
	assert.NoError(t, gate.Check(context.Background(), target))
}
