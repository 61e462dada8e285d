package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	html  string
	err   error
}

func (f *fakeRenderer) Render(ctx context.Context, pageURL, userAgent string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.html, f.err
}

func (f *fakeRenderer) Close() {}

func (f *fakeRenderer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestFetchPriceLight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`<html><head>
			<meta property="og:price:amount" content="42.00" />
			<title>Widget</title>
		</head><body></body></html>`))
	}))
	defer server.Close()

	renderer := &fakeRenderer{}
	fetcher := NewFetcher(renderer, 5*time.Second)

	result, err := fetcher.FetchPrice(context.Background(), server.URL)
	require.NoError(t, err)
	require.True(t, result.Price.Equal(decimal.RequireFromString("42.00")))
	require.Equal(t, "Widget", result.Name)

	// The light fetch succeeded, so the browser was never involved.
	require.Equal(t, 0, renderer.callCount())
}

func TestFetchPriceRenderedFallback(t *testing.T) {
	// The raw response carries no price; the rendered page does.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="app"></div></body></html>`))
	}))
	defer server.Close()

	renderer := &fakeRenderer{
		html: `<html><body><span class="price">$15.99</span></body></html>`,
	}
	fetcher := NewFetcher(renderer, 5*time.Second)

	result, err := fetcher.FetchPrice(context.Background(), server.URL)
	require.NoError(t, err)
	require.True(t, result.Price.Equal(decimal.RequireFromString("15.99")))
	require.Equal(t, "USD", result.Currency)
	require.Equal(t, 1, renderer.callCount())
}

func TestFetchPriceNoPriceAnywhere(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
	}))
	defer server.Close()

	renderer := &fakeRenderer{
		html: `<html><body><p>still nothing</p></body></html>`,
	}
	fetcher := NewFetcher(renderer, 5*time.Second)

	_, err := fetcher.FetchPrice(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrNoPriceFound)

	// The rendered fallback runs exactly once.
	require.Equal(t, 1, renderer.callCount())
}

func TestFetchPriceServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	renderer := &fakeRenderer{err: context.DeadlineExceeded}
	fetcher := NewFetcher(renderer, 5*time.Second)

	// Transport and render failures collapse into the no-price outcome.
	_, err := fetcher.FetchPrice(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrNoPriceFound)
}

func TestFetchPriceNilRenderer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
	}))
	defer server.Close()

	fetcher := NewFetcher(nil, 5*time.Second)

	_, err := fetcher.FetchPrice(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrNoPriceFound)
}

func TestNextUserAgentRotates(t *testing.T) {
	fetcher := NewFetcher(nil, time.Second)

	seen := make(map[string]bool)
	for range userAgents {
		seen[fetcher.nextUserAgent()] = true
	}
	require.Len(t, seen, len(userAgents))

	// The rotation wraps back to the first identity.
	require.Equal(t, userAgents[0], fetcher.nextUserAgent())
}
