package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"dropwatch/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// ErrNoPriceFound means every strategy on every fetch attempt came up empty.
// This is a user-actionable outcome: callers should offer manual price entry.
var ErrNoPriceFound = errors.New("no price could be extracted from the page")

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// PageRenderer renders a page with a full browser and returns the resulting
// HTML. Implemented by BrowserRenderer; faked in tests.
type PageRenderer interface {
	Render(ctx context.Context, pageURL, userAgent string) (string, error)
	Close()
}

// Fetcher obtains a parseable document for a URL, trying a plain HTTP fetch
// first and falling back to a browser render when that yields no price. The
// client identity rotates round-robin across attempts.
type Fetcher struct {
	client   *resty.Client
	renderer PageRenderer

	mu      sync.Mutex
	uaIndex int
}

// NewFetcher creates a fetcher. renderer may be nil, in which case the
// browser fallback is skipped.
func NewFetcher(renderer PageRenderer, timeout time.Duration) *Fetcher {
	client := resty.New().SetTimeout(timeout)
	return &Fetcher{client: client, renderer: renderer}
}

func (f *Fetcher) nextUserAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua := userAgents[f.uaIndex]
	f.uaIndex = (f.uaIndex + 1) % len(userAgents)
	return ua
}

func browserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":                userAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Accept-Encoding":           "gzip, deflate",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Cache-Control":             "max-age=0",
	}
}

// FetchPrice extracts price information for a URL. Any failure of both fetch
// strategies surfaces as ErrNoPriceFound; transport details are logged.
func (f *Fetcher) FetchPrice(ctx context.Context, pageURL string) (*models.ExtractedPrice, error) {
	result, err := f.fetchLight(ctx, pageURL)
	if err == nil {
		return result, nil
	}
	log.Printf("Basic fetch found no price for %s (%v), falling back to browser render", pageURL, err)

	if f.renderer == nil {
		return nil, ErrNoPriceFound
	}
	result, err = f.fetchRendered(ctx, pageURL)
	if err != nil {
		if !errors.Is(err, ErrNoPriceFound) {
			log.Printf("Browser render failed for %s: %v", pageURL, err)
		}
		return nil, ErrNoPriceFound
	}
	return result, nil
}

func (f *Fetcher) fetchLight(ctx context.Context, pageURL string) (*models.ExtractedPrice, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(browserHeaders(f.nextUserAgent())).
		Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %v", err)
	}
	if result, ok := Extract(doc, pageURL); ok {
		return result, nil
	}
	return nil, ErrNoPriceFound
}

func (f *Fetcher) fetchRendered(ctx context.Context, pageURL string) (*models.ExtractedPrice, error) {
	html, err := f.renderer.Render(ctx, pageURL, f.nextUserAgent())
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered document: %v", err)
	}
	if result, ok := Extract(doc, pageURL); ok {
		return result, nil
	}
	return nil, ErrNoPriceFound
}

// Close releases the renderer, if any.
func (f *Fetcher) Close() {
	if f.renderer != nil {
		f.renderer.Close()
	}
}
