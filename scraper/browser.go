package scraper

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserRenderer renders pages with headless Chromium so that client-side
// rendered prices become visible to the extraction pipeline.
type BrowserRenderer struct {
	browser *rod.Browser
	timeout time.Duration
	settle  time.Duration
}

// NewBrowserRenderer launches headless Chromium. Uses the system binary when
// running in Docker, auto-detects otherwise.
func NewBrowserRenderer(timeout, settle time.Duration) (*BrowserRenderer, error) {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false)

	if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
		l = l.Bin("/usr/bin/chromium-browser")
		log.Printf("Using system Chromium in Docker environment")
	} else {
		log.Printf("Using auto-detected Chromium (local environment)")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %v", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %v", err)
	}

	return &BrowserRenderer{
		browser: browser,
		timeout: timeout,
		settle:  settle,
	}, nil
}

// Render navigates to the URL, waits for load plus a settle delay for
// client-side rendering, and returns the resulting HTML.
func (r *BrowserRenderer) Render(ctx context.Context, pageURL, userAgent string) (string, error) {
	var html string
	err := rod.Try(func() {
		page := r.browser.MustPage()
		defer page.MustClose()

		page = page.Context(ctx).Timeout(r.timeout)
		page.MustSetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent})
		page.MustNavigate(pageURL)
		page.MustWaitLoad()

		// Settle delay so JavaScript-rendered prices appear.
		time.Sleep(r.settle)

		html = page.MustHTML()
	})
	if err != nil {
		return "", fmt.Errorf("browser render failed: %v", err)
	}
	return html, nil
}

// Close shuts down the browser.
func (r *BrowserRenderer) Close() {
	if r.browser != nil {
		_ = r.browser.Close()
	}
}
