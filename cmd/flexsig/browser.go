package main

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher loads the page in headless Chrome for ladder sites that only
// render their tables with JavaScript.
type BrowserFetcher struct {
	browser context.Context
	timeout time.Duration
}

// NewBrowserFetcher starts the allocator and the browser. Extra options, like
// chromedp.ExecPath, are applied last. The returned cancel func shuts Chrome
// down.
func NewBrowserFetcher(cfg FetchConfig, extra ...chromedp.ExecAllocatorOption) (*BrowserFetcher, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1280, 800),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), append(opts, extra...)...)
	browser, browserCancel := chromedp.NewContext(allocCtx)

	return &BrowserFetcher{browser: browser, timeout: cfg.Timeout}, func() {
		browserCancel()
		allocCancel()
	}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.browser)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, f.timeout)
	defer cancel()

	// the request context should also stop the page load
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &FetchError{URL: url, Msg: err.Error()}
	}
	return html, nil
}
