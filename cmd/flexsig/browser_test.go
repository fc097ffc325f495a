package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

func TestBrowserFetcher_LaunchFailure(t *testing.T) {
	cfg := testFetchConfig()
	cfg.Timeout = 5 * time.Second

	f, cancel := NewBrowserFetcher(cfg, chromedp.ExecPath("/nonexistent/chrome"))
	defer cancel()

	_, err := f.Fetch(context.Background(), "https://ladder.test/character/GUY_T")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
	if fe.URL != "https://ladder.test/character/GUY_T" || fe.Msg == "" {
		t.Errorf("FetchError = %+v", fe)
	}
	if !strings.Contains(err.Error(), "ladder.test") {
		t.Errorf("error %q does not name the url", err)
	}
}

func TestBrowserFetcher_CancelledRequest(t *testing.T) {
	f, cancel := NewBrowserFetcher(testFetchConfig(), chromedp.ExecPath("/nonexistent/chrome"))
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()

	if _, err := f.Fetch(ctx, "https://ladder.test"); !IsFetchError(err) {
		t.Fatalf("Fetch() error = %v, want *FetchError", err)
	}
}
