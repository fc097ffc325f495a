package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Fetcher returns the body of url as text. Implementations fail only with
// *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError is a transport failure, timeout or non-2xx status.
type FetchError struct {
	URL    string
	Status int
	Msg    string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Msg)
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// browserHeaders are sent with every outbound GET. Without them the ladder
// sites answer with a bot wall instead of the page.
var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7",
	"Accept-Language": "en-US,en;q=0.9",
	"Cache-Control":   "no-cache",
}

type HTTPFetcher struct {
	client    *retryablehttp.Client
	userAgent string
	maxBody   int64
}

func NewHTTPFetcher(cfg FetchConfig, logger *slog.Logger) *HTTPFetcher {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = cfg.Timeout
	c.RetryMax = cfg.RetryMax
	c.RetryWaitMin = cfg.RetryWaitMin
	c.RetryWaitMax = cfg.RetryWaitMax
	if cfg.Backoff == "fixed" {
		c.Backoff = fixedBackoff
	}
	// keep the last response so the status ends up in the FetchError
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		c.Logger = logger.With("component", "fetch")
	} else {
		c.Logger = nil
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	return &HTTPFetcher{client: c, userAgent: cfg.UserAgent, maxBody: maxBody}
}

// fixedBackoff waits the same time before every retry unless a 429 or 503
// says how long to wait in Retry-After.
func fixedBackoff(wait, _ time.Duration, _ int, resp *http.Response) time.Duration {
	if d, ok := retryAfter(resp); ok {
		return d
	}
	return wait
}

// retryAfter reads Retry-After as seconds or an HTTP date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0), true
	}
	return 0, false
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Msg: err.Error()}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return "", &FetchError{URL: url, Msg: fmt.Sprintf("read body: %v", err)}
	}
	return string(body), nil
}
