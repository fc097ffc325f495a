package main

import (
	"bytes"
	"context"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

type stubFetcher struct {
	body  string
	err   error
	panic bool
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	return f.body, f.err
}

func newTestServer(t *testing.T, ladder, zones Fetcher) (*server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Assets.Background = filepath.Join(dir, "background.png")
	cfg.Assets.Font = filepath.Join(dir, "font.ttf")

	return &server{
		cfg:      cfg,
		logger:   slog.New(newLineHandler(io.Discard, slog.LevelError)),
		ladder:   ladder,
		zones:    zones,
		renderer: NewRenderer(cfg),
		now:      func() time.Time { return time.Date(2026, 10, 15, 12, 36, 55, 0, time.UTC) },
	}, dir
}

func get(t *testing.T, s *server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// ///////////////////////////////////////////////
// Flex signature
// ///////////////////////////////////////////////

func TestFlexSig_Success(t *testing.T) {
	ladder := &stubFetcher{body: "Rank 42 Level 99 Assassin"}
	s, _ := newTestServer(t, ladder, &stubFetcher{})

	rec := get(t, s, "/flex-sig.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := rec.Header().Get("Content-Length"); cl != strconv.Itoa(rec.Body.Len()) {
		t.Errorf("Content-Length = %q, body is %d bytes", cl, rec.Body.Len())
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Errorf("body is not a PNG: %v", err)
	}
	if ladder.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", ladder.calls)
	}
}

func TestFlexSig_FetchOutcomes(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"timeout", &FetchError{URL: "https://ladder.test", Msg: "context deadline exceeded"}},
		{"client error", &FetchError{URL: "https://ladder.test", Status: http.StatusForbidden}},
		{"server error", &FetchError{URL: "https://ladder.test", Status: http.StatusBadGateway}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, &stubFetcher{err: tt.err}, &stubFetcher{})

			rec := get(t, s, "/flex-sig.png")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, a failed fetch must still render", rec.Code)
			}
			if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
				t.Errorf("body is not a PNG: %v", err)
			}
		})
	}
}

func TestLoadLadder_ErrorSentinel(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{err: &FetchError{Msg: "timeout"}}, &stubFetcher{})

	got := s.loadLadder(context.Background())
	if got != ErroredLadderStats("Error", "GUY_T") {
		t.Errorf("loadLadder() = %+v, want error sentinels", got)
	}
}

func TestFlexSig_RenderFailure(t *testing.T) {
	s, dir := newTestServer(t, &stubFetcher{body: "Rank 1"}, &stubFetcher{})
	if err := os.WriteFile(filepath.Join(dir, "background.png"), []byte("corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s, "/flex-sig.png")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Image error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestFlexSig_BMP(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{body: "Rank 1"}, &stubFetcher{})

	for _, path := range []string{"/flex-sig.bmp", "/flex-sig.bmp?mono=1"} {
		rec := get(t, s, path)
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/bmp" {
			t.Errorf("%s: status %d, type %q", path, rec.Code, rec.Header().Get("Content-Type"))
			continue
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("BM")) {
			t.Errorf("%s: body is not a BMP", path)
		}
	}
}

// ///////////////////////////////////////////////
// Terror zones
// ///////////////////////////////////////////////

func TestZonesHTML(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, &stubFetcher{body: zonePage})

	rec := get(t, s, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	want := "NOW: BLOOD MOOR AND DEN OF EVIL<br>NEXT: COLD PLAINS, THE CAVE"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestZonesHTML_Escapes(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, &stubFetcher{body: `{"current": "<img src=x>", "next": "Tristram"}`})

	rec := get(t, s, "/")
	if strings.Contains(rec.Body.String(), "<img") {
		t.Errorf("zone text not escaped: %q", rec.Body.String())
	}
}

func TestZonesHTML_FetchTimeout(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, &stubFetcher{err: &FetchError{URL: "https://tz.test", Msg: "timeout"}})

	rec := get(t, s, "/")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestSignaturePNG(t *testing.T) {
	for _, zones := range []*stubFetcher{
		{body: zonePage},
		{err: &FetchError{Msg: "timeout"}},
	} {
		s, _ := newTestServer(t, &stubFetcher{}, zones)
		rec := get(t, s, "/signature.png")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
			t.Fatalf("status %d, type %q", rec.Code, rec.Header().Get("Content-Type"))
		}
		if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
			t.Errorf("body is not a PNG: %v", err)
		}
	}
}

func TestAvatarGIF(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, &stubFetcher{body: zonePage})

	rec := get(t, s, "/avatar.gif")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/gif" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", cc)
	}
	anim, err := gif.DecodeAll(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("body is not a GIF: %v", err)
	}
	if len(anim.Image) != 3 {
		t.Errorf("frames = %d, want 3", len(anim.Image))
	}
}

func TestZonesICS(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, &stubFetcher{body: zonePage})

	rec := get(t, s, "/tz.ics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "BLOOD MOOR AND DEN OF EVIL") {
		t.Errorf("unexpected feed %q", body)
	}
}

// ///////////////////////////////////////////////
// Routing and recovery
// ///////////////////////////////////////////////

func TestHandlerPanic(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{panic: true}, &stubFetcher{})

	rec := get(t, s, "/flex-sig.png")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{}, &stubFetcher{})

	rec := httptest.NewRecorder()
	s.routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/flex-sig.png", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAccessLog(t *testing.T) {
	s, _ := newTestServer(t, &stubFetcher{body: "Rank 1"}, &stubFetcher{})

	var buf bytes.Buffer
	rec := httptest.NewRecorder()
	s.routes(&buf).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flex-sig.png", nil))
	if !strings.Contains(buf.String(), "GET /flex-sig.png") {
		t.Errorf("access log = %q", buf.String())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate(strings.Repeat("a", 300), maxErrorBody); len(got) != maxErrorBody+3 {
		t.Errorf("len = %d", len(got))
	}
	if got := truncate("aé", 2); got != "a..." {
		t.Errorf("truncate() split a rune: %q", got)
	}
}
