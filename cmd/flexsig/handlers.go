package main

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// maxErrorBody caps the error text echoed back in 500 responses.
const maxErrorBody = 200

type server struct {
	cfg      Config
	logger   *slog.Logger
	ladder   Fetcher
	zones    Fetcher
	renderer *Renderer
	now      func() time.Time
}

func (s *server) routes(accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleZonesHTML).Methods(http.MethodGet)
	r.HandleFunc("/flex-sig.png", s.handleFlexSigPNG).Methods(http.MethodGet)
	r.HandleFunc("/flex-sig.bmp", s.handleFlexSigBMP).Methods(http.MethodGet)
	r.HandleFunc("/signature.png", s.handleSignaturePNG).Methods(http.MethodGet)
	r.HandleFunc("/avatar.gif", s.handleAvatarGIF).Methods(http.MethodGet)
	r.HandleFunc("/tz.ics", s.handleZonesICS).Methods(http.MethodGet)

	h := s.recoverPanics(r)
	if accessLog != nil {
		h = handlers.CombinedLoggingHandler(accessLog, h)
	}
	return h
}

// loadLadder never fails: a fetch error turns every field into the error
// sentinel so a degraded image is still served.
func (s *server) loadLadder(ctx context.Context) LadderStats {
	body, err := s.ladder.Fetch(ctx, s.cfg.Ladder.URL)
	if err != nil {
		s.logger.Warn("ladder fetch failed", "error", err)
		return ErroredLadderStats(s.cfg.Ladder.ErrorSentinel, s.cfg.Ladder.Identity)
	}
	Trace(s.logger, "ladder page", "head", truncate(body, 1500))
	stats := ExtractLadder(body, ladderOptions(s.cfg.Ladder))
	s.logger.Debug("ladder extracted", "rank", stats.Rank, "level", stats.Level, "class", stats.Class)
	return stats
}

func (s *server) loadZones(ctx context.Context) (ZoneRotation, error) {
	body, err := s.zones.Fetch(ctx, s.cfg.Zone.URL)
	if err != nil {
		return ErroredZoneRotation(s.cfg.Zone.ErrorSentinel), err
	}
	Trace(s.logger, "zone page", "head", truncate(body, 1500))
	return ExtractZones(body, s.cfg.Zone.Sentinel), nil
}

// loadZonesForImage swallows the fetch error the same way loadLadder does.
func (s *server) loadZonesForImage(ctx context.Context) ZoneRotation {
	rot, err := s.loadZones(ctx)
	if err != nil {
		s.logger.Warn("zone fetch failed", "error", err)
	}
	return rot
}

func (s *server) handleFlexSigPNG(w http.ResponseWriter, r *http.Request) {
	png, err := s.renderer.RenderLadder(s.loadLadder(r.Context()))
	if err != nil {
		s.imageError(w, r, err)
		return
	}
	writeBody(w, "image/png", png)
}

func (s *server) handleFlexSigBMP(w http.ResponseWriter, r *http.Request) {
	mono, _ := strconv.ParseBool(r.URL.Query().Get("mono"))
	bmp, err := s.renderer.RenderLadderBMP(s.loadLadder(r.Context()), mono)
	if err != nil {
		s.imageError(w, r, err)
		return
	}
	writeBody(w, "image/bmp", bmp)
}

func (s *server) handleSignaturePNG(w http.ResponseWriter, r *http.Request) {
	png, err := s.renderer.RenderZones(s.loadZonesForImage(r.Context()), s.now())
	if err != nil {
		s.imageError(w, r, err)
		return
	}
	writeBody(w, "image/png", png)
}

func (s *server) handleAvatarGIF(w http.ResponseWriter, r *http.Request) {
	gif, err := s.renderer.RenderAvatar(s.loadZonesForImage(r.Context()), s.now(), s.cfg.Avatar.FrameDelay)
	if err != nil {
		s.imageError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeBody(w, "image/gif", gif)
}

func (s *server) handleZonesHTML(w http.ResponseWriter, r *http.Request) {
	rot, err := s.loadZones(r.Context())
	if err != nil {
		s.logger.Error("zone fetch failed", "error", err)
		http.Error(w, "Error: "+truncate(err.Error(), maxErrorBody), http.StatusInternalServerError)
		return
	}
	body := fmt.Sprintf("NOW: %s<br>NEXT: %s", html.EscapeString(rot.Current), html.EscapeString(rot.Next))
	writeBody(w, "text/html; charset=utf-8", []byte(body))
}

func (s *server) handleZonesICS(w http.ResponseWriter, r *http.Request) {
	feed := BuildZoneCalendar(s.loadZonesForImage(r.Context()), s.now())
	writeBody(w, "text/calendar; charset=utf-8", []byte(feed))
}

func (s *server) imageError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("render failed", "path", r.URL.Path, "error", err)
	http.Error(w, "Image error: "+truncate(err.Error(), maxErrorBody), http.StatusInternalServerError)
}

// recoverPanics answers 500 with a plain text body instead of dropping the
// connection.
func (s *server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			s.logger.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprint(v))
			http.Error(w, "Error: internal", http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

func writeBody(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
