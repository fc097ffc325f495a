package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := LoadConfig(os.Getenv("FLEXSIG_CONFIG"))
	if err != nil {
		return err
	}

	logger, logOut, logCloser := newLogger(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	httpFetcher := NewHTTPFetcher(cfg.Fetch, logger)
	s := &server{
		cfg:      cfg,
		logger:   logger,
		ladder:   httpFetcher,
		zones:    httpFetcher,
		renderer: NewRenderer(cfg),
		now:      time.Now,
	}
	if cfg.Fetch.Browser {
		browser, stopBrowser := NewBrowserFetcher(cfg.Fetch)
		defer stopBrowser()
		s.ladder = browser
		logger.Info("ladder pages load through headless chrome")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(logOut),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			Fail(logger, "server stopped", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
