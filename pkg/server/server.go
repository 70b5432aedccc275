// Package server is the optional long-running mode: instead of printing one
// snapshot and exiting, it serves a freshly-built snapshot over HTTP. Each
// request gets its own budget clock, so a slow VRM API degrades a single
// response rather than wedging the server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vrmsnap/vrmsnap/pkg/log"
	"github.com/vrmsnap/vrmsnap/pkg/snapshot"
	"github.com/vrmsnap/vrmsnap/pkg/types"
)

// Builder produces a snapshot on demand.
type Builder interface {
	Build(ctx context.Context) (*types.Snapshot, error)
}

// Server exposes the latest snapshot as gzipped JSON.
type Server struct {
	builder Builder

	// builds run one at a time; the VRM client and the downstream API get
	// no benefit from concurrent runs
	mu sync.Mutex

	listenAddr string
	httpServer *http.Server
}

// Configured initializes the Server with its snapshot builder.
// It uses lflag to register command-line flags for configuration.
func Configured(b Builder) *Server {
	srv := &Server{builder: b}

	listenAddr := lflag.String("http-listen", "", "Serve snapshots over HTTP at this address instead of printing once (empty disables)")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
	})

	return srv
}

// Enabled reports whether serve mode was requested.
func (s *Server) Enabled() bool {
	return s.listenAddr != ""
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /snapshot", gziphandler.GzipHandler(http.HandlerFunc(s.handleSnapshot)))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled or an
// error occurs. It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capture server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.builder.Build(r.Context())
	if err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to build snapshot", slog.Any("error", err))
		code := http.StatusBadGateway
		if errors.Is(err, snapshot.ErrNoUser) || errors.Is(err, snapshot.ErrNoInstallations) {
			code = http.StatusNotFound
		}
		writeJSONError(w, "failed to build snapshot", code)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to write snapshot response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}
