// Package server exposes the descent engine over HTTP: a small JSON API, the
// tool-call endpoint and a WebSocket stream that animates a run step by step.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/njchilds90/descent"
	"github.com/njchilds90/descent/internal/store"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Options wires the server to its collaborators.
type Options struct {
	// Presets returns the current catalog. Nil means the built-ins.
	Presets func() []descent.Preset
	// Store enables the run history endpoints when non-nil.
	Store *store.Store
	// StepDelay paces the WebSocket animation.
	StepDelay time.Duration
	Reference descent.ReferenceOptions
}

// Server holds the HTTP handlers.
type Server struct {
	opts  Options
	tools descent.Toolbox
}

// New returns a server using opts.
func New(opts Options) *Server {
	if opts.Presets == nil {
		opts.Presets = descent.Presets
	}
	return &Server{
		opts:  opts,
		tools: descent.Toolbox{Catalog: opts.Presets, Reference: opts.Reference},
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/presets", s.listPresets)
		r.Post("/compile", s.compile)
		r.Post("/simulate", s.simulate)
		r.Post("/reference", s.reference)
		r.Post("/surface", s.surface)
		r.Post("/tool", s.tool)
		r.Get("/tool/schema", s.toolSchema)

		r.Route("/runs", func(r chi.Router) {
			r.Use(s.requireStore)
			r.Get("/", s.listRuns)
			r.Get("/{id}", s.getRun)
			r.Put("/{id}/note", s.annotateRun)
		})
	})

	r.Get("/ws/descent", s.serveDescent)
	return r
}

// ListenAndServe runs the server on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("descent server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("descent server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Store == nil {
			writeError(w, http.StatusNotFound, "run history is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, descent.ErrDomain):
		return http.StatusUnprocessableEntity
	case errors.Is(err, descent.ErrParse), errors.Is(err, descent.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, descent.ErrUnknownPreset), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

// decodeJSON reads exactly one JSON value from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", descent.ErrInvalidParams, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON: trailing data", descent.ErrInvalidParams)
	}
	return nil
}
