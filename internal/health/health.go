// Package health serves liveness and readiness probes over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/synthbot/core/buildinfo"
	"github.com/m3rciful/synthbot/core/logger"
)

const (
	readyTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is one named readiness dependency.
type Check struct {
	Name   string
	Pinger Pinger
}

type status struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// NewRouter builds the probe router.
func NewRouter(checks ...Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, status{Status: "ok", Version: buildinfo.Version})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
		defer cancel()

		res := status{Status: "ok", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Pinger.Ping(ctx); err != nil {
				res.Checks[c.Name] = err.Error()
				res.Status = "unavailable"
				code = http.StatusServiceUnavailable
				continue
			}
			res.Checks[c.Name] = "ok"
		}
		writeJSON(w, code, res)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug(r.Context(), "http", "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("http_code", ww.Status()),
			slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
		)
	})
}

// Serve runs the probe server on listen until ctx is done. An empty listen
// address disables it.
func Serve(ctx context.Context, listen string, h http.Handler) error {
	if listen == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info(ctx, "http", "http.listen",
		slog.String("status", "ok"),
		slog.String("listen", listen),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
