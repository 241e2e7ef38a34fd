package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/paulinet/qmcgraph/pkg/metrics"
)

// buildNote collects what a handler knows about the edge build it serves, so
// the request log and the panic report can name the input that caused them.
type buildNote struct {
	mu    sync.Mutex
	shape []int
	phase string
}

type buildNoteKey struct{}

func withBuildNote(r *http.Request) (*http.Request, *buildNote) {
	n := &buildNote{}
	return r.WithContext(context.WithValue(r.Context(), buildNoteKey{}, n)), n
}

// noteBuild records the position shape and the factory phase of r. It is a
// no-op for requests that did not pass through the middleware chain.
func noteBuild(r *http.Request, shape []int, phase string) {
	n, ok := r.Context().Value(buildNoteKey{}).(*buildNote)
	if !ok {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if shape != nil {
		n.shape = append([]int(nil), shape...)
	}
	n.phase = phase
}

// attrs returns the recorded fields as slog attributes; nothing for requests
// that never reached a build.
func (n *buildNote) attrs() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.shape == nil && n.phase == "" {
		return nil
	}
	return []any{"shape", n.shape, "phase", n.phase}
}

// RecoveryMiddleware turns a panic into a 500. The log carries the electron
// shape and build phase of the failing request along with the stack.
func (s *Server) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, note := withBuildNote(r)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			args := []any{"panic", rec, "method", r.Method, "path", r.URL.Path}
			args = append(args, note.attrs()...)
			args = append(args, "stack", string(debug.Stack()))
			slog.Error("edge service request panicked", args...)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "Internal Server Error"})
		}()

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs each request with its status and, for builds, the
// position shape, then records the HTTP collectors under the route pattern.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)
		elapsed := time.Since(start)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration", elapsed.String(),
		}
		if n, ok := r.Context().Value(buildNoteKey{}).(*buildNote); ok {
			args = append(args, n.attrs()...)
		}
		slog.Info("request served", args...)

		// Task ids live in the path; the pattern keeps label cardinality bounded.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HttpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		metrics.HttpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
	})
}

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(p []byte) (int, error) {
	n, err := sw.ResponseWriter.Write(p)
	sw.bytes += n
	return n, err
}
