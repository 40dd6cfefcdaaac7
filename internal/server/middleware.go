package server

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// withAuth rejects requests whose Authorization header does not carry the
// configured bearer token. An empty token disables the check.
func withAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging logs method, path, status, and duration of every request.
func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// zstdWriter compresses the response body. Headers must be finalized before
// the first Write, so Content-Length is dropped up front.
type zstdWriter struct {
	http.ResponseWriter
	zw *zstd.Encoder
}

func (w *zstdWriter) Write(p []byte) (int, error) { return w.zw.Write(p) }

// withCompression transparently decompresses zstd request bodies and
// compresses responses for clients that accept zstd.
func withCompression(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "zstd" && r.Body != nil {
			zr, err := zstd.NewReader(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "malformed zstd request body")
				return
			}
			defer zr.Close()
			r.Body = io.NopCloser(zr)
			r.Header.Del("Content-Encoding")
		}

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
			next.ServeHTTP(w, r)
			return
		}

		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		defer zw.Close()

		w.Header().Set("Content-Encoding", "zstd")
		w.Header().Del("Content-Length")
		next.ServeHTTP(&zstdWriter{ResponseWriter: w, zw: zw}, r)
	})
}
