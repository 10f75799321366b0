package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"swing-lab/internal/metrics"
)

// metricsResponseWriter wraps http.ResponseWriter to capture the status
// code and, for streaming endpoints, the time to first byte.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode      int
	headerWritten   bool
	startTime       time.Time
	firstByteTime   time.Time
	isStreamingPath bool
}

func newMetricsResponseWriter(w http.ResponseWriter, startTime time.Time, streaming bool) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter:  w,
		statusCode:      http.StatusOK,
		startTime:       startTime,
		isStreamingPath: streaming,
	}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if rw.headerWritten {
		return
	}
	rw.statusCode = code
	rw.headerWritten = true
	if rw.isStreamingPath {
		rw.firstByteTime = time.Now()
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.headerWritten = true
		if rw.isStreamingPath {
			rw.firstByteTime = time.Now()
		}
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// GetDuration returns the duration to record for this request. Streaming
// endpoints report time to first byte so a long playback session does not
// skew the latency histogram.
func (rw *metricsResponseWriter) GetDuration() time.Duration {
	if rw.isStreamingPath && !rw.firstByteTime.IsZero() {
		return rw.firstByteTime.Sub(rw.startTime)
	}
	return time.Since(rw.startTime)
}

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for certain paths
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Track in-flight requests
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			wrapped := newMetricsResponseWriter(w, start, isStreamingPath(r.URL.Path))

			// Process request
			next.ServeHTTP(wrapped, r)

			// Record metrics
			duration := wrapped.GetDuration().Seconds()
			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// isStreamingPath reports whether the path serves video playback, where
// time to first byte is the useful latency measure.
func isStreamingPath(path string) bool {
	return strings.HasPrefix(path, "/api/swings/") && strings.HasSuffix(path, "/video")
}

// Collections whose next path segment is a per-item identifier.
var idCollections = map[string]bool{
	"swings": true,
	"drills": true,
}

// Deepest route is /api/swings/{id}/video: 4 real segments plus the
// leading empty one.
const maxPathSegments = 5

// normalizePath replaces identifiers with placeholders so metric label
// cardinality stays bounded.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" && idCollections[parts[i-1]] {
			parts[i] = "{id}"
		}
	}
	if len(parts) > maxPathSegments {
		parts = parts[:maxPathSegments]
		parts[maxPathSegments-1] = "{path}"
	}
	return strings.Join(parts, "/")
}
