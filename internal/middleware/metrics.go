package middleware

import (
	"net/http"
	"time"

	"github.com/rifaclub/edge-gateway/internal/logging"
	"github.com/rifaclub/edge-gateway/internal/metrics"
	"github.com/rifaclub/edge-gateway/internal/routes"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards streaming flushes so proxied responses are not buffered by
// the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Metrics returns a middleware that records request metrics and the access
// log line. The metrics label is the path class rather than the raw path to
// keep cardinality bounded.
func Metrics(m *metrics.Metrics, classifier *routes.Classifier, logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.IncrementInFlight()
			defer m.DecrementInFlight()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			class := classifier.Classify(r.URL.Path)

			m.RecordHTTPRequest(r.Method, string(class), wrapped.statusCode, duration)
			if logger != nil {
				logger.LogRequest(r.Context(), r.Method, r.URL.Path, wrapped.statusCode, duration)
			}
		})
	}
}
