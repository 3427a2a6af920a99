package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/rifaclub/edge-gateway/internal/logging"
)

// Correlation id headers. The primary header is set on every response; the
// secondary one is only honored inbound, for callers that spell it without
// the X- prefix.
const (
	RequestIDHeader    = "X-Request-ID"
	altRequestIDHeader = "Request-ID"
)

// RequestID resolves the request correlation id: an inbound id is reused
// verbatim so the value survives across hops, otherwise a new one is minted.
// The id is set on the response and stored in the request context together
// with the client network identity.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = r.Header.Get(altRequestIDHeader)
		}
		if requestID == "" {
			requestID = logging.NewRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := logging.WithRequestID(r.Context(), requestID)
		ctx = logging.WithClientIP(ctx, clientIP(r))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP derives the client network identity. Forwarding headers win over
// the socket address because the gateway normally sits behind a load
// balancer; the first entry of X-Forwarded-For is the original client.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
