// Package proxy implements the pass-through forwarder for API requests.
//
// The forwarder is payload-agnostic: bodies cross the hop as raw bytes in
// both directions, upstream redirects and error statuses are surfaced to the
// caller verbatim, and only hop-by-hop headers are touched. A failure to
// reach the backend is a gateway-level fault and is reported distinctly from
// an error status the backend itself returned.
package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/rifaclub/edge-gateway/internal/errors"
	"github.com/rifaclub/edge-gateway/internal/httputil"
	"github.com/rifaclub/edge-gateway/internal/logging"
	"github.com/rifaclub/edge-gateway/internal/metrics"
)

// PlatformHeader marks forwarded requests with the calling platform
const (
	PlatformHeader = "X-Client-Platform"
	platformValue  = "web"
)

// Hop-by-hop headers: meaningless or wrong across the proxy hop.
var (
	strippedRequestHeaders  = []string{"Host", "Connection", "Content-Length"}
	strippedResponseHeaders = []string{"Transfer-Encoding", "Connection"}
)

// Config configures a Forwarder
type Config struct {
	// UpstreamBaseURL is the backend origin requests are rewritten to
	UpstreamBaseURL string
	// MountPrefix is the inbound path prefix stripped before forwarding
	MountPrefix string
	// Timeout bounds the whole upstream exchange
	Timeout time.Duration
	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Forwarder streams requests to the upstream backend
type Forwarder struct {
	upstream    *url.URL
	mountPrefix string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// New creates a Forwarder for the configured upstream origin
func New(cfg Config) (*Forwarder, error) {
	upstream, err := url.Parse(cfg.UpstreamBaseURL)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	mountPrefix := cfg.MountPrefix
	if mountPrefix == "" {
		mountPrefix = "/api"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "upstream",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// A caller hanging up is not an upstream failure; it must not
		// push the breaker toward open.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Forwarder{
		upstream:    upstream,
		mountPrefix: mountPrefix,
		client: &http.Client{
			Timeout: timeout,
			// Upstream redirects are surfaced verbatim; navigation is
			// the browser's decision, not the gateway's.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker: breaker,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}, nil
}

// ServeHTTP forwards the request and streams the upstream response back
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := f.targetURL(r)

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	// The original request context carries to the upstream call, so a
	// caller disconnect cancels the forward instead of completing it to
	// no recipient.
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		f.respondGatewayError(w, r, apperrors.Internal("failed to build upstream request", err))
		return
	}

	copyRequestHeaders(req, r)
	req.Header.Set(PlatformHeader, platformValue)
	if requestID := logging.GetRequestID(r.Context()); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	if body != nil && r.ContentLength >= 0 {
		req.ContentLength = r.ContentLength
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.client.Do(req)
	})
	if err != nil {
		f.respondGatewayError(w, r, classifyUpstreamError(err))
		return
	}
	resp := result.(*http.Response)
	defer resp.Body.Close()

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)

	if f.metrics != nil {
		f.metrics.RecordUpstreamForward(r.Method, resp.StatusCode)
	}
}

// targetURL rewrites the inbound URL onto the upstream origin, stripping the
// mount prefix and preserving the query string exactly.
func (f *Forwarder) targetURL(r *http.Request) string {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), f.mountPrefix)
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}

	target := *f.upstream
	joined := strings.TrimSuffix(target.Path, "/") + rest
	u := target.Scheme + "://" + target.Host + joined
	if r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

func copyRequestHeaders(dst *http.Request, src *http.Request) {
	for name, values := range src.Header {
		if isStripped(name, strippedRequestHeaders) {
			continue
		}
		for _, v := range values {
			dst.Header.Add(name, v)
		}
	}
}

func copyResponseHeaders(w http.ResponseWriter, resp *http.Response) {
	for name, values := range resp.Header {
		if isStripped(name, strippedResponseHeaders) {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
}

func isStripped(name string, stripped []string) bool {
	for _, s := range stripped {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}

// classifyUpstreamError maps a transport failure onto the gateway error
// taxonomy: breaker-open, timeout, or plain unreachable.
func classifyUpstreamError(err error) *apperrors.ServiceError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.UpstreamCircuitOpen()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.UpstreamTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.UpstreamTimeout(err)
	}
	return apperrors.UpstreamUnavailable(err)
}

func (f *Forwarder) respondGatewayError(w http.ResponseWriter, r *http.Request, serviceErr *apperrors.ServiceError) {
	if f.metrics != nil {
		f.metrics.RecordUpstreamFailure(failureReason(serviceErr))
	}
	if f.logger != nil {
		f.logger.WithContext(r.Context()).WithError(serviceErr).WithField("path", r.URL.Path).
			Error("Upstream forward failed")
	}
	httputil.WriteServiceError(w, logging.GetRequestID(r.Context()), serviceErr)
}

func failureReason(serviceErr *apperrors.ServiceError) string {
	switch {
	case serviceErr.Code == apperrors.CodeUpstreamTimeout:
		return "timeout"
	case serviceErr.HTTPStatus == http.StatusServiceUnavailable:
		return "circuit_open"
	case serviceErr.Code == apperrors.CodeUpstreamUnavailable:
		return "unreachable"
	default:
		return "internal"
	}
}
