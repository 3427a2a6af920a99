// Package gateway composes the edge decision path and the HTTP server that
// runs it. Every inbound request passes through the pipeline exactly once:
// identify, rate-limit, classify, gate, then proxy or continue to the
// downstream application. The pipeline owns no business state; the rate
// limit table is the only mutable state it shares across requests.
package gateway

import (
	"net/http"
	"net/url"

	apperrors "github.com/rifaclub/edge-gateway/internal/errors"
	"github.com/rifaclub/edge-gateway/internal/httputil"
	"github.com/rifaclub/edge-gateway/internal/logging"
	"github.com/rifaclub/edge-gateway/internal/middleware"
	"github.com/rifaclub/edge-gateway/internal/routes"
)

// Pipeline is the per-request decision path. It short-circuits on the first
// terminal outcome: 400 for a malformed request, 429 for an admission
// rejection, a login redirect for a gate denial, the forwarder for API
// paths, and the downstream handler otherwise.
type Pipeline struct {
	classifier *routes.Classifier
	limiter    *middleware.RateLimiter
	forwarder  http.Handler
	downstream http.Handler
	logger     *logging.Logger
}

// NewPipeline wires the decision path. All collaborators are injected; the
// pipeline holds no package-level state.
func NewPipeline(classifier *routes.Classifier, limiter *middleware.RateLimiter, forwarder, downstream http.Handler, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		limiter:    limiter,
		forwarder:  forwarder,
		downstream: downstream,
		logger:     logger,
	}
}

// ServeHTTP runs the pipeline for one request
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := logging.GetRequestID(ctx)

	// A query string that cannot be parsed costs nothing to reject and
	// never reaches the rate limiter.
	if _, err := url.ParseQuery(r.URL.RawQuery); err != nil {
		httputil.WriteServiceError(w, requestID, apperrors.BadRequest("malformed query string"))
		return
	}

	class := p.classifier.Classify(r.URL.Path)

	// Public paths (static assets, health, metrics) are never rate
	// limited or gated by this layer.
	if class != routes.ClassPublic {
		key := middleware.ClientKey{IP: logging.GetClientIP(ctx), Class: class.RateClass()}
		if decision := p.limiter.Admit(key); !decision.Allowed {
			if p.logger != nil {
				p.logger.LogSecurityEvent(ctx, "rate_limit_exceeded", map[string]interface{}{
					"client_ip":   key.IP,
					"rate_class":  key.Class,
					"path":        r.URL.Path,
					"retry_after": decision.RetryAfterSeconds,
				})
			}
			httputil.WriteServiceError(w, requestID, apperrors.RateLimitExceeded(decision.RetryAfterSeconds))
			return
		}
	}

	cred := middleware.CredentialFromRequest(r)
	if cred.Role != "" {
		ctx = logging.WithRole(ctx, cred.Role)
		r = r.WithContext(ctx)
	}

	if !middleware.Authorize(class, cred) {
		if p.logger != nil && (class == routes.ClassAdmin || class == routes.ClassSuperAdmin) {
			p.logger.LogSecurityEvent(ctx, "role_gate_denied", map[string]interface{}{
				"path": r.URL.Path,
				"role": cred.Role,
			})
		}
		http.Redirect(w, r, middleware.LoginRedirectURL(r), http.StatusTemporaryRedirect)
		return
	}

	if class == routes.ClassProxyPass {
		p.forwarder.ServeHTTP(w, r)
		return
	}

	p.downstream.ServeHTTP(w, r)
}
