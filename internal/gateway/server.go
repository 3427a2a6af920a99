package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rifaclub/edge-gateway/internal/config"
	"github.com/rifaclub/edge-gateway/internal/logging"
	"github.com/rifaclub/edge-gateway/internal/metrics"
	"github.com/rifaclub/edge-gateway/internal/middleware"
	"github.com/rifaclub/edge-gateway/internal/proxy"
	"github.com/rifaclub/edge-gateway/internal/routes"
)

// Server runs the gateway in front of a downstream application handler
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	router     *mux.Router
	limiter    *middleware.RateLimiter
	logger     *logging.Logger
}

// New builds the gateway server: classifier, limiter, forwarder and the
// middleware chain around the pipeline.
func New(cfg *config.Config, downstream http.Handler, logger *logging.Logger, m *metrics.Metrics) (*Server, error) {
	classifier := routes.NewClassifier(routes.LoadRulesOrDefault(cfg.Routes.Path))

	limiter, err := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}

	forwarder, err := proxy.New(proxy.Config{
		UpstreamBaseURL: cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		Logger:          logger,
		Metrics:         m,
	})
	if err != nil {
		return nil, err
	}

	pipeline := NewPipeline(classifier, limiter, forwarder, downstream, logger)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(middleware.Metrics(m, classifier, logger))
	router.PathPrefix("/").Handler(pipeline)

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		router:  router,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Start begins serving and schedules the rate limit sweeper
func (s *Server) Start() error {
	if err := s.limiter.StartSweeper(); err != nil {
		return err
	}
	s.logger.WithField("addr", s.cfg.Server.Addr).Info("Starting edge gateway")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and the sweeper
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.StopSweeper()
	s.logger.Info("Shutting down edge gateway")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the composed router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
