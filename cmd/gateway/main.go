// Package main runs the edge gateway in front of the storefront
// application. The gateway owns identification, rate limiting, path
// classification, session gating and API proxying; everything it admits
// continues to the downstream handler unchanged.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rifaclub/edge-gateway/internal/config"
	"github.com/rifaclub/edge-gateway/internal/gateway"
	"github.com/rifaclub/edge-gateway/internal/logging"
	"github.com/rifaclub/edge-gateway/internal/metrics"
)

var version = "dev"

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.New("edge-gateway", "info", "json").WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New("edge-gateway", cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.New("edge_gateway")

	srv, err := gateway.New(cfg, downstreamHandler(m), logger, m)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build gateway")
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Gateway server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
	logger.Info("Gateway stopped")
}

// downstreamHandler serves the non-proxied surface behind the gateway:
// health, version and the Prometheus scrape endpoint, plus a placeholder
// for the rendered application.
func downstreamHandler(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"version": version})
	})

	mux.Handle("/metrics", m.Handler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<!doctype html><title>rifaclub</title>"))
	})

	return mux
}
