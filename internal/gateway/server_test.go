package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rifaclub/edge-gateway/internal/config"
	"github.com/rifaclub/edge-gateway/internal/logging"
	"github.com/rifaclub/edge-gateway/internal/metrics"
)

func newTestServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Addr:         "127.0.0.1:0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
		Upstream: config.UpstreamConfig{
			BaseURL: upstreamURL,
			Timeout: time.Second,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}

	downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("page"))
	})

	srv, err := New(cfg, downstream, logging.New("gateway-test", "error", "text"), metrics.New("gateway_test"))
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func TestServer_MintsCorrelationID(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")

	req := httptest.NewRequest("GET", "/login", nil)
	req.RemoteAddr = "203.0.113.4:55000"
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response is missing a minted X-Request-ID")
	}
}

func TestServer_ReusesInboundCorrelationID(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")

	req := httptest.NewRequest("GET", "/login", nil)
	req.RemoteAddr = "203.0.113.4:55000"
	req.Header.Set("X-Request-ID", "edge-42")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "edge-42" {
		t.Errorf("X-Request-ID = %q, want edge-42", got)
	}
}

func TestServer_ForwardsAPIRequests(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Client-Platform") != "web" {
			t.Error("upstream did not receive X-Client-Platform: web")
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)

	req := httptest.NewRequest("GET", "/api/raffles", nil)
	req.RemoteAddr = "203.0.113.4:55000"
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "tok"})
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %q, want upstream body", rec.Body.String())
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")

	req := httptest.NewRequest("OPTIONS", "/api/raffles", nil)
	req.RemoteAddr = "203.0.113.4:55000"
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestServer_DisallowedOriginRejected(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")

	req := httptest.NewRequest("GET", "/login", nil)
	req.RemoteAddr = "203.0.113.4:55000"
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestServer_RateLimitResponseShape(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1")

	var last *httptest.ResponseRecorder
	for i := 0; i < 41; i++ {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = "203.0.113.4:55000"
		last = httptest.NewRecorder()
		srv.Handler().ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("429 is missing Retry-After")
	}
	if ct := last.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if last.Header().Get("X-Request-ID") == "" {
		t.Error("429 is missing X-Request-ID")
	}
}
