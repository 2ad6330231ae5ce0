package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/winston-domains/winston/internal/config"
	"github.com/winston-domains/winston/internal/gateway"
	"github.com/winston-domains/winston/internal/metrics"
	"github.com/winston-domains/winston/internal/ratelimit"
	"github.com/winston-domains/winston/internal/store"
)

// Server wraps the HTTP server and mux for the gateway API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates the API server wired with all routes.
func NewServer(
	cfg *config.EnvConfig,
	st *store.Store,
	gw *gateway.Gateway,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
) *Server {
	return NewServerWithAddress("", cfg, st, gw, limiter, m)
}

// NewServerWithAddress creates the API server with an explicit listen
// address.
func NewServerWithAddress(
	listenAddress string,
	cfg *config.EnvConfig,
	st *store.Store,
	gw *gateway.Gateway,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
) *Server {
	mux := http.NewServeMux()
	start := time.Now()

	// chain applies, outermost first: metrics count, auth, rate limiting.
	// The limiter runs after auth so authenticated callers are keyed by
	// account rather than IP.
	chain := func(route string, authRequired bool, h http.Handler) http.Handler {
		return MetricsMiddleware(m, route,
			AuthMiddleware(st, authRequired,
				RateLimitMiddleware(limiter, m, h)))
	}

	mux.Handle("GET /health", MetricsMiddleware(m, "/health", HandleHealth(cfg, gw.Driver().Name(), start)))
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("POST /search", chain("/search", false, HandleSearch(gw)))
	mux.Handle("POST /buy", chain("/buy", true, HandleBuy(gw)))
	mux.Handle("GET /status/{domain}", chain("/status", false, HandleStatus(gw)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, gateway.E(gateway.KindNotFound, "no such route: %s %s", r.Method, r.URL.Path))
	})

	handler := CORSMiddleware(RequestBodyLimitMiddleware(int64(cfg.MaxBodyBytes), mux))

	srv := &http.Server{
		Addr:              net.JoinHostPort(listenAddress, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
	}

	return &Server{httpServer: srv, mux: mux}
}

// Handler exposes the fully wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
