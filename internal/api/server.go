// Package api is the HTTP surface of the DLOB server: the orderbook read
// endpoints plus health and readiness probes.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"dlob-server/internal/config"
	"dlob-server/internal/markets"
)

// pathPrefix is stripped when the server sits behind the shared gateway.
const pathPrefix = "/dlob"

// Server runs the HTTP API.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer wires routes, middleware, and timeouts.
func NewServer(cfg *config.Config, backend Backend, reg *markets.Registry, logger *slog.Logger) *Server {
	handlers := NewHandlers(backend, reg, logger)

	r := mux.NewRouter()
	r.HandleFunc("/", handlers.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health", handlers.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/startup", handlers.HandleStartup).Methods(http.MethodGet)
	r.HandleFunc("/orders/json/raw", handlers.HandleOrdersRaw).Methods(http.MethodGet)
	r.HandleFunc("/orders/json", handlers.HandleOrders).Methods(http.MethodGet)
	r.HandleFunc("/orders/idl", handlers.HandleOrdersIDL).Methods(http.MethodGet)
	r.HandleFunc("/orders/idlWithSlot", handlers.HandleOrdersIDLWithSlot).Methods(http.MethodGet)
	r.HandleFunc("/topMakers", handlers.HandleTopMakers).Methods(http.MethodGet)
	r.HandleFunc("/l2", handlers.HandleL2).Methods(http.MethodGet)
	r.HandleFunc("/batchL2", handlers.HandleBatchL2).Methods(http.MethodGet)
	r.HandleFunc("/l3", handlers.HandleL3).Methods(http.MethodGet)

	limiter := newRateLimiter(cfg.RateLimitCallsPerSecond, cfg.AllowLoadTest, logger)

	var handler http.Handler = r
	handler = limiter.Middleware(handler)
	handler = cors.AllowAll().Handler(handler)
	handler = stripPrefix(pathPrefix, handler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
		// Keep-alives must outlive the load balancer's idle timeout (60s),
		// or it recycles connections into cold handshakes.
		IdleTimeout:       65 * time.Second,
		ReadHeaderTimeout: 61 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &Server{
		server: server,
		logger: logger.With("component", "api-server"),
	}
}

// Start serves until Stop or a listener failure.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts down.
func (s *Server) Stop() error {
	s.logger.Info("stopping http server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
