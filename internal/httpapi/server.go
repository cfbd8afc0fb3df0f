package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/ideactx-mcp/internal/health"
	"github.com/dshills/ideactx-mcp/pkg/types"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// ErrNoSearcher is returned by New without a search backend
var ErrNoSearcher = errors.New("http api requires a searcher")

// Searcher runs the search pipeline. *pipeline.Pipeline satisfies it.
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error)
	Derive(req types.SearchRequest) *types.Strategy
}

// HealthChecker builds a health report. *health.Checker satisfies it.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}

// Options configures the HTTP API
type Options struct {
	Searcher Searcher
	Health   HealthChecker
	// MCP is mounted at /mcp when set
	MCP http.Handler
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
	// AccessLog enables gin's request logger
	AccessLog bool
}

// Server serves the JSON search API, health, metrics and the MCP
// streamable HTTP transport from one gin engine.
type Server struct {
	engine   *gin.Engine
	searcher Searcher
	health   HealthChecker
}

// New creates the server and registers its routes
func New(opts Options) (*Server, error) {
	if opts.Searcher == nil {
		return nil, ErrNoSearcher
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if opts.AccessLog {
		engine.Use(gin.Logger())
	}

	s := &Server{
		engine:   engine,
		searcher: opts.Searcher,
		health:   opts.Health,
	}
	s.registerRoutes(opts)
	return s, nil
}

// registerRoutes wires the endpoints:
//
//	POST /api/search   - staged search, returns the search payload
//	POST /api/strategy - derived strategy only, no backend calls
//	GET  /healthz      - health report, 503 when degraded
//	GET  /metrics      - Prometheus metrics
//	ANY  /mcp          - MCP streamable HTTP transport
func (s *Server) registerRoutes(opts Options) {
	api := s.engine.Group("/api")
	{
		api.POST("/search", s.handleSearch)
		api.POST("/strategy", s.handleStrategy)
	}

	s.engine.GET("/healthz", s.handleHealth)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if opts.MCP != nil {
		s.engine.Any("/mcp", gin.WrapH(opts.MCP))
	}
}

// Handler returns the routed http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("http api listening", "address", ln.Addr().String())
		errChan <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
