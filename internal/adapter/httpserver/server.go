package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/hellopulse/internal/adapter/graphql"
	"github.com/pscheid92/hellopulse/internal/adapter/metrics"
)

// GraphQLEndpoint wires /graphql. Servers without one only expose health endpoints,
// /version and /metrics.
type GraphQLEndpoint struct {
	Executor  graphql.Executor
	WebSocket *graphql.WSHandler
	Limits    *ConnectionLimits
	Metrics   *metrics.WebSocketMetrics

	HTTPRatePerSecond float64
	HTTPRateBurst     int
}

type Options struct {
	Port           string
	AllowedOrigins []string
	Registry       *prometheus.Registry
	HealthChecks   []HealthCheck
	GraphQL        *GraphQLEndpoint

	// Channel is reported by /health/live.
	Channel string
	// Listeners, when set, is reported by /health/ready. Negative
	// values are omitted.
	Listeners func() int
}

type Server struct {
	echo *echo.Echo
	port string

	allowedOrigins []string
	registry       *prometheus.Registry
	graphql        *GraphQLEndpoint
	upgrader       websocket.Upgrader

	healthChecks []HealthCheck
	channel      string
	listeners    func() int
	startTime    time.Time
}

func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	srv := &Server{
		echo:           e,
		port:           opts.Port,
		allowedOrigins: opts.AllowedOrigins,
		registry:       opts.Registry,
		graphql:        opts.GraphQL,
		healthChecks:   opts.HealthChecks,
		channel:        opts.Channel,
		listeners:      opts.Listeners,
		startTime:      time.Now(),
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{graphql.Subprotocol},
		CheckOrigin:     srv.checkOrigin,
	}

	srv.registerRoutes()

	return srv
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.port, "graphql", s.graphql != nil)
	if err := s.echo.Start(":" + s.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then closes open GraphQL sockets.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if s.graphql != nil && s.graphql.WebSocket != nil {
		if err := s.graphql.WebSocket.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown websocket sessions: %w", err)
		}
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.allowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.allowedOrigins, origin)
}
