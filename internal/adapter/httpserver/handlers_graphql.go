package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/hellopulse/internal/adapter/graphql"
	apperrors "github.com/pscheid92/hellopulse/internal/platform/errors"
)

func (s *Server) registerGraphQLRoutes() {
	limiter := newRateLimiter(s.graphql.HTTPRatePerSecond, s.graphql.HTTPRateBurst)

	s.echo.GET("/graphql", s.handleGraphQL, limiter)
	s.echo.POST("/graphql", s.handleGraphQL, limiter)
}

func (s *Server) handleGraphQL(c echo.Context) error {
	if websocket.IsWebSocketUpgrade(c.Request()) {
		return s.handleGraphQLWebSocket(c)
	}

	req, err := graphql.ParseHTTPRequest(c.Request())
	if err != nil {
		return apperrors.ValidationError(err.Error())
	}

	resp := s.graphql.Executor.Exec(c.Request().Context(), req)

	status := http.StatusOK
	if graphql.IsRequestError(resp) {
		status = http.StatusBadRequest
	}
	if err := c.JSON(status, resp); err != nil {
		return fmt.Errorf("failed to write GraphQL response: %w", err)
	}
	return nil
}

func (s *Server) handleGraphQLWebSocket(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()

	ok, reason := s.graphql.Limits.Acquire(ip)
	if !ok {
		s.graphql.Metrics.RejectedUpgrades.WithLabelValues(string(reason)).Inc()
		if reason == LimitReasonGlobal {
			return apperrors.UnavailableError("server at connection capacity").WithContext("reason", string(reason))
		}
		return apperrors.RateLimitedError("too many connections").WithContext("reason", string(reason))
	}
	defer s.graphql.Limits.Release(ip)

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.DebugContext(ctx, "WebSocket upgrade failed", "error", err)
		return nil
	}

	s.graphql.WebSocket.Serve(ctx, conn)
	return nil
}
