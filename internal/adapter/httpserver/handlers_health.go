package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/hellopulse/internal/platform/version"
)

const (
	startupCheckTimeout   = 2 * time.Second
	readinessCheckTimeout = 5 * time.Second
)

// HealthCheck checks one dependency; nil means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

const (
	statusOK        = "ok"
	statusReady     = "ready"
	statusUnhealthy = "unhealthy"
)

// healthReport is the body of /health/startup and /health/ready. Every check
// runs; FailedCheck names the first one that failed.
type healthReport struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks,omitempty"`
	FailedCheck string            `json:"failed_check,omitempty"`
	Listeners   *int              `json:"listeners,omitempty"`
}

type livenessReport struct {
	Status        string  `json:"status"`
	Channel       string  `json:"channel,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// Startup reports dependency checks only.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupCheckTimeout)
	defer cancel()

	return s.writeReport(c, s.runChecks(ctx))
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessCheckTimeout)
	defer cancel()

	report := s.runChecks(ctx)
	if s.listeners != nil {
		if n := s.listeners(); n >= 0 {
			report.Listeners = &n
		}
	}
	return s.writeReport(c, report)
}

// Liveness does not run health checks.
func (s *Server) handleLiveness(c echo.Context) error {
	report := livenessReport{
		Status:        statusOK,
		Channel:       s.channel,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, report); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) runChecks(ctx context.Context) healthReport {
	report := healthReport{Status: statusReady}
	if len(s.healthChecks) == 0 {
		return report
	}

	report.Checks = make(map[string]string, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			report.Checks[hc.Name] = err.Error()
			if report.FailedCheck == "" {
				report.Status = statusUnhealthy
				report.FailedCheck = hc.Name
			}
			continue
		}
		report.Checks[hc.Name] = statusOK
	}
	return report
}

func (s *Server) writeReport(c echo.Context, report healthReport) error {
	code := http.StatusOK
	if report.Status != statusReady {
		code = http.StatusServiceUnavailable
	}
	if err := c.JSON(code, report); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
