package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DependencyStatus is the probe result of one backing store.
type DependencyStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthReport is served on /health.
type HealthReport struct {
	Status       string                      `json:"status"`
	Timestamp    string                      `json:"timestamp"`
	Service      string                      `json:"service"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
}

func (s *Server) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	report := HealthReport{
		Status:       "healthy",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Service:      "wiki-contributions",
		Dependencies: make(map[string]DependencyStatus, len(s.healthCheckers)),
	}
	for _, hc := range s.healthCheckers {
		if hc == nil {
			continue
		}
		start := time.Now()
		err := hc.Check(ctx)
		dep := DependencyStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
		if err != nil {
			dep.Status = "unhealthy"
			report.Status = "degraded"
			s.log(c).WithField("dependency", hc.Name()).WithError(err).Warn("health check failed")
		}
		report.Dependencies[hc.Name()] = dep
	}

	code := http.StatusOK
	if report.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}
