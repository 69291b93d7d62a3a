package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MiddlewareCollection holds all middleware instances
type MiddlewareCollection struct {
	Logging   *LoggingMiddleware
	RateLimit *RateLimitMiddleware
	Metrics   *MetricsMiddleware
	// Admin is nil when no admin API token is configured.
	Admin *AdminAuthMiddleware
}

// NewMiddlewareCollection creates a new collection of all middleware
func NewMiddlewareCollection(
	logger *logrus.Logger,
	adminToken string,
	requestsPerSecond float64,
	burst int,
	requestsTotal *prometheus.CounterVec,
	requestDuration *prometheus.HistogramVec,
) *MiddlewareCollection {
	mc := &MiddlewareCollection{
		Logging:   NewLoggingMiddleware(logger),
		RateLimit: NewRateLimitMiddleware(rate.Limit(requestsPerSecond), burst, logger),
		Metrics:   NewMetricsMiddleware(requestsTotal, requestDuration),
	}
	if adminToken != "" {
		mc.Admin = NewAdminAuthMiddleware(adminToken, logger)
	}
	return mc
}
