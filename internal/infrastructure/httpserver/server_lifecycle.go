package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Start blocks serving requests. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.LogMetricsInitialization()

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	log := s.logger.WithField("environment", s.config.Environment)

	var err error
	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		log.Infof("Starting HTTPS server on %s", addr)
		err = s.echo.StartTLS(addr, s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		log.Infof("Starting HTTP server on %s", addr)
		if s.config.Environment == "production" {
			log.Warn("TLS certificates not configured; expecting TLS termination upstream")
		}
		err = s.echo.StartServer(&http.Server{
			Addr:         addr,
			ReadTimeout:  s.config.ReadTimeout,
			WriteTimeout: s.config.WriteTimeout,
			IdleTimeout:  s.config.IdleTimeout,
		})
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight submissions and stops the per-IP limiter sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.middleware.RateLimit.Stop()
	return s.echo.Shutdown(ctx)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}
