package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.BodyLimit("2M"))

	cors := middleware.DefaultCORSConfig
	if len(s.config.AllowedOrigins) > 0 {
		cors.AllowOrigins = s.config.AllowedOrigins
	}
	cors.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	s.echo.Use(middleware.CORSWithConfig(cors))

	s.echo.Use(s.middleware.Metrics.CollectHTTPMetrics())
	s.echo.Use(s.middleware.Logging.RequestLogging())
}
