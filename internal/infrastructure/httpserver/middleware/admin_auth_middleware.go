package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// AdminAuthMiddleware guards operator endpoints with a static bearer token.
type AdminAuthMiddleware struct {
	token  []byte
	logger *logrus.Logger
}

func NewAdminAuthMiddleware(token string, logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{token: []byte(token), logger: logger}
}

func (m *AdminAuthMiddleware) RequireAPIKey() echo.MiddlewareFunc {
	return echomw.KeyAuthWithConfig(echomw.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, c echo.Context) (bool, error) {
			ok := subtle.ConstantTimeCompare([]byte(key), m.token) == 1
			if !ok && m.logger != nil {
				m.logger.WithField("path", c.Path()).Warn("rejected admin request with invalid token")
			}
			return ok, nil
		},
	})
}
