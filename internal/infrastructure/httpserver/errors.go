package httpserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

const genericFailure = "your contribution could not be completed, please try again later"

// respondError maps the pipeline error taxonomy onto HTTP. Internal detail
// (hosting responses, configuration keys) is logged, never returned.
func (s *Server) respondError(c echo.Context, err error) error {
	var (
		validation   *contribution.ValidationError
		verification *contribution.VerificationError
		captcha      *contribution.CaptchaError
		rateLimit    *contribution.RateLimitError
		moderation   *contribution.ModerationError
		hosting      *contribution.HostingError
		config       *contribution.ConfigurationError
	)
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: validation.Error(), Field: validation.Field})
	case errors.As(err, &verification):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "verification_failed", Message: "email verification failed: " + verification.Reason})
	case errors.As(err, &captcha):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "captcha_failed", Message: "captcha verification failed"})
	case errors.As(err, &rateLimit):
		secs := int(math.Ceil(rateLimit.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate_limited", Message: rateLimit.Error()})
	case errors.As(err, &moderation):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "content_rejected", Message: moderation.Error(), Field: moderation.Field})
	case errors.As(err, &hosting):
		s.log(c).WithFields(logrus.Fields{"last_stage": hosting.LastStage.String(), "op": hosting.Op, "branch": hosting.Branch}).WithError(hosting.Err).Error("contribution failed during hosting write")
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "submission_failed", Message: genericFailure})
	case errors.As(err, &config):
		s.log(c).WithField("key", config.Key).Error("missing configuration")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: genericFailure})
	default:
		s.log(c).WithError(err).Error("request failed")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: genericFailure})
	}
}

func (s *Server) log(c echo.Context) *logrus.Entry {
	logger := s.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithFields(logrus.Fields{
		"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		"path":       c.Path(),
	})
}
