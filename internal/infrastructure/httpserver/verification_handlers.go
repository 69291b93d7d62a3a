package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/verification"
)

func (s *Server) requestVerificationCode(c echo.Context) error {
	var req verification.RequestCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return s.respondError(c, err)
	}

	resp, err := s.verificationSvc.RequestCode(c.Request().Context(), req.Email, c.RealIP())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, resp)
}

func (s *Server) confirmVerificationCode(c echo.Context) error {
	var req verification.ConfirmCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return s.respondError(c, err)
	}

	resp, err := s.verificationSvc.ConfirmCode(c.Request().Context(), req.Email, req.Code)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
