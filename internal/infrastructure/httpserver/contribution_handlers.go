package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/contribution"
)

func (s *Server) submitContribution(c echo.Context) error {
	var req contribution.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return s.respondError(c, err)
	}

	client := contribution.ClientInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
	res, err := s.contributionSvc.Submit(c.Request().Context(), &req, client)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
