package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avatarctic/wiki-contributions/internal/core/domain/audit"
)

func (s *Server) listContributionAudits(c echo.Context) error {
	filter := audit.Filter{}
	if v := c.QueryParam("outcome"); v != "" {
		o := audit.Outcome(v)
		switch o {
		case audit.OutcomeCompleted, audit.OutcomeRejected, audit.OutcomeFailed:
		default:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: "unknown outcome", Field: "outcome"})
		}
		filter.Outcome = &o
	}
	if v := c.QueryParam("email_hash"); v != "" {
		filter.EmailHash = &v
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := c.QueryParam(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: "must be an integer", Field: name})
			}
			*dst = n
		}
	}

	recs, total, err := s.auditSvc.List(c.Request().Context(), &filter)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"records": recs, "total": total})
}
