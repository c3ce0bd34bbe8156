package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trainbox/trainbox/pkg/types"
)

// activeProcesses lists every execution session currently in the registry.
func (s *Server) activeProcesses(c echo.Context) error {
	sessions := s.registry.List()
	return c.JSON(http.StatusOK, types.ActiveProcesses{
		ActiveProcesses: sessions,
		Count:           len(sessions),
	})
}

// listRuns returns recent run-history records, newest first.
func (s *Server) listRuns(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"runs": []types.RunRecord{}})
	}

	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = n
	}

	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	if runs == nil {
		runs = []types.RunRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}
