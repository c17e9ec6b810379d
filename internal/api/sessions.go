package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/aibidi/aibidi/internal/terminal"
	"github.com/aibidi/aibidi/pkg/types"
	"github.com/labstack/echo/v4"
)

const defaultSessionLimit = 50

func (s *Server) listSessions(c echo.Context) error {
	limit := defaultSessionLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
		}
		limit = n
	}

	list := types.SessionList{
		Active:   s.lifecycle.Active(),
		Sessions: []types.SessionRecord{},
	}
	if s.audit != nil {
		records, err := s.audit.Recent(limit)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": err.Error(),
			})
		}
		if records != nil {
			list.Sessions = records
		}
	}

	return c.JSON(http.StatusOK, list)
}

// killSession ends a live terminal by ID. The session's WebSocket is closed
// the same way as when the shell exits by itself.
func (s *Server) killSession(c echo.Context) error {
	id := c.Param("id")

	if err := s.terminals.Kill(id); err != nil {
		if errors.Is(err, terminal.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": err.Error(),
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	log.Printf("terminal: session %s killed by request", id)
	return c.NoContent(http.StatusNoContent)
}
