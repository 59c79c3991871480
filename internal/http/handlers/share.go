package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/persist"
)

// HandleShare is the shareable-link endpoint. With an `envs` parameter it
// applies that selection and redirects to the aggregate view, so a pasted
// link lands on live data. Without one it returns a link that reproduces
// the caller's current selection.
func (h *Handlers) HandleShare(c *echo.Context) error {
	if raw := strings.TrimSpace(c.QueryParam(persist.QueryParam)); raw != "" {
		h.applySelectionParam(raw)
		return c.Redirect(http.StatusSeeOther, "/api/aggregate")
	}

	scheme := c.Scheme()
	if scheme == "" {
		scheme = "http"
	}
	url := scheme + "://" + c.Request().Host + persist.ShareURL("/share", h.State.Selected())
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
