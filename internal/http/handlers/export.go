package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/export"
)

// HandleExport builds an export document from the current aggregated view
// and serves it as a JSON download.
func (h *Handlers) HandleExport(c *echo.Context) error {
	doc := export.Build(h.State.View(), h.State.Selected())

	filename := fmt.Sprintf("iamlens-export-%s.json", time.Now().UTC().Format("20060102-150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.JSON(http.StatusOK, doc)
}
