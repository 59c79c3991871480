package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/record"
	"github.com/iamlens/iamlens/internal/state"
)

// HandleSelection reports the current selection and per-environment
// data-type flags.
func (h *Handlers) HandleSelection(c *echo.Context) error {
	selected := h.State.Selected()
	dataTypes := make(map[string]map[string]bool, len(selected))
	for _, id := range selected {
		if sel, ok := h.State.DataTypes(id); ok {
			dataTypes[id] = sel
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"environments": selected,
		"dataTypes":    dataTypes,
	})
}

// HandleSelect adds an environment to the selection and starts its data
// load in the background.
func (h *Handlers) HandleSelect(c *echo.Context) error {
	envID := c.Param("env")
	if err := h.State.Select(envID); err != nil {
		if errors.Is(err, state.ErrUnknownEnvironment) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown environment: "+envID)
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeselect removes an environment from the selection. Its cached data
// is kept for a later reselect.
func (h *Handlers) HandleDeselect(c *echo.Context) error {
	h.State.Deselect(c.Param("env"))
	return c.NoContent(http.StatusNoContent)
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// HandleToggleDataType flips one data-type flag for a selected environment.
func (h *Handlers) HandleToggleDataType(c *echo.Context) error {
	envID := c.Param("env")
	dataType := c.Param("type")

	if !record.IsKnownDataType(dataType) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown data type: "+dataType)
	}
	if _, ok := h.State.DataTypes(envID); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "environment not selected: "+envID)
	}

	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	h.State.ToggleDataType(envID, dataType, req.Enabled)
	return c.NoContent(http.StatusNoContent)
}

// HandleReload discards an environment's cached data and refetches it.
func (h *Handlers) HandleReload(c *echo.Context) error {
	envID := c.Param("env")
	if err := h.State.ForceReload(envID); err != nil {
		if errors.Is(err, state.ErrUnknownEnvironment) {
			return echo.NewHTTPError(http.StatusNotFound, "environment not selected: "+envID)
		}
		return err
	}
	return c.NoContent(http.StatusAccepted)
}
