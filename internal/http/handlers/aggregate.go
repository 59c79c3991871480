package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/persist"
)

// HandleAggregate returns the merged multi-environment view. An `envs`
// query parameter takes priority over whatever is currently selected: any
// listed environment that is registered but not yet selected gets selected
// first, so a shared link lands on the data it named.
func (h *Handlers) HandleAggregate(c *echo.Context) error {
	if raw := strings.TrimSpace(c.QueryParam(persist.QueryParam)); raw != "" {
		h.applySelectionParam(raw)
	}

	selected := h.State.Selected()
	statuses := make(map[string]string, len(selected))
	for _, id := range selected {
		statuses[id] = entryStatus(h.Cache, id)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"environments": selected,
		"statuses":     statuses,
		"categories":   h.State.View(),
	})
}

func (h *Handlers) applySelectionParam(raw string) {
	ids := persist.DecodeSelection(raw, h.Registry.Has)
	for _, id := range ids {
		if err := h.State.Select(id); err != nil {
			h.logger().Warn("selection from url parameter rejected", "env", id, "err", err)
		}
	}
}
