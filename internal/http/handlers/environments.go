package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/cache"
)

// EnvironmentView is one environment row in the /api/environments response.
type EnvironmentView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URLDomain   string `json:"urlDomain,omitempty"`
	Selected    bool   `json:"selected"`
	Status      string `json:"status"`
}

// HandleEnvironments lists every reachable environment with its selection
// flag and cache status.
func (h *Handlers) HandleEnvironments(c *echo.Context) error {
	selected := map[string]bool{}
	for _, id := range h.State.Selected() {
		selected[id] = true
	}

	envs := h.Registry.Environments()
	out := make([]EnvironmentView, 0, len(envs))
	for _, env := range envs {
		out = append(out, EnvironmentView{
			ID:          env.ID,
			Name:        env.Name,
			Description: env.Description,
			URLDomain:   env.URLDomain,
			Selected:    selected[env.ID],
			Status:      entryStatus(h.Cache, env.ID),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"environments": out})
}

// entryStatus reports an environment's cache status, "uncached" when no
// entry exists yet.
func entryStatus(ca *cache.Cache, envID string) string {
	if entry, ok := ca.Get(envID); ok {
		return string(entry.Status)
	}
	return "uncached"
}
