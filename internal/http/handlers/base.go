// Package handlers contains HTTP handler logic split by domain.
package handlers

import (
	"log/slog"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/cache"
	"github.com/iamlens/iamlens/internal/config"
	"github.com/iamlens/iamlens/internal/persist"
	"github.com/iamlens/iamlens/internal/registry"
	"github.com/iamlens/iamlens/internal/state"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
)

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg      config.Config
	Registry *registry.Registry
	Cache    *cache.Cache
	State    *state.Store
	Local    *persist.LocalStore
	Logger   *slog.Logger
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// HandleHealthz returns a simple health check response.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(200, "ok")
}
