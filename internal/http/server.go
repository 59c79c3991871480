// Package httpapp wires the dashboard API onto an Echo server.
package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/cache"
	"github.com/iamlens/iamlens/internal/config"
	"github.com/iamlens/iamlens/internal/http/handlers"
	"github.com/iamlens/iamlens/internal/persist"
	"github.com/iamlens/iamlens/internal/registry"
	"github.com/iamlens/iamlens/internal/state"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h   *handlers.Handlers
	e   *echo.Echo
	srv *http.Server
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(cfg config.Config, reg *registry.Registry, c *cache.Cache, st *state.Store, local *persist.LocalStore, logger *slog.Logger) (*EchoServer, error) {
	h := &handlers.Handlers{Cfg: cfg, Registry: reg, Cache: c, State: st, Local: local, Logger: logger}
	es := &EchoServer{h: h, e: echo.New()}
	es.e.HTTPErrorHandler = es.httpErrorHandler
	es.e.Use(requestIDMiddleware)
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.GET("/healthz", es.h.HandleHealthz)
	es.e.GET("/share", es.h.HandleShare)

	api := es.e.Group("/api")
	api.GET("/environments", es.h.HandleEnvironments)
	api.GET("/selection", es.h.HandleSelection)
	api.POST("/selection/:env", es.h.HandleSelect)
	api.DELETE("/selection/:env", es.h.HandleDeselect)
	api.PUT("/selection/:env/datatypes/:type", es.h.HandleToggleDataType)
	api.POST("/selection/:env/reload", es.h.HandleReload)
	api.GET("/aggregate", es.h.HandleAggregate)
	api.GET("/export", es.h.HandleExport)
}

// requestIDMiddleware makes sure every request carries an id for log
// correlation and client error references.
func requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

// httpErrorHandler keeps internal error details out of responses. Explicit
// HTTP errors keep their status; everything else becomes a generic 500 with
// a request reference for the logs.
func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	if r, _ := echo.UnwrapResponse(c.Response()); r != nil && r.Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := httpErr.Message
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		_ = c.JSON(httpErr.Code, map[string]string{"error": msg})
		return
	}

	reference, _ := c.Get(handlers.ContextKeyRequestID).(string)
	if es.h != nil && es.h.Logger != nil {
		es.h.Logger.Error("request failed", "path", c.Request().URL.Path, "reference", reference, "err", err)
	}
	_ = c.JSON(http.StatusInternalServerError, map[string]string{
		"error":     "Internal server error",
		"code":      handlers.InternalErrorCode,
		"reference": reference,
	})
}

// Start starts the HTTP server.
func (es *EchoServer) Start(addr string) error {
	return es.e.Start(addr)
}

// StartServer starts the HTTP server with a custom http.Server.
func (es *EchoServer) StartServer(server *http.Server) error {
	server.Handler = es.e
	es.srv = server
	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	if es.srv == nil {
		return nil
	}
	return es.srv.Shutdown(ctx)
}
