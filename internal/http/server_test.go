package httpapp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/http/handlers"
)

func TestHTTPErrorHandlerInternalErrorIsGeneric(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(handlers.ContextKeyRequestID, "req-123")

	es := &EchoServer{h: &handlers.Handlers{}, e: e}
	es.httpErrorHandler(c, errors.New("very sensitive error"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusInternalServerError)
	}

	body := rec.Body.String()
	if strings.Contains(body, "very sensitive") {
		t.Fatalf("response leaked error details: %q", body)
	}
	if !strings.Contains(body, "Internal server error") {
		t.Fatalf("response missing generic message: %q", body)
	}
	if !strings.Contains(body, "req-123") {
		t.Fatalf("response missing request reference: %q", body)
	}
	if !strings.Contains(body, handlers.InternalErrorCode) {
		t.Fatalf("response missing error code: %q", body)
	}
}

func TestHTTPErrorHandlerKeepsExplicitStatus(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	es := &EchoServer{h: &handlers.Handlers{}, e: e}
	es.httpErrorHandler(c, echo.NewHTTPError(http.StatusNotFound, "unknown environment: ghost"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "unknown environment") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestRequestIDMiddlewareAssignsID(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := requestIDMiddleware(func(c *echo.Context) error {
		if got, _ := c.Get(handlers.ContextKeyRequestID).(string); got == "" {
			t.Fatal("request id not set on context")
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("X-Request-ID header not set")
	}
}

func TestRequestIDMiddlewareKeepsClientID(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "http://example.com/healthz", nil)
	req.Header.Set(echo.HeaderXRequestID, "client-7")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := requestIDMiddleware(func(c *echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "client-7" {
		t.Fatalf("X-Request-ID = %q, want client-7", got)
	}
}
