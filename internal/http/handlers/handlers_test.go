package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/iamlens/iamlens/internal/cache"
	"github.com/iamlens/iamlens/internal/record"
	"github.com/iamlens/iamlens/internal/registry"
	"github.com/iamlens/iamlens/internal/state"
)

type stubLoader struct{}

func (stubLoader) LoadRecords(ctx context.Context, url string) ([]record.Record, error) {
	rec, err := record.Parse([]byte(`{"fetch_timestamp":"2026-08-01T00:00:00Z","data":{"id":"x","source":"` + url + `"}}`))
	if err != nil {
		return nil, err
	}
	return []record.Record{rec}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()

	reg := registry.NewStatic("http://data.test", []registry.Environment{
		{ID: "bidevt", Name: "BI Development"},
		{ID: "widevt", Name: "WI Development"},
	})
	ca := cache.New(stubLoader{}, reg.ResourceURL, 0, testLogger())
	st := state.New(context.Background(), reg, ca, nil, testLogger())
	return &Handlers{Registry: reg, Cache: ca, State: st, Logger: testLogger()}
}

func doRequest(h *Handlers, handler echo.HandlerFunc, method, target string, params map[string]string, body string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	pathValues := make(echo.PathValues, 0, len(params))
	for name, value := range params {
		pathValues = append(pathValues, echo.PathValue{Name: name, Value: value})
	}
	c.SetPathValues(pathValues)
	return rec, handler(c)
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	rec, err := doRequest(h, h.HandleHealthz, http.MethodGet, "/healthz", nil, "")
	if err != nil {
		t.Fatalf("HandleHealthz() error = %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandleEnvironments_ListsWithSelectionAndStatus(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	if err := h.State.Select("bidevt"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	h.State.WaitForLoads()

	rec, err := doRequest(h, h.HandleEnvironments, http.MethodGet, "/api/environments", nil, "")
	if err != nil {
		t.Fatalf("HandleEnvironments() error = %v", err)
	}

	var resp struct {
		Environments []EnvironmentView `json:"environments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(resp.Environments) != 2 {
		t.Fatalf("environments = %d, want 2", len(resp.Environments))
	}
	byID := map[string]EnvironmentView{}
	for _, env := range resp.Environments {
		byID[env.ID] = env
	}
	if !byID["bidevt"].Selected || byID["bidevt"].Status != "complete" {
		t.Fatalf("bidevt = %+v", byID["bidevt"])
	}
	if byID["widevt"].Selected || byID["widevt"].Status != "uncached" {
		t.Fatalf("widevt = %+v", byID["widevt"])
	}
}

func TestHandleSelect_UnknownEnvironmentIs404(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	_, err := doRequest(h, h.HandleSelect, http.MethodPost, "/api/selection/ghost", map[string]string{"env": "ghost"}, "")

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 HTTPError", err)
	}
}

func TestSelectionLifecycle(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)

	rec, err := doRequest(h, h.HandleSelect, http.MethodPost, "/api/selection/bidevt", map[string]string{"env": "bidevt"}, "")
	if err != nil {
		t.Fatalf("HandleSelect() error = %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("select status = %d", rec.Code)
	}
	h.State.WaitForLoads()

	rec, err = doRequest(h, h.HandleToggleDataType, http.MethodPut,
		"/api/selection/bidevt/datatypes/federations",
		map[string]string{"env": "bidevt", "type": "federations"}, `{"enabled":false}`)
	if err != nil {
		t.Fatalf("HandleToggleDataType() error = %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("toggle status = %d", rec.Code)
	}

	rec, err = doRequest(h, h.HandleSelection, http.MethodGet, "/api/selection", nil, "")
	if err != nil {
		t.Fatalf("HandleSelection() error = %v", err)
	}
	var sel struct {
		Environments []string                   `json:"environments"`
		DataTypes    map[string]map[string]bool `json:"dataTypes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sel); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(sel.Environments) != 1 || sel.Environments[0] != "bidevt" {
		t.Fatalf("environments = %v", sel.Environments)
	}
	if sel.DataTypes["bidevt"]["federations"] {
		t.Fatal("federations should be disabled after toggle")
	}
	if !sel.DataTypes["bidevt"]["applications"] {
		t.Fatal("applications should stay enabled")
	}

	rec, err = doRequest(h, h.HandleDeselect, http.MethodDelete, "/api/selection/bidevt", map[string]string{"env": "bidevt"}, "")
	if err != nil {
		t.Fatalf("HandleDeselect() error = %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("deselect status = %d", rec.Code)
	}
	if got := h.State.Selected(); len(got) != 0 {
		t.Fatalf("selection after deselect = %v", got)
	}
}

func TestHandleToggleDataType_UnknownTypeIs400(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	if err := h.State.Select("bidevt"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	_, err := doRequest(h, h.HandleToggleDataType, http.MethodPut,
		"/api/selection/bidevt/datatypes/nonsense",
		map[string]string{"env": "bidevt", "type": "nonsense"}, `{"enabled":true}`)

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 HTTPError", err)
	}
}

func TestHandleReload_NotSelectedIs404(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	_, err := doRequest(h, h.HandleReload, http.MethodPost, "/api/selection/bidevt/reload", map[string]string{"env": "bidevt"}, "")

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 HTTPError", err)
	}
}

func TestHandleAggregate_EnvsParamSelects(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	rec, err := doRequest(h, h.HandleAggregate, http.MethodGet, "/api/aggregate?envs=bidevt,ghost", nil, "")
	if err != nil {
		t.Fatalf("HandleAggregate() error = %v", err)
	}
	h.State.WaitForLoads()

	if got := h.State.Selected(); len(got) != 1 || got[0] != "bidevt" {
		t.Fatalf("selection = %v, want [bidevt]", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleAggregate_TagsRecordsWithEnvironment(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	if err := h.State.Select("bidevt"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	h.State.WaitForLoads()

	rec, err := doRequest(h, h.HandleAggregate, http.MethodGet, "/api/aggregate", nil, "")
	if err != nil {
		t.Fatalf("HandleAggregate() error = %v", err)
	}

	var resp struct {
		Environments []string                     `json:"environments"`
		Statuses     map[string]string            `json:"statuses"`
		Categories   map[string][]json.RawMessage `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.Statuses["bidevt"] != "complete" {
		t.Fatalf("statuses = %v", resp.Statuses)
	}
	apps := resp.Categories["applications"]
	if len(apps) == 0 {
		t.Fatal("applications category empty")
	}
	if !strings.Contains(string(apps[0]), `"_environmentId":"bidevt"`) {
		t.Fatalf("record missing environment tag: %s", apps[0])
	}
}

func TestHandleExport_SetsDownloadHeader(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	if err := h.State.Select("bidevt"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	h.State.WaitForLoads()

	rec, err := doRequest(h, h.HandleExport, http.MethodGet, "/api/export", nil, "")
	if err != nil {
		t.Fatalf("HandleExport() error = %v", err)
	}
	disposition := rec.Header().Get(echo.HeaderContentDisposition)
	if !strings.Contains(disposition, "attachment") || !strings.Contains(disposition, "iamlens-export-") {
		t.Fatalf("Content-Disposition = %q", disposition)
	}
	var doc struct {
		Summary struct {
			Environments []string `json:"environments"`
			TotalRecords int      `json:"totalRecords"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(doc.Summary.Environments) != 1 || doc.Summary.TotalRecords == 0 {
		t.Fatalf("summary = %+v", doc.Summary)
	}
}

func TestHandleShare_ReturnsLinkForCurrentSelection(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	if err := h.State.Select("bidevt"); err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	rec, err := doRequest(h, h.HandleShare, http.MethodGet, "http://lens.example/share", nil, "")
	if err != nil {
		t.Fatalf("HandleShare() error = %v", err)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !strings.Contains(resp["url"], "lens.example/share?envs=bidevt") {
		t.Fatalf("url = %q", resp["url"])
	}
}

func TestHandleShare_EnvsParamRedirects(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	rec, err := doRequest(h, h.HandleShare, http.MethodGet, "/share?envs=bidevt", nil, "")
	if err != nil {
		t.Fatalf("HandleShare() error = %v", err)
	}
	h.State.WaitForLoads()

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderLocation); got != "/api/aggregate" {
		t.Fatalf("location = %q", got)
	}
	if got := h.State.Selected(); len(got) != 1 || got[0] != "bidevt" {
		t.Fatalf("selection = %v", got)
	}
}
