package record

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadRecords_DropsMalformedLines(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{\"a\":1}\nnot json\n{\"b\":2}\n")
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client(), testLogger())
	records, err := loader.LoadRecords(context.Background(), srv.URL+"/x.jsonl")
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if got := records[0].Field("a").Int(); got != 1 {
		t.Fatalf("records[0].a = %d, want 1", got)
	}
	if got := records[1].Field("b").Int(); got != 2 {
		t.Fatalf("records[1].b = %d, want 2", got)
	}
}

func TestLoadRecords_EmptyAndWhitespaceBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "\n\n   \n"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		}))
		loader := NewLoader(srv.Client(), testLogger())
		records, err := loader.LoadRecords(context.Background(), srv.URL+"/empty.jsonl")
		srv.Close()
		if err != nil {
			t.Fatalf("LoadRecords(%q) error = %v", body, err)
		}
		if len(records) != 0 {
			t.Fatalf("LoadRecords(%q) = %d records, want 0", body, len(records))
		}
	}
}

func TestLoadRecords_NotFoundReturnsLoadError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client(), testLogger())
	_, err := loader.LoadRecords(context.Background(), srv.URL+"/missing.jsonl")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error = %T, want *LoadError", err)
	}
	if le.StatusCode != http.StatusNotFound {
		t.Fatalf("StatusCode = %d, want 404", le.StatusCode)
	}
	if !errors.Is(err, ErrLoad) {
		t.Fatal("expected errors.Is(err, ErrLoad)")
	}
}

func TestLoadRecords_ParsesEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"fetch_timestamp":"2026-01-02T03:04:05Z","data":{"name":"HR Portal"}}`+"\n")
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client(), testLogger())
	records, err := loader.LoadRecords(context.Background(), srv.URL+"/applications.jsonl")
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].FetchTimestamp != "2026-01-02T03:04:05Z" {
		t.Fatalf("FetchTimestamp = %q", records[0].FetchTimestamp)
	}
	if got := records[0].Field("name").String(); got != "HR Portal" {
		t.Fatalf("Field(name) = %q, want %q", got, "HR Portal")
	}
}

func TestProbe_FallsBackToGet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client(), testLogger())
	if err := loader.Probe(context.Background(), srv.URL+"/applications.jsonl"); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
}

func TestProbe_MissingResource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client(), testLogger())
	err := loader.Probe(context.Background(), srv.URL+"/applications.jsonl")
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("Probe() error = %v, want ErrLoad", err)
	}
}
