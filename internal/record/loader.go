package record

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxLineBytes bounds a single JSONL line; application detail payloads can
// run into the megabytes.
const maxLineBytes = 8 << 20

// Loader fetches line-delimited JSON resources over HTTP.
type Loader struct {
	Client *http.Client
	Logger *slog.Logger
}

// NewLoader returns a Loader backed by the given HTTP client.
func NewLoader(client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{Client: client, Logger: logger}
}

// LoadRecords fetches url and parses each non-blank line as an independent
// JSON value. Malformed lines are dropped with a warning and never abort the
// load. An empty body yields an empty slice. A non-2xx response returns a
// *LoadError carrying the HTTP status.
func (l *Loader) LoadRecords(ctx context.Context, url string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, &LoadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &LoadError{URL: url, StatusCode: resp.StatusCode}
	}

	records := []Record{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	lineNo := 0
	dropped := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := Parse(line)
		if err != nil {
			dropped++
			l.Logger.Warn("dropping record line", "url", url, "line", lineNo, "err", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if dropped > 0 {
		l.Logger.Warn("resource contained unusable lines", "url", url, "dropped", dropped, "kept", len(records))
	}
	return records, nil
}

// Probe checks that url exists without downloading it. It tries HEAD first
// and falls back to GET for servers that reject HEAD.
func (l *Loader) Probe(ctx context.Context, url string) error {
	status, err := l.probeOnce(ctx, http.MethodHead, url)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = l.probeOnce(ctx, http.MethodGet, url)
	}
	if err != nil {
		return &LoadError{URL: url, Err: err}
	}
	if status < 200 || status > 299 {
		return &LoadError{URL: url, StatusCode: status}
	}
	return nil
}

func (l *Loader) probeOnce(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}
