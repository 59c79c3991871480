// Package collector pulls IAM inventory from a Verify-style REST API and
// writes it as per-environment JSONL files.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/iamlens/iamlens/internal/config"
)

// ErrAPI marks any upstream API failure.
var ErrAPI = errors.New("verify api error")

// APIError reports a non-2xx upstream response.
type APIError struct {
	StatusCode int
	URL        string
	Summary    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	summary := strings.TrimSpace(e.Summary)
	if summary != "" {
		return fmt.Sprintf("verify api error: status %d on %s: %s", e.StatusCode, e.URL, summary)
	}
	return fmt.Sprintf("verify api error: status %d on %s", e.StatusCode, e.URL)
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}

// Client is an authenticated Verify API client. Requests retry on 429 and
// 5xx responses; the bearer token is refreshed automatically.
type Client struct {
	apiBase string
	tenant  string
	http    *http.Client
}

// NewClient builds a client from collector configuration. The OAuth2
// client-credentials flow runs over the same retrying transport as the API
// calls.
func NewClient(ctx context.Context, cfg config.Config) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = cfg.CollectRetryMax
	retry.Logger = nil

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TenantURL + "/v1.0/endpoint/default/token",
		Scopes:       []string{"openid"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, retry.StandardClient())

	return &Client{
		apiBase: cfg.TenantURL + "/" + cfg.APIVersion,
		tenant:  cfg.TenantURL,
		http:    cc.Client(tokenCtx),
	}
}

// GetJSON fetches an API path and returns the raw response body. path is
// relative to the API base unless it starts with "/", which roots it at the
// tenant URL (the SCIM capabilities endpoint lives outside the versioned
// base).
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.apiBase + "/" + path
	if strings.HasPrefix(path, "/") {
		target = c.tenant + path
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		summary := string(body)
		if len(summary) > 200 {
			summary = summary[:200]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, URL: target, Summary: summary}
	}
	return body, nil
}
