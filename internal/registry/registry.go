// Package registry loads and validates the environment manifest.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/iamlens/iamlens/internal/record"
)

// ErrConfig marks a fatal environment manifest failure.
var ErrConfig = errors.New("environment manifest error")

// ConfigError reports a missing, malformed, or empty-after-validation manifest.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("environment manifest: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("environment manifest: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// Environment is one independently-configured IAM tenant whose data can be
// loaded and visualized. Immutable for the session.
type Environment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URLDomain   string `json:"urlDomain"`
}

type manifestEnvironment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URLDomain   string `json:"url_domain"`
}

type manifest struct {
	Environments map[string]manifestEnvironment `json:"environments"`
}

// Registry holds the validated environment set for the session.
type Registry struct {
	baseURL string
	loader  *record.Loader
	logger  *slog.Logger

	byID  map[string]Environment
	order []string
}

// NewStatic builds a registry from an already-validated environment list,
// preserving order. Used by tests and tooling that bypass the manifest.
func NewStatic(baseURL string, envs []Environment) *Registry {
	reg := &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
		byID:    make(map[string]Environment, len(envs)),
	}
	for _, env := range envs {
		if _, ok := reg.byID[env.ID]; ok {
			continue
		}
		reg.byID[env.ID] = env
		reg.order = append(reg.order, env.ID)
	}
	return reg
}

// Load fetches {baseURL}/environments.json, validates it, probes each
// declared environment's applications resource, and returns a registry of
// the reachable environments. Unreachable environments are excluded with a
// warning; only zero reachable environments is fatal. Call once at startup.
func Load(ctx context.Context, baseURL string, loader *record.Loader, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL = strings.TrimRight(baseURL, "/")

	m, err := fetchManifest(ctx, baseURL, loader.Client)
	if err != nil {
		return nil, err
	}
	if len(m.Environments) == 0 {
		return nil, &ConfigError{Reason: "no environments declared"}
	}

	reg := &Registry{
		baseURL: baseURL,
		loader:  loader,
		logger:  logger,
		byID:    make(map[string]Environment, len(m.Environments)),
	}

	ids := make([]string, 0, len(m.Environments))
	for id := range m.Environments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		meta := m.Environments[id]
		probeURL := reg.ResourceURL(id, record.TypeApplications)
		if err := loader.Probe(ctx, probeURL); err != nil {
			logger.Warn("excluding unreachable environment", "env", id, "err", err)
			continue
		}
		reg.byID[id] = Environment{
			ID:          id,
			Name:        meta.Name,
			Description: meta.Description,
			URLDomain:   meta.URLDomain,
		}
		reg.order = append(reg.order, id)
	}

	if len(reg.order) == 0 {
		return nil, &ConfigError{Reason: "no reachable environments"}
	}
	return reg, nil
}

func fetchManifest(ctx context.Context, baseURL string, client *http.Client) (manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := baseURL + "/environments.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return manifest{}, &ConfigError{Reason: "request failed", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return manifest{}, &ConfigError{Reason: "manifest unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return manifest{}, &ConfigError{Reason: fmt.Sprintf("manifest fetch returned status %d", resp.StatusCode)}
	}

	var m manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return manifest{}, &ConfigError{Reason: "manifest is not valid JSON", Err: err}
	}
	if m.Environments == nil {
		return manifest{}, &ConfigError{Reason: "manifest is missing the environments mapping"}
	}
	return m, nil
}

// Environments returns all reachable environments in stable id order.
func (r *Registry) Environments() []Environment {
	out := make([]Environment, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Get looks up an environment by id.
func (r *Registry) Get(id string) (Environment, bool) {
	env, ok := r.byID[id]
	return env, ok
}

// Has reports whether id names a registered environment.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// ResourceURL derives the JSONL resource path for one environment data type.
func (r *Registry) ResourceURL(envID, dataType string) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", r.baseURL, envID, dataType)
}
