package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = "off"
	defaultStateDBPath = "iamlens-state.db"
	defaultLoadTimeout = 30 * time.Second

	defaultAPIVersion      = "v2.0"
	defaultPageSize        = 100
	defaultOutputDir       = "data"
	defaultCollectRetryMax = 3
)

// Config holds all runtime settings for the dashboard server and collectors.
type Config struct {
	// Dashboard settings.
	DataBaseURL string
	HTTPAddr    string
	MetricsAddr string
	StateDBPath string
	LoadTimeout time.Duration

	// Collector settings.
	TenantURL       string
	ClientID        string
	ClientSecret    string
	APIVersion      string
	PageSize        int
	OutputDir       string
	CollectInterval time.Duration
	CollectRetryMax int
}

// LoadOptions controls which settings are mandatory.
type LoadOptions struct {
	RequireDataBaseURL bool
	RequireTenant      bool
}

// Load reads dashboard configuration; DATA_BASE_URL is required.
func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDataBaseURL: true})
}

// LoadCollector reads collector configuration; tenant credentials are required.
func LoadCollector() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireTenant: true})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DataBaseURL:     strings.TrimRight(os.Getenv("DATA_BASE_URL"), "/"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:     getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		StateDBPath:     getenvDefault("STATE_DB_PATH", defaultStateDBPath),
		LoadTimeout:     defaultLoadTimeout,
		TenantURL:       strings.TrimRight(os.Getenv("VERIFY_TENANT_URL"), "/"),
		ClientID:        os.Getenv("VERIFY_CLIENT_ID"),
		ClientSecret:    os.Getenv("VERIFY_CLIENT_SECRET"),
		APIVersion:      getenvDefault("VERIFY_API_VERSION", defaultAPIVersion),
		PageSize:        getenvIntDefault("PAGE_SIZE", defaultPageSize),
		OutputDir:       getenvDefault("OUTPUT_DIR", defaultOutputDir),
		CollectRetryMax: getenvIntDefault("COLLECT_RETRY_MAX", defaultCollectRetryMax),
	}

	if v := os.Getenv("LOAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LoadTimeout = d
		}
	}
	if v := os.Getenv("COLLECT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CollectInterval = d
		}
	}

	if opts.RequireDataBaseURL && cfg.DataBaseURL == "" {
		return cfg, errors.New("DATA_BASE_URL is required")
	}
	if opts.RequireTenant {
		if cfg.TenantURL == "" {
			return cfg, errors.New("VERIFY_TENANT_URL is required")
		}
		if cfg.ClientID == "" {
			return cfg, errors.New("VERIFY_CLIENT_ID is required")
		}
		if cfg.ClientSecret == "" {
			return cfg, errors.New("VERIFY_CLIENT_SECRET is required")
		}
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
