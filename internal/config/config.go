// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"

	apperr "github.com/studyflow/backend/internal/errors"
)

// Config holds everything the server needs at startup.
type Config struct {
	ListenAddr string
	DataDir    string
	LogLevel   string

	// RemoteURL is the cloud backend base URL. Empty means the app runs
	// purely local: everything queues and nothing is sent.
	RemoteURL string
	// ProbeURL is probed to confirm connectivity after a request failure.
	ProbeURL string
	// AuthToken is the bearer token for the remote backend.
	AuthToken string

	ProbeInterval time.Duration
	SyncInterval  time.Duration
	BackoffBase   time.Duration
	BackoffCap    time.Duration
}

// Load reads configuration from the environment. If envFile names an
// existing file it is loaded first; a missing file is not an error so the
// binary runs unconfigured in development.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, apperr.Wrap(apperr.ErrInternal, "loading env file", err)
			}
		}
	}

	cfg := &Config{
		ListenAddr: envString("STUDYFLOW_LISTEN_ADDR", ":8080"),
		DataDir:    envString("STUDYFLOW_DATA_DIR", "./data"),
		LogLevel:   envString("STUDYFLOW_LOG_LEVEL", "info"),
		RemoteURL:  os.Getenv("STUDYFLOW_REMOTE_URL"),
		ProbeURL:   os.Getenv("STUDYFLOW_PROBE_URL"),
		AuthToken:  os.Getenv("STUDYFLOW_AUTH_TOKEN"),
	}
	if cfg.ProbeURL == "" && cfg.RemoteURL != "" {
		cfg.ProbeURL = cfg.RemoteURL + "/healthz"
	}

	var err error
	if cfg.ProbeInterval, err = envDuration("STUDYFLOW_PROBE_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = envDuration("STUDYFLOW_SYNC_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.BackoffBase, err = envDuration("STUDYFLOW_BACKOFF_BASE", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BackoffCap, err = envDuration("STUDYFLOW_BACKOFF_CAP", 15*time.Minute); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrInvalid, key+" is not a duration", err)
	}
	return d, nil
}
