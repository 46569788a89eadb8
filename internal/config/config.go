package config

import (
	"encoding/json"
	"os"
	"time"
)

type Config struct {
	ListenAddr string `json:"listen_addr"`
	DataDir    string `json:"data_dir"`
	GeoIPPath  string `json:"geoip_path"`

	// Site used by analytics queries when the caller omits site_id
	DefaultSiteID string `json:"default_site_id"`

	// Ingestion limits
	RateLimitPerMinute  int `json:"rate_limit_per_minute"`
	StoreTimeoutSeconds int `json:"store_timeout_seconds"`

	// CORS
	AllowedOrigins []string `json:"allowed_origins"`

	// Secret for signing dashboard tokens
	SecretKey string `json:"secret_key"`

	// Bcrypt hash of the dashboard admin password (set by `ghosttrack init`)
	AdminPasswordHash string `json:"admin_password_hash"`

	Environment string `json:"environment"`
}

func Load(path string) *Config {
	cfg := &Config{
		ListenAddr:          ":8000",
		DataDir:             "./data",
		GeoIPPath:           "./data/GeoLite2-City.mmdb",
		DefaultSiteID:       "ghosttrack-test-dashboard",
		RateLimitPerMinute:  100,
		StoreTimeoutSeconds: 5,
		AllowedOrigins:      []string{"*"},
		SecretKey:           "change-me-in-production",
		Environment:         "development",
	}

	if path == "" {
		path = "config.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// Use defaults if no config file
		return cfg
	}

	json.Unmarshal(data, cfg)
	return cfg
}

// Save writes the config to disk (used by the init command).
func (c *Config) Save(path string) error {
	if path == "" {
		path = "config.json"
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// StoreTimeout returns the bounded timeout applied to store operations.
func (c *Config) StoreTimeout() time.Duration {
	if c.StoreTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}
