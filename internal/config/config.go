package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the persistent application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Cache     CacheConfig     `json:"cache"`
	Fetch     FetchConfig     `json:"fetch"`
	Telemetry TelemetryConfig `json:"telemetry"`
	UI        UIConfig        `json:"ui"`

	// DataDir holds the bookmark database. Empty means ~/.consonant.
	DataDir string `json:"data_dir,omitempty"`
}

// ServerConfig holds the HTTP service settings
type ServerConfig struct {
	Addr string `json:"addr"`
}

// CacheConfig selects the feed response cache. An empty RedisAddr keeps
// responses in process memory.
type CacheConfig struct {
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db"`
	TTLSeconds    int    `json:"ttl_seconds"`
}

// FetchConfig holds card feed client settings
type FetchConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// TelemetryConfig holds the error beacon settings
type TelemetryConfig struct {
	Enabled    bool    `json:"enabled"`
	Endpoint   string  `json:"endpoint,omitempty"`
	ClientID   string  `json:"client_id"`
	SampleRate float64 `json:"sample_rate"` // percent of events sent, 0-100
}

// UIConfig holds terminal browser preferences
type UIConfig struct {
	SearchDebounceMs int  `json:"search_debounce_ms"`
	ShowTags         bool `json:"show_tags"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Cache: CacheConfig{
			TTLSeconds: 300,
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			ClientID:   "chimera",
			SampleRate: 1,
		},
		UI: UIConfig{
			SearchDebounceMs: 300,
			ShowTags:         true,
		},
	}
}

// Dir returns ~/.consonant
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".consonant")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. A missing file yields the defaults
// populated from the environment; a corrupt file yields plain defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), nil
	}
	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // may hold the Redis password
}

// AutoPopulateFromEnv overrides settings from CONSONANT_* environment variables
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("CONSONANT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CONSONANT_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("CONSONANT_REDIS_PASSWORD"); v != "" {
		c.Cache.RedisPassword = v
	}
	if v := os.Getenv("CONSONANT_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("CONSONANT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CONSONANT_FETCH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Fetch.TimeoutSeconds = n
		}
	}
}

// DatabasePath returns the bookmark database location
func (c *Config) DatabasePath() string {
	dir := c.DataDir
	if dir == "" {
		dir = Dir()
	}
	return filepath.Join(dir, "consonant.db")
}

// FetchTimeout returns the feed request timeout
func (c *Config) FetchTimeout() time.Duration {
	if c.Fetch.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long feed responses are cached
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// SearchDebounce returns the search input debounce delay
func (c *Config) SearchDebounce() time.Duration {
	return time.Duration(c.UI.SearchDebounceMs) * time.Millisecond
}
