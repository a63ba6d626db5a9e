package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Backend BackendConfig `json:"backend"`
	Ingest  IngestConfig  `json:"ingest"`
	WebChat WebChatConfig `json:"webchat"`
	Log     LogConfig     `json:"log"`
	mu      sync.RWMutex
}

type BackendConfig struct {
	BaseURL        string `json:"base_url" env:"JARVISCTL_BACKEND_BASE_URL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"JARVISCTL_BACKEND_TIMEOUT_SECONDS"`
}

type IngestConfig struct {
	ChunkSize    int `json:"chunk_size" env:"JARVISCTL_INGEST_CHUNK_SIZE"`
	ChunkOverlap int `json:"chunk_overlap" env:"JARVISCTL_INGEST_CHUNK_OVERLAP"`
}

type WebChatConfig struct {
	Host     string `json:"host" env:"JARVISCTL_WEBCHAT_HOST"`
	Port     int    `json:"port" env:"JARVISCTL_WEBCHAT_PORT"`
	Username string `json:"username" env:"JARVISCTL_WEBCHAT_USERNAME"`
	Password string `json:"password" env:"JARVISCTL_WEBCHAT_PASSWORD"`
}

type LogConfig struct {
	Level string `json:"level" env:"JARVISCTL_LOG_LEVEL"`
	File  string `json:"file" env:"JARVISCTL_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:5000",
			TimeoutSeconds: 0,
		},
		Ingest: IngestConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		WebChat: WebChatConfig{
			Host: "0.0.0.0",
			Port: 18800,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".jarvisctl", "config.json")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Support full config from env var (for containers / CI)
	if cfgJSON := os.Getenv("JARVISCTL_CONFIG_JSON"); cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
			return nil, fmt.Errorf("parsing JARVISCTL_CONFIG_JSON: %w", err)
		}
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	path = expandHome(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) BackendURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Backend.BaseURL
}

// RequestTimeout returns the configured HTTP timeout, zero meaning none.
func (c *Config) RequestTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Backend.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) LogFilePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Log.File)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
