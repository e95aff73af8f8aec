package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	WS      WSConfig      `yaml:"ws"`
}

type ServerConfig struct {
	Host string `yaml:"host" envconfig:"RELAY_HOST"`
	Port int    `yaml:"port" envconfig:"RELAY_PORT"`
}

type SessionConfig struct {
	// Timeout is the wall-clock age after which an unconsumed session
	// is evicted by the next sweep.
	Timeout time.Duration `yaml:"timeout" envconfig:"RELAY_SESSION_TIMEOUT"`
	// KeepAliveInterval bounds how long a WebSocket wait cycle blocks
	// before emitting a waiting/expired status.
	KeepAliveInterval time.Duration `yaml:"keepalive_interval" envconfig:"RELAY_KEEPALIVE_INTERVAL"`
}

type WSConfig struct {
	SendBuffer int `yaml:"send_buffer" envconfig:"RELAY_WS_SEND_BUFFER"`
	// MaxConnections caps concurrent notification channels across all
	// sessions. 0 disables the limit.
	MaxConnections int `yaml:"max_connections" envconfig:"RELAY_WS_MAX_CONNECTIONS"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Session: SessionConfig{
			Timeout:           5 * time.Minute,
			KeepAliveInterval: 10 * time.Second,
		},
		WS: WSConfig{
			SendBuffer:     64,
			MaxConnections: 0,
		},
	}
}

// Load reads the YAML config at path over the compiled-in defaults,
// then applies RELAY_* environment overrides on top. A missing file is
// not an error: the relay runs fine with zero configuration.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session timeout must be positive, got %s", c.Session.Timeout)
	}
	if c.Session.KeepAliveInterval <= 0 {
		return fmt.Errorf("keepalive interval must be positive, got %s", c.Session.KeepAliveInterval)
	}
	return nil
}
