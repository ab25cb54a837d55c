// Package config loads process configuration from environment variables.
package config

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Transport mode values for MCP_TRANSPORT.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// envKeys maps recognized environment variables to config keys. Everything
// else in the environment is ignored.
var envKeys = map[string]string{
	"MCP_TRANSPORT":         "transport",
	"PORT":                  "port",
	"MCP_API_KEY":           "api_key",
	"PUBLIC_BASE_URL":       "public_base_url",
	"CORS_ORIGIN":           "cors_origin",
	"SSE_HEARTBEAT_SECONDS": "sse_heartbeat_seconds",
}

// Config is the resolved process configuration.
type Config struct {
	Transport        string `koanf:"transport"`
	Port             int    `koanf:"port"`
	APIKey           string `koanf:"api_key"`
	PublicBaseURL    string `koanf:"public_base_url"`
	CORSOrigin       string `koanf:"cors_origin"`
	HeartbeatSeconds int    `koanf:"sse_heartbeat_seconds"`
}

// OAuthEnabled reports whether the authorization server should run; it
// needs a public base URL to mint issuer-relative endpoints.
func (c *Config) OAuthEnabled() bool {
	return c.PublicBaseURL != ""
}

// Heartbeat converts the configured interval; zero selects the transport
// default.
func (c *Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider("", ".", func(key string) string {
		return envKeys[key]
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	cfg := &Config{Transport: TransportStdio}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
	case TransportHTTP, TransportSSE:
		if cfg.APIKey == "" {
			return nil, errors.Errorf("MCP_API_KEY is required for transport %q", cfg.Transport)
		}
		if cfg.Port == 0 {
			if cfg.Transport == TransportHTTP {
				cfg.Port = 3000
			} else {
				cfg.Port = 3001
			}
		}
	default:
		return nil, errors.Errorf("unknown MCP_TRANSPORT value %q", cfg.Transport)
	}

	return cfg, nil
}
