// Package config loads the Gateway and World configuration records from
// YAML, with defaults-then-override the way the teacher's
// internal/config.LoadLoginServer/LoadGameServer do, plus a --env dotenv
// overlay applied on top (env overrides YAML overrides defaults).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway holds all configuration for the gateway process: client-facing
// listeners, the outbound RPC client to the World, and session/reconnection
// timing (§6).
type Gateway struct {
	// Client listeners
	TelnetAddr    string `yaml:"telnet.addr"`
	WebSocketAddr string `yaml:"websocket.addr"`
	WebSocketPath string `yaml:"websocket.path"`

	// Outbound RPC client to the World
	ServerAddr              string        `yaml:"server.addr"`
	ServerAuthKey           string        `yaml:"server.auth_key"`
	ServerReconnectInterval time.Duration `yaml:"server.reconnect_interval"`
	ServerHeartbeatInterval time.Duration `yaml:"server.heartbeat_interval"`

	// Session lifecycle
	ClientIdleTimeout   time.Duration `yaml:"client.idle_timeout"`
	SessionTimeout      time.Duration `yaml:"session.timeout"`
	ReconnectTokenTTL   time.Duration `yaml:"reconnect.token_ttl"`
	PropertiesCacheTTL  time.Duration `yaml:"properties.cache_ttl"`
	MailboxCapacity     int           `yaml:"mailbox.capacity"`
	SessionCleanupEvery time.Duration `yaml:"session.cleanup_interval"`

	// Optional shared backing store for the properties cache, so more than
	// one gateway process can share banner values. Reconnection tokens and
	// queued commands are not stored there. Empty means in-memory only.
	RedisAddr string `yaml:"redis.addr"`

	LogLevel string `yaml:"log_level"`
}

// DefaultGateway returns Gateway config with the spec's defaults (§6).
func DefaultGateway() Gateway {
	return Gateway{
		TelnetAddr:              "0.0.0.0:4000",
		WebSocketAddr:           "0.0.0.0:8080",
		WebSocketPath:           "/websocket",
		ServerAddr:              "127.0.0.1:4100",
		ServerAuthKey:           "",
		ServerReconnectInterval: 5 * time.Second,
		ServerHeartbeatInterval: 15 * time.Second,
		ClientIdleTimeout:       60 * time.Second,
		SessionTimeout:          300 * time.Second,
		ReconnectTokenTTL:       3600 * time.Second,
		PropertiesCacheTTL:      300 * time.Second,
		MailboxCapacity:         256,
		SessionCleanupEvery:     30 * time.Second,
		LogLevel:                "info",
	}
}

// LoadGateway loads gateway config from a YAML file, falling back to
// defaults if path is empty or the file doesn't exist, then applies the
// dotenv overlay at envPath if non-empty.
func LoadGateway(path, envPath string) (Gateway, error) {
	cfg := DefaultGateway()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through to defaults
		default:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if envPath != "" {
		if err := applyGatewayEnv(&cfg, envPath); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func applyGatewayEnv(cfg *Gateway, envPath string) error {
	overrides, err := loadDotenv(envPath)
	if err != nil {
		return fmt.Errorf("reading env %s: %w", envPath, err)
	}
	for k, v := range overrides {
		switch k {
		case "TELNET_ADDR":
			cfg.TelnetAddr = v
		case "WEBSOCKET_ADDR":
			cfg.WebSocketAddr = v
		case "WEBSOCKET_PATH":
			cfg.WebSocketPath = v
		case "SERVER_ADDR":
			cfg.ServerAddr = v
		case "SERVER_AUTH_KEY":
			cfg.ServerAuthKey = v
		case "REDIS_ADDR":
			cfg.RedisAddr = v
		case "LOG_LEVEL":
			cfg.LogLevel = v
		case "SERVER_RECONNECT_INTERVAL":
			if d, err := time.ParseDuration(v); err == nil {
				cfg.ServerReconnectInterval = d
			}
		case "SERVER_HEARTBEAT_INTERVAL":
			if d, err := time.ParseDuration(v); err == nil {
				cfg.ServerHeartbeatInterval = d
			}
		case "CLIENT_IDLE_TIMEOUT":
			if d, err := time.ParseDuration(v); err == nil {
				cfg.ClientIdleTimeout = d
			}
		case "SESSION_TIMEOUT":
			if d, err := time.ParseDuration(v); err == nil {
				cfg.SessionTimeout = d
			}
		case "RECONNECT_TOKEN_TTL":
			if d, err := time.ParseDuration(v); err == nil {
				cfg.ReconnectTokenTTL = d
			}
		}
	}
	return nil
}
