package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL connection parameters for the persistence
// collaborator (§6). Adapted from the teacher's own DatabaseConfig.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// DSN returns the PostgreSQL connection string pgxpool consumes.
func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", d.MaxConns)
	}
	if d.MinConns > 0 {
		dsn += fmt.Sprintf("&pool_min_conns=%d", d.MinConns)
	}
	return dsn
}

// World holds all configuration for the world process: the RPC listener
// gateways attach to, the persistence backend, and the properties the
// Gateway pulls.
type World struct {
	ListenAddr string `yaml:"listener.addr"`
	AuthKey    string `yaml:"listener.auth_key"`

	Database DatabaseConfig `yaml:"database"`

	// Optional shared cache address, mirroring config.Gateway.RedisAddr. It
	// is loaded from YAML and the REDIS_ADDR override, but the world process
	// does not connect to it or mirror anything there.
	RedisAddr string `yaml:"redis.addr"`

	// MetricsAddr is the HTTP mux serving /metrics (prometheus) and a
	// /healthz liveness probe — not a second listener in the RPC sense. It
	// does not serve GatewayProperty values.
	MetricsAddr string `yaml:"metrics.addr"`

	LogLevel string `yaml:"log_level"`
}

// DefaultWorld returns World config with sensible defaults.
func DefaultWorld() World {
	return World{
		ListenAddr:  "0.0.0.0:4100",
		AuthKey:     "",
		MetricsAddr: "0.0.0.0:9100",
		LogLevel:    "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "wyldlands",
			Password: "wyldlands",
			DBName:   "wyldlands",
			SSLMode:  "disable",
		},
	}
}

// LoadWorld loads world config from YAML plus an optional --env overlay,
// mirroring LoadGateway's precedence.
func LoadWorld(path, envPath string) (World, error) {
	cfg := DefaultWorld()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if envPath != "" {
		if err := applyWorldEnv(&cfg, envPath); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func applyWorldEnv(cfg *World, envPath string) error {
	overrides, err := loadDotenv(envPath)
	if err != nil {
		return fmt.Errorf("reading env %s: %w", envPath, err)
	}
	for k, v := range overrides {
		switch k {
		case "LISTEN_ADDR":
			cfg.ListenAddr = v
		case "AUTH_KEY":
			cfg.AuthKey = v
		case "REDIS_ADDR":
			cfg.RedisAddr = v
		case "METRICS_ADDR":
			cfg.MetricsAddr = v
		case "LOG_LEVEL":
			cfg.LogLevel = v
		case "DB_HOST":
			cfg.Database.Host = v
		case "DB_USER":
			cfg.Database.User = v
		case "DB_PASSWORD":
			cfg.Database.Password = v
		case "DB_NAME":
			cfg.Database.DBName = v
		}
	}
	return nil
}
