package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Log       LogConfig       `yaml:"log"`
	Units     UnitsConfig     `yaml:"units"`
	Clock     ClockConfig     `yaml:"clock"`
	Exercises ExercisesConfig `yaml:"exercises"`
	Offline   OfflineConfig   `yaml:"offline"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the key-value backend holding all persisted state.
type StorageConfig struct {
	Backend    string         `yaml:"backend"` // memory, sqlite, postgres, redis
	SQLitePath string         `yaml:"sqlite_path"`
	Postgres   DatabaseConfig `yaml:"postgres"`
	Redis      RedisConfig    `yaml:"redis"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// AuthConfig holds the optional API key guarding bulk import endpoints.
// An empty key leaves them open (tsnet handles access).
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`
	Stdout bool   `yaml:"stdout"`
}

type UnitsConfig struct {
	Default string `yaml:"default"`
}

type ClockConfig struct {
	Timezone string `yaml:"timezone"`
}

type ExercisesConfig struct {
	SourceURL string        `yaml:"source_url"`
	Timeout   time.Duration `yaml:"timeout"`
	Refresh   bool          `yaml:"refresh"`
}

// OfflineConfig configures the offline-first caching proxy.
type OfflineConfig struct {
	Upstream       string        `yaml:"upstream"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Version        string        `yaml:"version"`
	NetworkTimeout time.Duration `yaml:"network_timeout"`
	CriticalPaths  []string      `yaml:"critical_paths"`
	CacheSizeMB    int           `yaml:"cache_size_mb"`
	MaxBodyMB      int           `yaml:"max_body_mb"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Location resolves the configured timezone, falling back to UTC.
func (c ClockConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Default returns a config usable without any file: sqlite storage under ./data
// and the standard offline cache settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{
			Backend:    "sqlite",
			SQLitePath: "./data/forge.db",
			Redis:      RedisConfig{Addr: "localhost:6379", Prefix: "forge:"},
		},
		Tailscale: TailscaleConfig{Hostname: "forge", StateDir: "./data/tsnet"},
		Log:       LogConfig{Level: "info", Format: "text", Stdout: true},
		Units:     UnitsConfig{Default: "kg"},
		Exercises: ExercisesConfig{
			SourceURL: "https://raw.githubusercontent.com/yuhonas/free-exercise-db/main/dist/exercises.json",
			Timeout:   30 * time.Second,
		},
		Offline: OfflineConfig{
			Upstream:       "http://localhost:8080",
			Host:           "127.0.0.1",
			Port:           8090,
			Version:        "1.2.0",
			NetworkTimeout: 3 * time.Second,
			CriticalPaths:  []string{"/", "/index.html", "/manifest.json"},
			CacheSizeMB:    64,
			MaxBodyMB:      32,
		},
	}
}

// Load reads config from a YAML file on top of Default, then applies environment
// variable overrides. Env vars use the prefix FORGE_ and underscore-separated paths:
//
//	FORGE_SERVER_HOST, FORGE_SERVER_PORT,
//	FORGE_STORAGE_BACKEND, FORGE_SQLITE_PATH,
//	FORGE_DB_HOST, FORGE_DB_PORT, FORGE_DB_NAME,
//	FORGE_DB_USER, FORGE_DB_PASSWORD, FORGE_DB_SSLMODE,
//	FORGE_REDIS_ADDR, FORGE_REDIS_PASSWORD, FORGE_REDIS_DB,
//	FORGE_AUTH_API_KEY, FORGE_TAILSCALE_ENABLED,
//	FORGE_LOG_LEVEL, FORGE_LOG_FILE, FORGE_TIMEZONE,
//	FORGE_OFFLINE_UPSTREAM, FORGE_OFFLINE_PORT
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but starts from Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		applyEnvOverrides(cfg)
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("config validation: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FORGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FORGE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("FORGE_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("FORGE_DB_HOST"); v != "" {
		cfg.Storage.Postgres.Host = v
	}
	if v := os.Getenv("FORGE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Postgres.Port = port
		}
	}
	if v := os.Getenv("FORGE_DB_NAME"); v != "" {
		cfg.Storage.Postgres.Name = v
	}
	if v := os.Getenv("FORGE_DB_USER"); v != "" {
		cfg.Storage.Postgres.User = v
	}
	if v := os.Getenv("FORGE_DB_PASSWORD"); v != "" {
		cfg.Storage.Postgres.Password = v
	}
	if v := os.Getenv("FORGE_DB_SSLMODE"); v != "" {
		cfg.Storage.Postgres.SSLMode = v
	}
	if v := os.Getenv("FORGE_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := os.Getenv("FORGE_REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
	if v := os.Getenv("FORGE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Redis.DB = db
		}
	}
	if v := os.Getenv("FORGE_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("FORGE_TAILSCALE_ENABLED"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			cfg.Tailscale.Enabled = true
		case "0", "false", "no", "off":
			cfg.Tailscale.Enabled = false
		}
	}
	if v := os.Getenv("FORGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FORGE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("FORGE_TIMEZONE"); v != "" {
		cfg.Clock.Timezone = v
	}
	if v := os.Getenv("FORGE_OFFLINE_UPSTREAM"); v != "" {
		cfg.Offline.Upstream = v
	}
	if v := os.Getenv("FORGE_OFFLINE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Offline.Port = port
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.Postgres.Host == "" {
			return fmt.Errorf("storage.postgres.host is required")
		}
		if c.Storage.Postgres.Port == 0 {
			return fmt.Errorf("storage.postgres.port is required")
		}
		if c.Storage.Postgres.Name == "" {
			return fmt.Errorf("storage.postgres.name is required")
		}
		if c.Storage.Postgres.User == "" {
			return fmt.Errorf("storage.postgres.user is required")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, sqlite, postgres, redis", c.Storage.Backend)
	}
	if c.Units.Default != "kg" && c.Units.Default != "lbs" {
		return fmt.Errorf("units.default must be kg or lbs, got %q", c.Units.Default)
	}
	if c.Clock.Timezone != "" {
		if _, err := time.LoadLocation(c.Clock.Timezone); err != nil {
			return fmt.Errorf("clock.timezone: %w", err)
		}
	}
	if c.Offline.Version == "" {
		return fmt.Errorf("offline.version is required")
	}
	if c.Offline.NetworkTimeout <= 0 {
		return fmt.Errorf("offline.network_timeout must be > 0")
	}
	return nil
}
