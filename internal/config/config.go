package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultEnv           = "development"
	defaultHTTPHost      = "0.0.0.0"
	defaultHTTPPort      = 8080
	defaultDataDir       = "data/order_book"
	defaultBucketMinutes = 10
	defaultPingSeconds   = 20
)

// Config keeps the runtime configuration for the collector.
type Config struct {
	Env         string            `yaml:"env"`
	HTTP        HTTPConfig        `yaml:"http"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Exchanges   []ExchangeConfig  `yaml:"exchanges"`
}

// HTTPConfig holds the ops endpoint listener settings.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// PostgresConfig stores the bucket catalog connection. An empty DSN disables
// the catalog.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig stores the latest-state mirror connection. An empty Addr
// disables the mirror.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
}

// PersistenceConfig controls the columnar bucket store.
type PersistenceConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	BucketMinutes int    `yaml:"bucket_minutes"`
	DrainOnStop   bool   `yaml:"drain_on_stop"`
}

// Interval returns the bucket length.
func (p PersistenceConfig) Interval() time.Duration {
	return time.Duration(p.BucketMinutes) * time.Minute
}

// ExchangeConfig describes one feed to collect.
type ExchangeConfig struct {
	Name          string   `yaml:"name"`
	WSURL         string   `yaml:"ws_url"`
	APIKey        string   `yaml:"api_key"`
	SecretKey     string   `yaml:"secret_key"`
	TransportPort int      `yaml:"transport_port"`
	PingSeconds   int      `yaml:"ping_seconds"`
	Symbols       []string `yaml:"symbols"`
}

// PingInterval returns the keepalive cadence for the feed session.
func (e ExchangeConfig) PingInterval() time.Duration {
	if e.PingSeconds <= 0 {
		return defaultPingSeconds * time.Second
	}
	return time.Duration(e.PingSeconds) * time.Second
}

// Load reads the yaml file at path, applies defaults and environment
// overrides for the credentials, and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &Config{
		Env:  defaultEnv,
		HTTP: HTTPConfig{Host: defaultHTTPHost, Port: defaultHTTPPort},
		Persistence: PersistenceConfig{
			Dir:           defaultDataDir,
			BucketMinutes: defaultBucketMinutes,
		},
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets deployments keep credentials out of the config file.
func (c *Config) applyEnv() {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Redis.Password = pw
	}
}

func (c *Config) validate() error {
	if len(c.Exchanges) == 0 {
		return errors.New("at least one exchange is required")
	}
	ports := make(map[int]string, len(c.Exchanges))
	for i, ex := range c.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchange %d: name is required", i)
		}
		if ex.WSURL == "" {
			return fmt.Errorf("exchange %s: ws_url is required", ex.Name)
		}
		if ex.TransportPort <= 0 {
			return fmt.Errorf("exchange %s: transport_port is required", ex.Name)
		}
		if other, dup := ports[ex.TransportPort]; dup {
			return fmt.Errorf("exchange %s: transport_port %d already used by %s", ex.Name, ex.TransportPort, other)
		}
		ports[ex.TransportPort] = ex.Name
		if len(ex.Symbols) == 0 {
			return fmt.Errorf("exchange %s: at least one symbol is required", ex.Name)
		}
	}
	if c.Persistence.Enabled && c.Persistence.BucketMinutes <= 0 {
		return errors.New("persistence.bucket_minutes must be positive")
	}
	return nil
}
