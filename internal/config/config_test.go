package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
env: production
http:
  host: 127.0.0.1
  port: 9090
persistence:
  enabled: true
  bucket_minutes: 10
  drain_on_stop: true
exchanges:
  - name: OKX
    ws_url: wss://ws.okx.com:8443/ws/v5/public
    transport_port: 5556
    symbols: [BTC-USDT, ETH-USDT]
  - name: BYBIT
    ws_url: wss://stream.bybit.com/v5/public/spot
    transport_port: 5557
    symbols: [BTCUSDT]
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "production" || cfg.HTTP.Addr() != "127.0.0.1:9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.Exchanges) != 2 || cfg.Exchanges[0].Name != "OKX" {
		t.Fatalf("exchanges = %+v", cfg.Exchanges)
	}
	if cfg.Persistence.Interval() != 10*time.Minute {
		t.Fatalf("interval = %v", cfg.Persistence.Interval())
	}
	if cfg.Persistence.Dir != "data/order_book" {
		t.Fatalf("dir default not applied: %q", cfg.Persistence.Dir)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
exchanges:
  - name: OKX
    ws_url: wss://ws.okx.com:8443/ws/v5/public
    transport_port: 5556
    symbols: [BTC-USDT]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Env != "development" || cfg.HTTP.Addr() != "0.0.0.0:8080" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Exchanges[0].PingInterval() != 20*time.Second {
		t.Fatalf("ping interval = %v", cfg.Exchanges[0].PingInterval())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://collector@db/catalog")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "secret")

	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://collector@db/catalog" {
		t.Fatalf("dsn = %q", cfg.Postgres.DSN)
	}
	if cfg.Redis.Addr != "redis:6379" || cfg.Redis.Password != "secret" {
		t.Fatalf("redis = %+v", cfg.Redis)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"no exchanges", `env: dev`},
		{"missing ws_url", `
exchanges:
  - name: OKX
    transport_port: 5556
    symbols: [BTC-USDT]
`},
		{"missing port", `
exchanges:
  - name: OKX
    ws_url: wss://ws.okx.com:8443/ws/v5/public
    symbols: [BTC-USDT]
`},
		{"duplicate port", `
exchanges:
  - name: OKX
    ws_url: wss://a
    transport_port: 5556
    symbols: [BTC-USDT]
  - name: BYBIT
    ws_url: wss://b
    transport_port: 5556
    symbols: [BTCUSDT]
`},
		{"no symbols", `
exchanges:
  - name: OKX
    ws_url: wss://ws.okx.com:8443/ws/v5/public
    transport_port: 5556
    symbols: []
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
