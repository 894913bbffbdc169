package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
sources:
  - name: fudkii
    topic: signals.fudkii
kafka:
  brokers:
    - localhost:9092
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Engine.MarketTimeZone != "Asia/Kolkata" {
		t.Fatalf("unexpected tz %q", c.Engine.MarketTimeZone)
	}
	if c.Engine.TTLMinutes != 30 || c.Engine.MaxPerDay != 5 {
		t.Fatalf("unexpected engine defaults %+v", c.Engine)
	}
	if c.Engine.PersistInterval != 120*time.Second {
		t.Fatalf("unexpected persist interval %v", c.Engine.PersistInterval)
	}
	if c.Redis.KeyPrefix != "signaldeck" {
		t.Fatalf("unexpected redis prefix %q", c.Redis.KeyPrefix)
	}
}

func TestLoadRejectsMissingSources(t *testing.T) {
	body := `
kafka:
  brokers:
    - localhost:9092
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected validation error for empty sources")
	}
}

func TestLoadRejectsDuplicateSources(t *testing.T) {
	body := `
sources:
  - name: fudkii
    topic: a
  - name: fudkii
    topic: b
kafka:
  brokers:
    - localhost:9092
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected duplicate source error")
	}
}

func TestLoadRejectsBadTimeZone(t *testing.T) {
	body := minimalYAML + `
engine:
  market_time_zone: Not/AZone
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatalf("expected time zone error")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis-prod:6379")
	t.Setenv("HTTP_PORT", "9090")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Redis.Addr != "redis-prod:6379" {
		t.Fatalf("unexpected redis addr %q", c.Redis.Addr)
	}
	if c.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", c.Server.Port)
	}
}
