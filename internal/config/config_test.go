package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
markets:
  - binance_spot
proxy:
  url: ""
db_path: ./data/state.db
logging:
  level: info
  format: json
markets_config:
  binance_spot:
    api_base_url: https://api.binance.com
    stream_base_url: wss://stream.binance.com:9443
    stream_api_base_url: wss://ws-api.binance.com:443
    api_key: test-key
    secret_key: test-secret
    subscribed_symbols:
      - BTCUSDT
    subscribed_kline_intervals:
      - 1m
    api_rate_limits:
      - window_millis: 60000
        max_weight: 1200
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadPopulatesMarketConfigWithDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	mc := cfg.MarketConfigs["binance_spot"]
	if mc == nil {
		t.Fatalf("expected binance_spot market config")
	}
	if mc.CacheCapacity != 1000 {
		t.Fatalf("expected default cache_capacity 1000, got %d", mc.CacheCapacity)
	}
	if mc.APITimeout.Milliseconds() != 30000 {
		t.Fatalf("expected default api timeout 30000ms, got %s", mc.APITimeout)
	}
	if len(mc.APIRateLimits) != 1 || mc.APIRateLimits[0].MaxWeight != 1200 {
		t.Fatalf("unexpected rate limits: %+v", mc.APIRateLimits)
	}
}

func TestLoadRejectsMissingMarketConfig(t *testing.T) {
	path := writeTempConfig(t, "markets:\n  - binance_spot\ndb_path: ./x\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing markets_config.binance_spot")
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	t.Setenv("CRYPTOCONNECT_API_KEY", "from-env")
	t.Setenv("CRYPTOCONNECT_SECRET_KEY", "from-env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mc := cfg.MarketConfigs["binance_spot"]
	if mc.APIKey != "from-env" || mc.SecretKey != "from-env-secret" {
		t.Fatalf("expected env override, got %+v", mc)
	}
}
