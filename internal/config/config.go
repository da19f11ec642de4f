// Package config defines all configuration for the connectivity runtime.
// Config is loaded from a YAML file (the CLI defaults to config.yaml) with
// sensitive fields overridable via CRYPTOCONNECT_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimitRule is one (window, max weight) sliding-window budget.
type RateLimitRule struct {
	WindowMillis uint64 `mapstructure:"window_millis"`
	MaxWeight    uint64 `mapstructure:"max_weight"`
}

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Markets []string      `mapstructure:"markets"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	DBPath  string        `mapstructure:"db_path"`
	Logging LoggingConfig `mapstructure:"logging"`

	// Per-market configuration, keyed by the market identifier listed in
	// Markets (e.g. "binance_spot"). Populated from the "markets_config"
	// YAML map by Load.
	MarketConfigs map[string]*MarketConfig `mapstructure:"-"`
}

// ProxyConfig holds the optional proxy URL. It is loaded but not applied:
// the REST client and WebSocket sessions connect directly.
type ProxyConfig struct {
	URL string `mapstructure:"url"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MarketConfig configures one exchange connection end to end: REST/stream
// endpoints, credentials, subscriptions, rate limits, channel buffer sizes,
// and timeouts.
type MarketConfig struct {
	CacheCapacity            int           `mapstructure:"cache_capacity"`
	MarketRefreshInterval    time.Duration `mapstructure:"market_refresh_interval_secs"`
	TradeRefreshInterval     time.Duration `mapstructure:"trade_refresh_interval_secs"`
	APIBaseURL               string        `mapstructure:"api_base_url"`
	StreamBaseURL            string        `mapstructure:"stream_base_url"`
	StreamAPIBaseURL         string        `mapstructure:"stream_api_base_url"`
	APIKey                   string        `mapstructure:"api_key"`
	SecretKey                string        `mapstructure:"secret_key"`
	SubscribedSymbols        []string      `mapstructure:"subscribed_symbols"`
	SubscribedKlineIntervals []string      `mapstructure:"subscribed_kline_intervals"`

	APIRateLimits       []RateLimitRule `mapstructure:"api_rate_limits"`
	StreamRateLimits    []RateLimitRule `mapstructure:"stream_rate_limits"`
	StreamAPIRateLimits []RateLimitRule `mapstructure:"stream_api_rate_limits"`

	KlineEventChannelCapacity     int `mapstructure:"kline_event_channel_capacity"`
	TradeEventChannelCapacity     int `mapstructure:"trade_event_channel_capacity"`
	DepthEventChannelCapacity     int `mapstructure:"depth_event_channel_capacity"`
	TickerEventChannelCapacity    int `mapstructure:"ticker_event_channel_capacity"`
	DepthCacheEventChannelCap     int `mapstructure:"depth_cache_event_channel_capacity"`
	OrderEventChannelCapacity     int `mapstructure:"order_event_channel_capacity"`
	UserTradeEventChannelCapacity int `mapstructure:"user_trade_event_channel_capacity"`
	AccountEventChannelCapacity   int `mapstructure:"account_event_channel_capacity"`

	APITimeout                     time.Duration `mapstructure:"api_timeout_milli_secs"`
	StreamReconnectInterval        time.Duration `mapstructure:"stream_reconnect_interval_milli_secs"`
	StreamAPIReconnectInterval     time.Duration `mapstructure:"stream_api_reconnect_interval_milli_secs"`
}

var marketConfigDefaults = map[string]any{
	"cache_capacity":                      1000,
	"market_refresh_interval_secs":        300,
	"trade_refresh_interval_secs":         300,
	"kline_event_channel_capacity":        5000,
	"trade_event_channel_capacity":        5000,
	"depth_event_channel_capacity":        5000,
	"ticker_event_channel_capacity":       5000,
	"depth_cache_event_channel_capacity":  5000,
	"order_event_channel_capacity":        5000,
	"user_trade_event_channel_capacity":   5000,
	"account_event_channel_capacity":      5000,
	"api_timeout_milli_secs":              30000,
	"stream_reconnect_interval_milli_secs": 5000,
	"stream_api_reconnect_interval_milli_secs": 5000,
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: CRYPTOCONNECT_API_KEY, CRYPTOCONNECT_SECRET_KEY
// (applied to every configured market — use per-market YAML keys for
// per-market credentials beyond a single-market deployment).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CRYPTOCONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.MarketConfigs = make(map[string]*MarketConfig, len(cfg.Markets))
	for _, market := range cfg.Markets {
		sub := v.Sub("markets_config." + market)
		if sub == nil {
			return nil, fmt.Errorf("markets_config.%s is required (listed in markets)", market)
		}
		for key, def := range marketConfigDefaults {
			sub.SetDefault(key, def)
		}

		var mc MarketConfig
		if err := sub.Unmarshal(&mc); err != nil {
			return nil, fmt.Errorf("unmarshal markets_config.%s: %w", market, err)
		}
		mc.MarketRefreshInterval *= time.Second
		mc.TradeRefreshInterval *= time.Second
		mc.APITimeout *= time.Millisecond
		mc.StreamReconnectInterval *= time.Millisecond
		mc.StreamAPIReconnectInterval *= time.Millisecond

		cfg.MarketConfigs[market] = &mc
	}

	if key := os.Getenv("CRYPTOCONNECT_API_KEY"); key != "" {
		for _, mc := range cfg.MarketConfigs {
			mc.APIKey = key
		}
	}
	if secret := os.Getenv("CRYPTOCONNECT_SECRET_KEY"); secret != "" {
		for _, mc := range cfg.MarketConfigs {
			mc.SecretKey = secret
		}
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Markets) == 0 {
		return fmt.Errorf("markets is required and must list at least one market")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	for _, market := range c.Markets {
		mc, ok := c.MarketConfigs[market]
		if !ok {
			return fmt.Errorf("markets_config.%s is required (listed in markets)", market)
		}
		if mc.APIBaseURL == "" {
			return fmt.Errorf("markets_config.%s.api_base_url is required", market)
		}
		if mc.StreamBaseURL == "" {
			return fmt.Errorf("markets_config.%s.stream_base_url is required", market)
		}
		if len(mc.SubscribedSymbols) == 0 {
			return fmt.Errorf("markets_config.%s.subscribed_symbols must not be empty", market)
		}
	}
	return nil
}
