// Package config defines all configuration for the DLOB server.
// Everything is environment-driven (the server is deployed behind a process
// manager, not a config file): viper binds each field to an env var and
// supplies defaults suitable for devnet.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration.
type Config struct {
	// Env is the chain environment tag: devnet or mainnet-beta.
	Env string `mapstructure:"env"`
	// Endpoint is the HTTP RPC URL. Required.
	Endpoint string `mapstructure:"endpoint"`
	// WSEndpoint is the websocket RPC URL. Required when UseWebsocket.
	WSEndpoint string `mapstructure:"ws_endpoint"`
	// Port the HTTP surface listens on.
	Port int `mapstructure:"port"`

	// UseWebsocket selects push account subscription over polling.
	UseWebsocket bool `mapstructure:"use_websocket"`
	// UseOrderSubscriber selects the compact order stream over the full
	// user map. Both satisfy the same provider contract.
	UseOrderSubscriber bool `mapstructure:"use_order_subscriber"`

	// RateLimitCallsPerSecond is the per-IP request budget.
	RateLimitCallsPerSecond int `mapstructure:"rate_limit_calls_per_second"`
	// AllowLoadTest lets the designated load-test user agent bypass the
	// rate limiter.
	AllowLoadTest bool `mapstructure:"allow_load_test"`

	// Commit is the build identifier logged at startup.
	Commit string `mapstructure:"commit"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// TickInterval is how often the book builder rebuilds snapshots.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// PollInterval is how often the polling account stream resyncs.
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// OraclePollInterval is how often oracle and vAMM accounts refresh.
	OraclePollInterval time.Duration `mapstructure:"oracle_poll_interval"`

	// PhoenixWSEndpoint and SerumWSEndpoint feed external spot-venue books.
	// Empty disables the venue; its liquidity is left out of L2 merges.
	PhoenixWSEndpoint string `mapstructure:"phoenix_ws_endpoint"`
	SerumWSEndpoint   string `mapstructure:"serum_ws_endpoint"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("env", "devnet")
	v.SetDefault("endpoint", "")
	v.SetDefault("ws_endpoint", "")
	v.SetDefault("port", 6969)
	v.SetDefault("use_websocket", false)
	v.SetDefault("use_order_subscriber", false)
	v.SetDefault("rate_limit_calls_per_second", 1)
	v.SetDefault("allow_load_test", false)
	v.SetDefault("commit", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("tick_interval", time.Second)
	v.SetDefault("poll_interval", 10*time.Second)
	v.SetDefault("oracle_poll_interval", 5*time.Second)
	v.SetDefault("phoenix_ws_endpoint", "")
	v.SetDefault("serum_ws_endpoint", "")

	// viper only sees env vars it has been told about when no config file
	// is loaded, so bind each key explicitly.
	for _, key := range []string{
		"env", "endpoint", "ws_endpoint", "port",
		"use_websocket", "use_order_subscriber",
		"rate_limit_calls_per_second", "allow_load_test",
		"commit", "log_level", "log_format",
		"tick_interval", "poll_interval", "oracle_poll_interval",
		"phoenix_ws_endpoint", "serum_ws_endpoint",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks required fields. A failure here is fatal: the process
// exits before serving.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("ENDPOINT is required")
	}
	if c.UseWebsocket && c.WSEndpoint == "" {
		return fmt.Errorf("WS_ENDPOINT is required when USE_WEBSOCKET is set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in (0, 65535], got %d", c.Port)
	}
	if c.RateLimitCallsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_CALLS_PER_SECOND must be > 0, got %d", c.RateLimitCallsPerSecond)
	}
	switch c.Env {
	case "devnet", "mainnet-beta":
	default:
		return fmt.Errorf("ENV must be devnet or mainnet-beta, got %q", c.Env)
	}
	return nil
}
