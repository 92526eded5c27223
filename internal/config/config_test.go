package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Env:                     "devnet",
		Endpoint:                "https://rpc.example.org",
		Port:                    6969,
		RateLimitCallsPerSecond: 5,
		TickInterval:            time.Second,
		PollInterval:            10 * time.Second,
		OraclePollInterval:      5 * time.Second,
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "devnet" {
		t.Errorf("env = %q, want devnet", cfg.Env)
	}
	if cfg.Port != 6969 {
		t.Errorf("port = %d, want 6969", cfg.Port)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("tick interval = %s, want 1s", cfg.TickInterval)
	}
	if cfg.RateLimitCallsPerSecond != 1 {
		t.Errorf("rate limit = %d, want 1", cfg.RateLimitCallsPerSecond)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENDPOINT", "https://rpc.example.org")
	t.Setenv("PORT", "8080")
	t.Setenv("USE_WEBSOCKET", "true")
	t.Setenv("WS_ENDPOINT", "wss://rpc.example.org")
	t.Setenv("TICK_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "https://rpc.example.org" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if !cfg.UseWebsocket {
		t.Error("use_websocket should be true")
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Errorf("tick interval = %s, want 250ms", cfg.TickInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mut     func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing endpoint", func(c *Config) { c.Endpoint = "" }, true},
		{"websocket without ws endpoint", func(c *Config) { c.UseWebsocket = true }, true},
		{"websocket with ws endpoint", func(c *Config) {
			c.UseWebsocket = true
			c.WSEndpoint = "wss://rpc.example.org"
		}, false},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"rate limit zero", func(c *Config) { c.RateLimitCallsPerSecond = 0 }, true},
		{"bad env", func(c *Config) { c.Env = "testnet" }, true},
		{"mainnet", func(c *Config) { c.Env = "mainnet-beta" }, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mut(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
