package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-streamer
  az: us-east-1a
stream:
  feed: sip
  max_retries: 7
subscriptions:
  max_symbols: 25
  watchlist: [AAPL, MSFT]
database:
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-streamer" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-streamer")
	}
	if cfg.Stream.Feed != "sip" {
		t.Errorf("Stream.Feed = %q, want %q", cfg.Stream.Feed, "sip")
	}
	if cfg.Stream.MaxRetries != 7 {
		t.Errorf("Stream.MaxRetries = %d, want 7", cfg.Stream.MaxRetries)
	}
	if cfg.Subscriptions.MaxSymbols != 25 {
		t.Errorf("Subscriptions.MaxSymbols = %d, want 25", cfg.Subscriptions.MaxSymbols)
	}
	if len(cfg.Subscriptions.Watchlist) != 2 || cfg.Subscriptions.Watchlist[0] != "AAPL" {
		t.Errorf("Subscriptions.Watchlist = %v, want [AAPL MSFT]", cfg.Subscriptions.Watchlist)
	}
	if cfg.Database.Timescale.Host != "localhost" {
		t.Errorf("Database.Timescale.Host = %q, want %q", cfg.Database.Timescale.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-streamer
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Timescale.Password != "secret123" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-streamer
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Stream.Feed != DefaultFeed {
		t.Errorf("Stream.Feed = %q, want default %q", cfg.Stream.Feed, DefaultFeed)
	}
	if cfg.Stream.BaseURL != DefaultStreamBaseURL {
		t.Errorf("Stream.BaseURL = %q, want default %q", cfg.Stream.BaseURL, DefaultStreamBaseURL)
	}
	if cfg.Stream.RetryMaxDelay != DefaultRetryMaxDelay {
		t.Errorf("Stream.RetryMaxDelay = %v, want default %v", cfg.Stream.RetryMaxDelay, DefaultRetryMaxDelay)
	}
	if cfg.Breaker.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("Breaker.FailureThreshold = %d, want default %d", cfg.Breaker.FailureThreshold, DefaultFailureThreshold)
	}
	if cfg.Subscriptions.MaxSymbols != DefaultMaxSymbols {
		t.Errorf("Subscriptions.MaxSymbols = %d, want default %d", cfg.Subscriptions.MaxSymbols, DefaultMaxSymbols)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Database.Timescale.MaxConns != DefaultMaxConns {
		t.Errorf("Database.Timescale.MaxConns = %d, want default %d", cfg.Database.Timescale.MaxConns, DefaultMaxConns)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() StreamerConfig {
		return StreamerConfig{
			Instance: InstanceConfig{ID: "test"},
			Stream: StreamConfig{
				Feed:           "iex",
				MaxRetries:     10,
				RetryBaseDelay: time.Second,
				RetryMaxDelay:  30 * time.Second,
			},
			Breaker: BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute},
			Subscriptions: SubscriptionsConfig{
				MaxSymbols: 30,
				Watchlist:  []string{"AAPL", "MSFT"},
			},
			Database: DatabaseConfig{
				Timescale: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2},
			},
			Writers: WritersConfig{BatchSize: 1000, FlushInterval: time.Second, BufferSize: 10000},
			Health:  HealthConfig{Port: 8090},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*StreamerConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *StreamerConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *StreamerConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "bad feed",
			mutate:  func(c *StreamerConfig) { c.Stream.Feed = "opra" },
			wantErr: `stream.feed must be one of iex, sip, delayed_sip, got "opra"`,
		},
		{
			name:    "max delay below base delay",
			mutate:  func(c *StreamerConfig) { c.Stream.RetryMaxDelay = 500 * time.Millisecond },
			wantErr: "stream.retry_max_delay (500ms) cannot be below retry_base_delay (1s)",
		},
		{
			name:    "zero max symbols",
			mutate:  func(c *StreamerConfig) { c.Subscriptions.MaxSymbols = 0 },
			wantErr: "subscriptions.max_symbols must be >= 1",
		},
		{
			name: "watchlist exceeds capacity",
			mutate: func(c *StreamerConfig) {
				c.Subscriptions.MaxSymbols = 1
			},
			wantErr: "subscriptions.watchlist has 2 symbols, exceeds max_symbols (1)",
		},
		{
			name:    "missing db host",
			mutate:  func(c *StreamerConfig) { c.Database.Timescale.Host = "" },
			wantErr: "database.timescale.host is required",
		},
		{
			name:    "missing db password",
			mutate:  func(c *StreamerConfig) { c.Database.Timescale.Password = "" },
			wantErr: "database.timescale.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *StreamerConfig) {
				c.Database.Timescale.MinConns = 20
			},
			wantErr: "database.timescale.min_conns (20) cannot exceed max_conns (10)",
		},
		{
			name:    "zero breaker threshold",
			mutate:  func(c *StreamerConfig) { c.Breaker.FailureThreshold = 0 },
			wantErr: "breaker.failure_threshold must be >= 1",
		},
		{
			name:    "bad health port",
			mutate:  func(c *StreamerConfig) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
