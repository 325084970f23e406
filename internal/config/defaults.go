package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api.alpaca.markets"
	DefaultAPITimeout        = 30 * time.Second
	DefaultAPIMaxRetries     = 3
	DefaultFeed              = "iex"
	DefaultStreamBaseURL     = "wss://stream.data.alpaca.markets/v2"
	DefaultConnectTimeout    = 30 * time.Second
	DefaultJoinTimeout       = 5 * time.Second
	DefaultStreamMaxRetries  = 10
	DefaultRetryBaseDelay    = 1 * time.Second
	DefaultRetryMaxDelay     = 30 * time.Second
	DefaultRestartDelay      = 1 * time.Second
	DefaultPingTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultStreamBufferSize  = 4096
	DefaultFailureThreshold  = 5
	DefaultBreakerCooldown   = 60 * time.Second
	DefaultMaxSymbols        = 30
	DefaultReconcileInterval = 5 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 1000
	DefaultFlushInterval     = 1 * time.Second
	DefaultWriterBufferSize  = 10000
	DefaultHealthPort        = 8090
	DefaultHealthPath        = "/healthz"
)

func (c *StreamerConfig) applyDefaults() {
	// Broker defaults
	if c.Broker.RestURL == "" {
		c.Broker.RestURL = DefaultRestURL
	}
	if c.Broker.Timeout == 0 {
		c.Broker.Timeout = DefaultAPITimeout
	}
	if c.Broker.MaxRetries == 0 {
		c.Broker.MaxRetries = DefaultAPIMaxRetries
	}

	// Stream defaults
	if c.Stream.Feed == "" {
		c.Stream.Feed = DefaultFeed
	}
	if c.Stream.BaseURL == "" {
		c.Stream.BaseURL = DefaultStreamBaseURL
	}
	if c.Stream.ConnectTimeout == 0 {
		c.Stream.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Stream.JoinTimeout == 0 {
		c.Stream.JoinTimeout = DefaultJoinTimeout
	}
	if c.Stream.MaxRetries == 0 {
		c.Stream.MaxRetries = DefaultStreamMaxRetries
	}
	if c.Stream.RetryBaseDelay == 0 {
		c.Stream.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.Stream.RetryMaxDelay == 0 {
		c.Stream.RetryMaxDelay = DefaultRetryMaxDelay
	}
	if c.Stream.RestartDelay == 0 {
		c.Stream.RestartDelay = DefaultRestartDelay
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Breaker defaults
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = DefaultFailureThreshold
	}
	if c.Breaker.Cooldown == 0 {
		c.Breaker.Cooldown = DefaultBreakerCooldown
	}

	// Subscription defaults
	if c.Subscriptions.MaxSymbols == 0 {
		c.Subscriptions.MaxSymbols = DefaultMaxSymbols
	}
	if c.Subscriptions.ReconcileInterval == 0 {
		c.Subscriptions.ReconcileInterval = DefaultReconcileInterval
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultWriterBufferSize
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
