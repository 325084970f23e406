package config

import "time"

// StreamerConfig is the root configuration for a streamer instance.
type StreamerConfig struct {
	Instance      InstanceConfig      `yaml:"instance"`
	Broker        BrokerConfig        `yaml:"broker"`
	Stream        StreamConfig        `yaml:"stream"`
	Breaker       BreakerConfig       `yaml:"breaker"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	Database      DatabaseConfig      `yaml:"database"`
	Writers       WritersConfig       `yaml:"writers"`
	Health        HealthConfig        `yaml:"health"`
}

// InstanceConfig identifies this streamer.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// BrokerConfig holds broker REST API settings. Credentials are taken
// from the environment, never from the config file.
type BrokerConfig struct {
	RestURL    string        `yaml:"rest_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds market data WebSocket settings.
type StreamConfig struct {
	Feed           string        `yaml:"feed"`
	BaseURL        string        `yaml:"base_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	JoinTimeout    time.Duration `yaml:"join_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
	RestartDelay   time.Duration `yaml:"restart_delay"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	BufferSize     int           `yaml:"buffer_size"`
}

// BreakerConfig holds connection circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// SubscriptionsConfig holds symbol admission settings.
type SubscriptionsConfig struct {
	MaxSymbols        int           `yaml:"max_symbols"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	Watchlist         []string      `yaml:"watchlist"`
}

// DatabaseConfig holds the TimescaleDB connection for time-series data.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
