package config

import (
	"errors"
	"fmt"
)

var validFeeds = map[string]bool{
	"iex":         true,
	"sip":         true,
	"delayed_sip": true,
}

// Validate checks that all required fields are set and values are valid.
func (c *StreamerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !validFeeds[c.Stream.Feed] {
		return fmt.Errorf("stream.feed must be one of iex, sip, delayed_sip, got %q", c.Stream.Feed)
	}
	if c.Stream.MaxRetries < 1 {
		return errors.New("stream.max_retries must be >= 1")
	}
	if c.Stream.RetryBaseDelay <= 0 {
		return errors.New("stream.retry_base_delay must be positive")
	}
	if c.Stream.RetryMaxDelay < c.Stream.RetryBaseDelay {
		return fmt.Errorf("stream.retry_max_delay (%v) cannot be below retry_base_delay (%v)",
			c.Stream.RetryMaxDelay, c.Stream.RetryBaseDelay)
	}

	if c.Breaker.FailureThreshold < 1 {
		return errors.New("breaker.failure_threshold must be >= 1")
	}
	if c.Breaker.Cooldown <= 0 {
		return errors.New("breaker.cooldown must be positive")
	}

	if c.Subscriptions.MaxSymbols < 1 {
		return errors.New("subscriptions.max_symbols must be >= 1")
	}
	if len(c.Subscriptions.Watchlist) > c.Subscriptions.MaxSymbols {
		return fmt.Errorf("subscriptions.watchlist has %d symbols, exceeds max_symbols (%d)",
			len(c.Subscriptions.Watchlist), c.Subscriptions.MaxSymbols)
	}

	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
