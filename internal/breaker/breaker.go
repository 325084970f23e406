// Package breaker implements the connection circuit breaker.
//
// The breaker counts consecutive connection failures. Once the failure
// threshold is reached it denies further attempts until a cooldown window has
// elapsed, after which a single half-open probe is allowed. A recorded success
// closes the breaker and resets the count.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

// Config holds tunable parameters for the CircuitBreaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before permitting a
	// half-open probe attempt. Default: 60s.
	Cooldown time.Duration
}

// DefaultConfig returns production-tuned defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// CircuitBreaker tracks consecutive connection failures and gates further
// attempts. Safe for concurrent use.
type CircuitBreaker struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	failures    int
	lastFailure time.Time

	nowFunc func() time.Time // injectable clock for testing
}

// New creates a CircuitBreaker with the given configuration.
func New(cfg Config, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &CircuitBreaker{
		cfg:     cfg,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// CanAttemptConnection reports whether a connection attempt is permitted.
// Returns true while the breaker is closed, and once per cooldown window
// while it is open (the half-open probe).
func (cb *CircuitBreaker) CanAttemptConnection() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures < cb.cfg.FailureThreshold {
		return true
	}

	if cb.nowFunc().Sub(cb.lastFailure) >= cb.cfg.Cooldown {
		return true
	}

	return false
}

// RecordSuccess closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures >= cb.cfg.FailureThreshold {
		cb.logger.Info("circuit breaker closed after recovery",
			"failures", cb.failures,
		)
	}
	cb.failures = 0
}

// RecordFailure increments the consecutive-failure count. Crossing the
// threshold opens the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.nowFunc()

	if cb.failures == cb.cfg.FailureThreshold {
		cb.logger.Warn("circuit breaker opened",
			"failures", cb.failures,
			"cooldown", cb.cfg.Cooldown,
		)
	}
}

// Failures returns the current consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}
