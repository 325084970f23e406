package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrTransportClosed  = errors.New("transport closed")
	ErrCircuitOpen      = errors.New("circuit breaker open, connection refused")
	ErrRetriesExhausted = errors.New("connection retries exhausted")
	ErrJoinTimeout      = errors.New("stream goroutine did not terminate before join timeout")
	ErrInvalidFeed      = errors.New("invalid feed")
)

// Feed selects the market-data feed to stream from.
type Feed string

const (
	FeedIEX        Feed = "iex"
	FeedSIP        Feed = "sip"
	FeedDelayedSIP Feed = "delayed_sip"
)

// ParseFeed validates a feed identifier.
func ParseFeed(s string) (Feed, error) {
	f := Feed(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeed, s)
	}
	return f, nil
}

// Valid reports whether the feed is one of the enumerated identifiers.
func (f Feed) Valid() bool {
	switch f {
	case FeedIEX, FeedSIP, FeedDelayedSIP:
		return true
	}
	return false
}

// DefaultBaseURL is the provider's data-stream endpoint; the feed is appended
// as the final path segment.
const DefaultBaseURL = "wss://stream.data.alpaca.markets/v2"

// URL returns the full WebSocket URL for the feed. An empty base uses
// DefaultBaseURL (overridable for tests).
func (f Feed) URL(base string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/" + string(f)
}

// State is the connection lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateConnected
	StateRetrying
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateRetrying:
		return "retrying"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// SymbolProvider returns the symbol set to subscribe after each (re)connect.
type SymbolProvider func() []string

// QuoteHandler receives decoded quote events.
type QuoteHandler func(model.Quote)

// TradeHandler receives decoded trade events.
type TradeHandler func(model.Trade)

// Breaker gates connection attempts. Implemented by breaker.CircuitBreaker;
// no breaker internals are accessed beyond this contract.
type Breaker interface {
	CanAttemptConnection() bool
	RecordSuccess()
	RecordFailure()
}

// TimestampedMessage wraps a raw inbound frame with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Transport is a single streaming connection to the provider. The production
// implementation is the gorilla/websocket client; tests inject fakes.
// A Transport is single-use: after Close or a surfaced error it is discarded
// and the Manager builds a fresh one.
type Transport interface {
	// Connect dials, authenticates, and starts the read loop.
	Connect(ctx context.Context) error

	// Subscribe requests quote and trade streams for the given symbols.
	Subscribe(symbols []string) error

	// Unsubscribe stops quote and trade streams for the given symbols.
	Unsubscribe(symbols []string) error

	// Messages returns the channel of raw inbound frames.
	Messages() <-chan TimestampedMessage

	// Errors returns the channel of connection errors.
	Errors() <-chan error

	// Close tears the connection down. Safe to call more than once.
	Close() error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// TransportFactory builds a Transport for one connection attempt.
type TransportFactory func(cfg TransportConfig, logger *slog.Logger) Transport

// TransportConfig configures a single WebSocket connection.
type TransportConfig struct {
	URL          string        // Full stream URL including feed
	KeyID        string        // API key ID for the auth handshake
	Secret       string        // API secret for the auth handshake
	PingTimeout  time.Duration // Max time without ping before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// Config holds stream Manager configuration. Centralizing the timeouts and the
// retry schedule here keeps them out of the control flow and independently
// testable.
type Config struct {
	Feed    Feed
	BaseURL string // Override of DefaultBaseURL, used by tests

	ConnectTimeout time.Duration // Start() wait for initial connection confirmation
	JoinTimeout    time.Duration // Stop() wait for the background goroutine
	MaxRetries     int           // Total failed attempts before giving up
	RetryBaseDelay time.Duration // First backoff delay
	RetryMaxDelay  time.Duration // Backoff ceiling
	RestartDelay   time.Duration // Fixed pause between stop and start in Restart

	PingTimeout  time.Duration // Transport staleness threshold
	WriteTimeout time.Duration // Transport write deadline
	BufferSize   int           // Transport message buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Feed:           FeedIEX,
		ConnectTimeout: 15 * time.Second,
		JoinTimeout:    10 * time.Second,
		MaxRetries:     10,
		RetryBaseDelay: 1 * time.Second,
		RetryMaxDelay:  30 * time.Second,
		RestartDelay:   500 * time.Millisecond,
		PingTimeout:    60 * time.Second,
		WriteTimeout:   5 * time.Second,
		BufferSize:     10000,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Feed == "" {
		c.Feed = d.Feed
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = d.RetryMaxDelay
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = d.RestartDelay
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
}
