package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/auth"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/breaker"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
)

// Manager owns the lifecycle of one logical streaming connection: a single
// background goroutine dials, authenticates, subscribes the provider's symbol
// set, and pumps inbound events to the registered handlers. Failures are
// retried with bounded exponential backoff, gated by the circuit breaker.
//
// Start, Stop, Restart, and IsConnected may be called from any goroutine.
type Manager struct {
	cfg       Config
	creds     auth.Credentials
	logger    *slog.Logger
	breaker   Breaker
	sessionID string

	newTransport TransportFactory
	sleepFn      func(ctx context.Context, d time.Duration) bool

	onQuote QuoteHandler
	onTrade TradeHandler

	mu              sync.Mutex
	state           State
	shouldReconnect bool
	connected       bool
	transport       Transport // live transport; owned by the run goroutine
	cancel          context.CancelFunc
	done            chan struct{} // closed when the run goroutine exits
	connectedSig    chan struct{} // closed once on first connect of a cycle
	signalled       bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithBreaker sets the circuit breaker gating connection attempts.
func WithBreaker(b Breaker) Option {
	return func(m *Manager) { m.breaker = b }
}

// WithTransportFactory overrides how transports are built (tests inject
// fakes here).
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) { m.newTransport = f }
}

// WithQuoteHandler registers the quote callback.
func WithQuoteHandler(h QuoteHandler) Option {
	return func(m *Manager) { m.onQuote = h }
}

// WithTradeHandler registers the trade callback.
func WithTradeHandler(h TradeHandler) Option {
	return func(m *Manager) { m.onTrade = h }
}

// WithSessionID sets the correlation identifier attached to every log line
// of this connection session. Defaults to a random UUID.
func WithSessionID(id string) Option {
	return func(m *Manager) { m.sessionID = id }
}

// NewManager creates a stream Manager. The feed must be one of the enumerated
// identifiers and credentials must be populated; both are construction-time
// errors, never deferred to Start.
func NewManager(creds auth.Credentials, cfg Config, opts ...Option) (*Manager, error) {
	if creds.IsZero() {
		return nil, auth.ErrMissingCredentials
	}
	cfg.applyDefaults()
	if !cfg.Feed.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeed, cfg.Feed)
	}

	m := &Manager{
		cfg:          cfg,
		creds:        creds,
		state:        StateIdle,
		newTransport: NewClient,
		sleepFn:      sleepCtx,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.sessionID == "" {
		m.sessionID = uuid.NewString()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("session", m.sessionID, "feed", cfg.Feed)
	if m.breaker == nil {
		m.breaker = breaker.New(breaker.DefaultConfig(), m.logger)
	}

	return m, nil
}

// sleepCtx sleeps for d unless ctx is cancelled first. Returns false when
// interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// backoffDelay computes min(base * 2^(attempt-1), max).
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Start launches the background connection goroutine and blocks until the
// first connection is confirmed, the goroutine gives up, or ConnectTimeout
// elapses. Idempotent: if the stream is already running it logs and returns
// true without spawning a second goroutine.
func (m *Manager) Start(provider SymbolProvider) bool {
	if provider == nil {
		m.logger.Error("start refused: nil symbol provider")
		return false
	}

	m.mu.Lock()
	if m.running() {
		m.mu.Unlock()
		m.logger.Info("stream already running, ignoring start")
		return true
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sig := make(chan struct{})

	m.cancel = cancel
	m.done = done
	m.connectedSig = sig
	m.signalled = false
	m.shouldReconnect = true
	m.state = StateStarting
	m.mu.Unlock()

	go m.run(ctx, provider, done, sig)

	select {
	case <-sig:
		return true
	case <-done:
		return false
	case <-time.After(m.cfg.ConnectTimeout):
		m.logger.Warn("initial connection not confirmed before timeout",
			"timeout", m.cfg.ConnectTimeout,
		)
		return false
	}
}

// Stop shuts the stream down: clears operator intent, interrupts any backoff
// sleep, closes the transport, and joins the background goroutine with a
// bounded timeout. Idempotent and safe to call concurrently with Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.shouldReconnect = false
	if !m.running() {
		m.state = StateStopped
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()

	select {
	case <-done:
		m.logger.Info("stream stopped")
	case <-time.After(m.cfg.JoinTimeout):
		// The goroutine is leaked and must be reported. Disown its cycle
		// so a later Start spawns a fresh one instead of seeing the
		// zombie's unclosed done channel as "already running".
		m.logger.Error("stream goroutine leaked",
			"error", ErrJoinTimeout,
			"timeout", m.cfg.JoinTimeout,
		)
		m.mu.Lock()
		if m.done == done {
			m.done = nil
			m.cancel = nil
			m.transport = nil
			m.connected = false
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	if !m.running() {
		m.state = StateStopped
	}
	m.mu.Unlock()
}

// Restart stops the stream, waits a short fixed delay so the old transport is
// fully torn down, and starts again. Never runs two live transports.
func (m *Manager) Restart(provider SymbolProvider) bool {
	m.logger.Info("restarting stream")
	m.Stop()
	time.Sleep(m.cfg.RestartDelay)
	return m.Start(provider)
}

// IsConnected reports current transport state. Never blocks.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the correlation identifier for this manager's logs.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// SubscribeSymbols adds live subscriptions on the current connection.
// The glue layer uses this to apply desired-set diffs mid-connection.
func (m *Manager) SubscribeSymbols(symbols []string) error {
	t, err := m.liveTransport()
	if err != nil {
		return err
	}
	return t.Subscribe(symbols)
}

// UnsubscribeSymbols removes live subscriptions on the current connection.
func (m *Manager) UnsubscribeSymbols(symbols []string) error {
	t, err := m.liveTransport()
	if err != nil {
		return err
	}
	return t.Unsubscribe(symbols)
}

func (m *Manager) liveTransport() (Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected || m.transport == nil {
		return nil, ErrNotConnected
	}
	return m.transport, nil
}

// running reports whether the run goroutine is alive. Caller must hold m.mu.
func (m *Manager) running() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// setStateFor sets the lifecycle state only while done is still the
// current cycle's channel. A disowned zombie goroutine must not clobber
// the state of its successor.
func (m *Manager) setStateFor(done chan struct{}, s State) {
	m.mu.Lock()
	if m.done == done {
		m.state = s
	}
	m.mu.Unlock()
}

func (m *Manager) reconnectWanted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shouldReconnect
}

// run is the connection loop. It owns the transport exclusively: no other
// goroutine dials, reads, or closes it.
func (m *Manager) run(ctx context.Context, provider SymbolProvider, done, sig chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		if ctx.Err() != nil || !m.reconnectWanted() {
			m.setStateFor(done, StateStopped)
			return
		}

		// Consult the breaker before every attempt; a denial is terminal
		// and distinct from a connection failure.
		if !m.breaker.CanAttemptConnection() {
			m.logger.Error("connection attempt refused",
				"error", ErrCircuitOpen,
			)
			m.setStateFor(done, StateStopped)
			return
		}

		established, err := m.runConnection(ctx, provider, done, sig)
		if err == nil {
			// Clean shutdown requested.
			m.setStateFor(done, StateStopped)
			return
		}

		m.breaker.RecordFailure()

		if ctx.Err() != nil || !m.reconnectWanted() {
			m.setStateFor(done, StateStopped)
			return
		}

		if established {
			// The previous attempt connected; the failure count restarts.
			attempt = 0
		}
		attempt++

		if attempt >= m.cfg.MaxRetries {
			m.logger.Error("giving up on stream connection",
				"error", ErrRetriesExhausted,
				"attempts", attempt,
				"last_error", err,
			)
			m.setStateFor(done, StateStopped)
			return
		}

		delay := backoffDelay(m.cfg.RetryBaseDelay, m.cfg.RetryMaxDelay, attempt)
		m.logger.Warn("stream connection lost, retrying",
			"error", err,
			"attempt", attempt,
			"max_retries", m.cfg.MaxRetries,
			"delay", delay,
		)

		m.setStateFor(done, StateRetrying)
		if !m.sleepFn(ctx, delay) {
			m.setStateFor(done, StateStopped)
			return
		}
		m.setStateFor(done, StateStarting)
	}
}

// runConnection performs one full attempt: dial, subscribe the provider's
// symbols, then pump events until stop or error. established reports whether
// the connection reached the subscribed state; a nil error means a clean
// stop was requested.
func (m *Manager) runConnection(ctx context.Context, provider SymbolProvider, done, sig chan struct{}) (established bool, err error) {
	t := m.newTransport(TransportConfig{
		URL:          m.cfg.Feed.URL(m.cfg.BaseURL),
		KeyID:        m.creds.KeyID(),
		Secret:       m.creds.Secret(),
		PingTimeout:  m.cfg.PingTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
		BufferSize:   m.cfg.BufferSize,
	}, m.logger)

	if err := t.Connect(ctx); err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}

	symbols := provider()
	if err := t.Subscribe(symbols); err != nil {
		t.Close()
		return false, fmt.Errorf("subscribe: %w", err)
	}

	m.breaker.RecordSuccess()
	m.attachTransport(t, done, sig)
	defer m.detachTransport(done)

	m.logger.Info("stream connected",
		"symbols", len(symbols),
	)

	for {
		select {
		case <-ctx.Done():
			t.Close()
			return true, nil

		case err := <-t.Errors():
			t.Close()
			return true, fmt.Errorf("transport: %w", err)

		case msg, ok := <-t.Messages():
			if !ok {
				t.Close()
				return true, ErrTransportClosed
			}
			m.dispatch(msg)
		}
	}
}

// attachTransport publishes the live transport and signals the Start waiter
// exactly once per cycle. A disowned cycle never attaches.
func (m *Manager) attachTransport(t Transport, done, sig chan struct{}) {
	m.mu.Lock()
	if m.done != done {
		m.mu.Unlock()
		return
	}
	m.transport = t
	m.connected = true
	m.state = StateConnected
	if !m.signalled {
		m.signalled = true
		close(sig)
	}
	m.mu.Unlock()
}

func (m *Manager) detachTransport(done chan struct{}) {
	m.mu.Lock()
	if m.done == done {
		m.transport = nil
		m.connected = false
	}
	m.mu.Unlock()
}

// dispatch decodes one inbound frame and forwards data events to handlers.
func (m *Manager) dispatch(msg TimestampedMessage) {
	events, controls, err := decodeFrame(msg.Data, msg.ReceivedAt)
	if err != nil {
		m.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	for _, ctrl := range controls {
		switch ctrl.Type {
		case msgTypeError:
			m.logger.Warn("stream server error",
				"code", ctrl.Code,
				"msg", ctrl.Msg,
			)
		case msgTypeSubscription:
			m.logger.Debug("subscription acknowledged")
		default:
			m.logger.Debug("stream control message",
				"type", ctrl.Type,
				"msg", ctrl.Msg,
			)
		}
	}

	for _, ev := range events {
		m.deliver(ev)
	}
}

// deliver invokes the handler for one event through the recovery wrapper.
func (m *Manager) deliver(ev model.Event) {
	switch ev.Kind {
	case model.KindQuote:
		if m.onQuote != nil {
			m.safeInvoke(ev, func() { m.onQuote(ev.Quote) })
		}
	case model.KindTrade:
		if m.onTrade != nil {
			m.safeInvoke(ev, func() { m.onTrade(ev.Trade) })
		}
	}
}

// safeInvoke runs a caller handler, recovering and logging any panic. A bug
// in handler code must never take down the data feed; the recovery is logged
// every time so the swallowing stays visible.
func (m *Manager) safeInvoke(ev model.Event, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("handler panic recovered",
				"kind", ev.Kind,
				"symbol", ev.Symbol(),
				"panic", r,
			)
		}
	}()
	fn()
}
