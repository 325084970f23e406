package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
)

// Router fans market data events out to specialized Writers.
type Router interface {
	// Start begins routing events from the input channel to the buffers.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Buffers returns output buffers for writers to consume.
	Buffers() RouterBuffers

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterBuffers provides access to output buffers for writers.
type RouterBuffers struct {
	Quote *EventBuffer[model.Quote]
	Trade *EventBuffer[model.Trade]
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	EventsReceived int64
	EventsRouted   int64
	EventsDropped  int64
	UnknownEvents  int64
	QuoteBuffer    BufferStats
	TradeBuffer    BufferStats
}

// RouterConfig configures buffer sizing.
type RouterConfig struct {
	QuoteBufferSize int
	TradeBufferSize int
}

// DefaultRouterConfig returns buffer sizes suitable for a single feed.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		QuoteBufferSize: 10000,
		TradeBufferSize: 5000,
	}
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	// Input from the stream manager
	input <-chan model.Event

	// Output to Writers (growable buffers)
	quoteBuf *EventBuffer[model.Quote]
	tradeBuf *EventBuffer[model.Trade]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	received int64
	routed   int64
	dropped  int64
	unknown  int64
}

// NewRouter creates a new event router.
func NewRouter(cfg RouterConfig, input <-chan model.Event, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuoteBufferSize <= 0 {
		cfg.QuoteBufferSize = DefaultRouterConfig().QuoteBufferSize
	}
	if cfg.TradeBufferSize <= 0 {
		cfg.TradeBufferSize = DefaultRouterConfig().TradeBufferSize
	}

	return &router{
		cfg:      cfg,
		logger:   logger,
		input:    input,
		quoteBuf: NewEventBuffer[model.Quote](cfg.QuoteBufferSize),
		tradeBuf: NewEventBuffer[model.Trade](cfg.TradeBufferSize),
	}
}

// Start begins routing events.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started",
		"quote_buffer", r.cfg.QuoteBufferSize,
		"trade_buffer", r.cfg.TradeBufferSize,
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	if r.cancel != nil {
		r.cancel()
	}

	// Wait for goroutine to finish
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	// Close output buffers so writers drain and exit.
	r.quoteBuf.Close()
	r.tradeBuf.Close()

	return nil
}

// Buffers returns output buffers for writers.
func (r *router) Buffers() RouterBuffers {
	return RouterBuffers{
		Quote: r.quoteBuf,
		Trade: r.tradeBuf,
	}
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		EventsReceived: r.received,
		EventsRouted:   r.routed,
		EventsDropped:  r.dropped,
		UnknownEvents:  r.unknown,
		QuoteBuffer:    r.quoteBuf.Stats(),
		TradeBuffer:    r.tradeBuf.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(ev)
		}
	}
}

// route dispatches a single event to the matching buffer.
func (r *router) route(ev model.Event) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	var sent bool

	switch ev.Kind {
	case model.KindQuote:
		sent = r.quoteBuf.Push(ev.Quote)
	case model.KindTrade:
		sent = r.tradeBuf.Push(ev.Trade)
	default:
		r.mu.Lock()
		r.unknown++
		r.mu.Unlock()
		r.logger.Warn("unknown event kind", "kind", string(ev.Kind), "symbol", ev.Symbol())
		return
	}

	r.mu.Lock()
	if sent {
		r.routed++
	} else {
		r.dropped++
	}
	r.mu.Unlock()
}
