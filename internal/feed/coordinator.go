package feed

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SymbolSource supplies the desired symbol set.
type SymbolSource interface {
	SubscribedSymbols() []string
}

// StreamSink applies subscription changes to a live stream.
type StreamSink interface {
	IsConnected() bool
	SubscribeSymbols(symbols []string) error
	UnsubscribeSymbols(symbols []string) error
}

// Config holds coordinator configuration.
type Config struct {
	Interval time.Duration // Reconcile interval (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
	}
}

// Coordinator keeps the live stream subscribed to exactly the symbols
// admitted by the subscription manager.
type Coordinator struct {
	cfg    Config
	source SymbolSource
	sink   StreamSink
	logger *slog.Logger

	mu      sync.Mutex
	applied map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Coordinator.
func New(cfg Config, source SymbolSource, sink StreamSink, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Coordinator{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		logger:  logger,
		applied: make(map[string]bool),
	}
}

// Provider returns the symbol set for the stream manager to subscribe
// after each (re)connect. Supplying the set through here also records
// it as applied, so the next reconcile starts from an accurate base.
func (c *Coordinator) Provider() []string {
	symbols := c.source.SubscribedSymbols()

	c.mu.Lock()
	c.applied = make(map[string]bool, len(symbols))
	for _, s := range symbols {
		c.applied[s] = true
	}
	c.mu.Unlock()

	return symbols
}

// Start begins the reconcile loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run()

	c.logger.Info("feed coordinator started", "interval", c.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the coordinator.
func (c *Coordinator) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("feed coordinator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main reconcile loop.
func (c *Coordinator) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.Reconcile()
		}
	}
}

// Reconcile diffs the desired set against what the stream has applied
// and pushes the difference. No-op while disconnected: the provider
// delivers the full set on reconnect.
func (c *Coordinator) Reconcile() {
	if !c.sink.IsConnected() {
		return
	}

	desired := c.source.SubscribedSymbols()
	desiredSet := make(map[string]bool, len(desired))
	for _, s := range desired {
		desiredSet[s] = true
	}

	c.mu.Lock()
	var add, remove []string
	for s := range desiredSet {
		if !c.applied[s] {
			add = append(add, s)
		}
	}
	for s := range c.applied {
		if !desiredSet[s] {
			remove = append(remove, s)
		}
	}
	c.mu.Unlock()

	if len(add) == 0 && len(remove) == 0 {
		return
	}

	sort.Strings(add)
	sort.Strings(remove)

	if len(add) > 0 {
		if err := c.sink.SubscribeSymbols(add); err != nil {
			c.logger.Warn("subscribe failed", "symbols", add, "error", err)
			return
		}
	}
	if len(remove) > 0 {
		if err := c.sink.UnsubscribeSymbols(remove); err != nil {
			c.logger.Warn("unsubscribe failed", "symbols", remove, "error", err)
			return
		}
	}

	c.mu.Lock()
	for _, s := range add {
		c.applied[s] = true
	}
	for _, s := range remove {
		delete(c.applied, s)
	}
	c.mu.Unlock()

	c.logger.Info("reconciled subscriptions",
		"added", len(add),
		"removed", len(remove),
		"total", len(desired),
	)
}

// Applied returns the symbols currently applied to the stream, sorted.
func (c *Coordinator) Applied() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.applied))
	for s := range c.applied {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
