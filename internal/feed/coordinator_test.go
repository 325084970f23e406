package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	symbols []string
}

func (s *fakeSource) SubscribedSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.symbols...)
}

func (s *fakeSource) set(symbols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = symbols
}

type fakeSink struct {
	mu           sync.Mutex
	connected    bool
	subscribed   [][]string
	unsubscribed [][]string
	subscribeErr error
}

func (s *fakeSink) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSink) SubscribeSymbols(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribeErr != nil {
		return s.subscribeErr
	}
	s.subscribed = append(s.subscribed, symbols)
	return nil
}

func (s *fakeSink) UnsubscribeSymbols(symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = append(s.unsubscribed, symbols)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvider_RecordsApplied(t *testing.T) {
	source := &fakeSource{symbols: []string{"AAPL", "MSFT"}}
	sink := &fakeSink{connected: true}
	c := New(DefaultConfig(), source, sink, testLogger())

	got := c.Provider()
	if !reflect.DeepEqual(got, []string{"AAPL", "MSFT"}) {
		t.Errorf("Provider() = %v, want [AAPL MSFT]", got)
	}
	if applied := c.Applied(); !reflect.DeepEqual(applied, []string{"AAPL", "MSFT"}) {
		t.Errorf("Applied() = %v, want [AAPL MSFT]", applied)
	}
}

func TestReconcile_PushesDiff(t *testing.T) {
	source := &fakeSource{symbols: []string{"AAPL", "MSFT"}}
	sink := &fakeSink{connected: true}
	c := New(DefaultConfig(), source, sink, testLogger())

	// Initial set applied via the provider path.
	c.Provider()

	// Desired set drifts: MSFT evicted, TSLA admitted.
	source.set("AAPL", "TSLA")
	c.Reconcile()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.subscribed) != 1 || !reflect.DeepEqual(sink.subscribed[0], []string{"TSLA"}) {
		t.Errorf("subscribed = %v, want [[TSLA]]", sink.subscribed)
	}
	if len(sink.unsubscribed) != 1 || !reflect.DeepEqual(sink.unsubscribed[0], []string{"MSFT"}) {
		t.Errorf("unsubscribed = %v, want [[MSFT]]", sink.unsubscribed)
	}
}

func TestReconcile_NoopWhenInSync(t *testing.T) {
	source := &fakeSource{symbols: []string{"AAPL"}}
	sink := &fakeSink{connected: true}
	c := New(DefaultConfig(), source, sink, testLogger())

	c.Provider()
	c.Reconcile()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.subscribed) != 0 || len(sink.unsubscribed) != 0 {
		t.Errorf("expected no calls, got subscribed=%v unsubscribed=%v", sink.subscribed, sink.unsubscribed)
	}
}

func TestReconcile_SkipsWhileDisconnected(t *testing.T) {
	source := &fakeSource{symbols: []string{"AAPL"}}
	sink := &fakeSink{connected: false}
	c := New(DefaultConfig(), source, sink, testLogger())

	c.Reconcile()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.subscribed) != 0 {
		t.Errorf("subscribed while disconnected: %v", sink.subscribed)
	}
}

func TestReconcile_KeepsStateOnError(t *testing.T) {
	source := &fakeSource{symbols: []string{"AAPL"}}
	sink := &fakeSink{connected: true, subscribeErr: errors.New("not connected")}
	c := New(DefaultConfig(), source, sink, testLogger())

	c.Reconcile()

	// Failed push must not mark the symbol applied.
	if applied := c.Applied(); len(applied) != 0 {
		t.Errorf("Applied() = %v, want empty after failed subscribe", applied)
	}

	// Once the sink recovers, the same diff is retried.
	sink.mu.Lock()
	sink.subscribeErr = nil
	sink.mu.Unlock()

	c.Reconcile()
	if applied := c.Applied(); !reflect.DeepEqual(applied, []string{"AAPL"}) {
		t.Errorf("Applied() = %v, want [AAPL] after retry", applied)
	}
}

func TestCoordinator_Lifecycle(t *testing.T) {
	source := &fakeSource{symbols: []string{"AAPL"}}
	sink := &fakeSink{connected: true}
	c := New(Config{Interval: 10 * time.Millisecond}, source, sink, testLogger())

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The loop should pick up the desired set without an explicit call.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(c.Applied()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if applied := c.Applied(); !reflect.DeepEqual(applied, []string{"AAPL"}) {
		t.Errorf("Applied() = %v, want [AAPL]", applied)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
