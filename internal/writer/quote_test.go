package writer

import (
	"context"
	"testing"
	"time"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/router"
)

func TestQuoteWriter_Transform(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := router.NewEventBuffer[model.Quote](10)
	w := NewQuoteWriter(cfg, input, nil, nil)

	exchangeTs := time.Date(2026, 3, 2, 14, 30, 0, 123456000, time.UTC)
	receivedAt := time.Date(2026, 3, 2, 14, 30, 0, 125000000, time.UTC)
	q := model.Quote{
		Symbol:      "AAPL",
		BidPrice:    187.52,
		BidSize:     3,
		BidExchange: "V",
		AskPrice:    187.55,
		AskSize:     2,
		AskExchange: "Q",
		Timestamp:   exchangeTs,
		ReceivedAt:  receivedAt,
	}

	row := w.transform(q)

	if row.Symbol != "AAPL" {
		t.Errorf("Symbol = %s, want AAPL", row.Symbol)
	}
	if row.ExchangeTs != exchangeTs.UnixMicro() {
		t.Errorf("ExchangeTs = %d, want %d", row.ExchangeTs, exchangeTs.UnixMicro())
	}
	if row.ReceivedAt != receivedAt.UnixMicro() {
		t.Errorf("ReceivedAt = %d, want %d", row.ReceivedAt, receivedAt.UnixMicro())
	}
	if row.BidPrice != 187.52 {
		t.Errorf("BidPrice = %v, want 187.52", row.BidPrice)
	}
	if row.AskPrice != 187.55 {
		t.Errorf("AskPrice = %v, want 187.55", row.AskPrice)
	}
	if row.BidSize != 3 || row.AskSize != 2 {
		t.Errorf("sizes = (%d, %d), want (3, 2)", row.BidSize, row.AskSize)
	}
	if row.BidExchange != "V" || row.AskExchange != "Q" {
		t.Errorf("exchanges = (%s, %s), want (V, Q)", row.BidExchange, row.AskExchange)
	}
}

func TestQuoteWriter_Lifecycle(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
	}
	input := router.NewEventBuffer[model.Quote](10)

	w := NewQuoteWriter(cfg, input, nil, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestQuoteWriter_HandleQuotes_AddsToBatch(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := router.NewEventBuffer[model.Quote](10)
	w := NewQuoteWriter(cfg, input, nil, nil)

	w.handleQuotes([]model.Quote{
		{Symbol: "MSFT", BidPrice: 410.11, AskPrice: 410.15, Timestamp: time.Now(), ReceivedAt: time.Now()},
		{Symbol: "AAPL", BidPrice: 187.52, AskPrice: 187.55, Timestamp: time.Now(), ReceivedAt: time.Now()},
	})

	w.batchMu.Lock()
	batchLen := len(w.batch)
	w.batchMu.Unlock()

	if batchLen != 2 {
		t.Errorf("batch length = %d, want 2", batchLen)
	}
}

func TestQuoteWriter_ConsumesDrainedBatches(t *testing.T) {
	cfg := WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
	}
	input := router.NewEventBuffer[model.Quote](10)
	w := NewQuoteWriter(cfg, input, nil, nil)

	for _, symbol := range []string{"AAPL", "MSFT", "TSLA"} {
		input.Push(model.Quote{Symbol: symbol, Timestamp: time.Now(), ReceivedAt: time.Now()})
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.batchMu.Lock()
		n := len(w.batch)
		w.batchMu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	w.batchMu.Lock()
	if len(w.batch) != 3 {
		w.batchMu.Unlock()
		t.Fatalf("batch length = %d, want 3 drained quotes", len(w.batch))
	}
	if w.batch[0].Symbol != "AAPL" || w.batch[2].Symbol != "TSLA" {
		w.batchMu.Unlock()
		t.Fatal("drained quotes out of order")
	}
	// Empty the batch so Stop's final flush has nothing to write.
	w.batch = w.batch[:0]
	w.batchMu.Unlock()

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestQuoteWriter_Stats(t *testing.T) {
	cfg := DefaultWriterConfig()
	input := router.NewEventBuffer[model.Quote](10)
	w := NewQuoteWriter(cfg, input, nil, nil)

	stats := w.Stats()

	if stats.Inserts != 0 {
		t.Errorf("initial Inserts = %d, want 0", stats.Inserts)
	}
	if stats.Errors != 0 {
		t.Errorf("initial Errors = %d, want 0", stats.Errors)
	}
	if stats.Flushes != 0 {
		t.Errorf("initial Flushes = %d, want 0", stats.Flushes)
	}
}

func TestDefaultWriterConfig(t *testing.T) {
	cfg := DefaultWriterConfig()

	if cfg.BatchSize != 1000 {
		t.Errorf("BatchSize = %d, want 1000", cfg.BatchSize)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("FlushInterval = %v, want 5s", cfg.FlushInterval)
	}
}
