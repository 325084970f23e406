package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/router"
)

// QuoteWriter consumes quotes from the router buffer and writes to the quotes table.
type QuoteWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input from the event router
	input *router.EventBuffer[model.Quote]

	// Database
	db *pgxpool.Pool

	// Batching
	batch       []quoteRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	metrics WriterMetrics
}

// NewQuoteWriter creates a new QuoteWriter.
func NewQuoteWriter(
	cfg WriterConfig,
	input *router.EventBuffer[model.Quote],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *QuoteWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]quoteRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming quotes and writing to the database.
func (w *QuoteWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("quote writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer.
func (w *QuoteWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping quote writer")

	if w.cancel != nil {
		w.cancel()
	}

	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("quote writer stopped")
	case <-ctx.Done():
		w.logger.Warn("quote writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *QuoteWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop drains the input buffer in batch-sized chunks. It exits on
// cancellation or once the buffer is closed and empty, so the final flush
// in Stop sees everything the router handed off.
func (w *QuoteWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		quotes, open := w.input.Drain(w.cfg.BatchSize)
		if len(quotes) > 0 {
			w.handleQuotes(quotes)
			continue
		}
		if !open {
			return
		}

		select {
		case <-w.ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *QuoteWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleQuotes transforms a drained chunk and flushes once the batch
// reaches the configured size.
func (w *QuoteWriter) handleQuotes(quotes []model.Quote) {
	w.batchMu.Lock()
	for _, q := range quotes {
		w.batch = append(w.batch, w.transform(q))
	}
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a Quote to a quoteRow.
func (w *QuoteWriter) transform(q model.Quote) quoteRow {
	return quoteRow{
		ExchangeTs:  q.Timestamp.UnixMicro(),
		ReceivedAt:  q.ReceivedAt.UnixMicro(),
		Symbol:      q.Symbol,
		BidPrice:    q.BidPrice,
		BidSize:     q.BidSize,
		BidExchange: q.BidExchange,
		AskPrice:    q.AskPrice,
		AskSize:     q.AskSize,
		AskExchange: q.AskExchange,
	}
}

// flush writes the current batch to the database.
func (w *QuoteWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]quoteRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed quotes",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *QuoteWriter) batchInsert(rows []quoteRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO quotes (exchange_ts, received_at, symbol, bid_price, bid_size, bid_exchange, ask_price, ask_size, ask_exchange)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, exchange_ts) DO NOTHING
		`, r.ExchangeTs, r.ReceivedAt, r.Symbol, r.BidPrice, r.BidSize, r.BidExchange, r.AskPrice, r.AskSize, r.AskExchange)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
