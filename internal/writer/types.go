package writer

import (
	"time"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: 5 * time.Second,
	}
}

// quoteRow represents a row to be inserted into the quotes table.
type quoteRow struct {
	ExchangeTs  int64 // Microseconds
	ReceivedAt  int64 // Microseconds
	Symbol      string
	BidPrice    float64
	BidSize     int64
	BidExchange string
	AskPrice    float64
	AskSize     int64
	AskExchange string
}

// tradeRow represents a row to be inserted into the trades table.
type tradeRow struct {
	TradeID    int64
	ExchangeTs int64 // Microseconds
	ReceivedAt int64 // Microseconds
	Symbol     string
	Price      float64
	Size       int64
	Exchange   string
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}
