package model

import "time"

// EventKind discriminates decoded stream events.
type EventKind string

const (
	KindQuote EventKind = "quote"
	KindTrade EventKind = "trade"
)

// Quote is a top-of-book quote update for a single symbol.
type Quote struct {
	Symbol      string
	BidPrice    float64
	BidSize     int64
	BidExchange string
	AskPrice    float64
	AskSize     int64
	AskExchange string
	Timestamp   time.Time // Exchange timestamp
	ReceivedAt  time.Time // Local timestamp when the frame was read
}

// Spread returns the ask-bid spread, or 0 when either side is missing.
func (q Quote) Spread() float64 {
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return 0
	}
	return q.AskPrice - q.BidPrice
}

// Trade is a single executed trade print.
type Trade struct {
	Symbol     string
	TradeID    int64
	Price      float64
	Size       int64
	Exchange   string
	Timestamp  time.Time // Exchange timestamp
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// Event wraps a decoded stream message for fan-out to consumers.
// Exactly one of Quote/Trade is populated, selected by Kind.
type Event struct {
	Kind  EventKind
	Quote Quote
	Trade Trade
}

// Symbol returns the symbol of the wrapped message.
func (e Event) Symbol() string {
	if e.Kind == KindTrade {
		return e.Trade.Symbol
	}
	return e.Quote.Symbol
}
