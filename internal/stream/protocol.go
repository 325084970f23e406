package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
)

// Outbound actions. The stream protocol is JSON: one action object per
// outbound frame, an array of typed messages per inbound frame.
type authRequest struct {
	Action string `json:"action"` // "auth"
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type subscribeRequest struct {
	Action string   `json:"action"` // "subscribe" or "unsubscribe"
	Quotes []string `json:"quotes,omitempty"`
	Trades []string `json:"trades,omitempty"`
}

// inboundMsg is the superset of fields across inbound message types,
// discriminated by T.
type inboundMsg struct {
	Type string `json:"T"` // "q", "t", "success", "error", "subscription"

	// Control fields
	Msg  string `json:"msg,omitempty"`
	Code int    `json:"code,omitempty"`

	// Common data fields
	Symbol    string    `json:"S,omitempty"`
	Timestamp time.Time `json:"t,omitempty"`

	// Quote fields
	BidPrice    float64 `json:"bp,omitempty"`
	BidSize     int64   `json:"bs,omitempty"`
	BidExchange string  `json:"bx,omitempty"`
	AskPrice    float64 `json:"ap,omitempty"`
	AskSize     int64   `json:"as,omitempty"`
	AskExchange string  `json:"ax,omitempty"`

	// Trade fields
	TradeID  int64   `json:"i,omitempty"`
	Price    float64 `json:"p,omitempty"`
	Size     int64   `json:"s,omitempty"`
	Exchange string  `json:"x,omitempty"`
}

// controlFrame is a non-data inbound message (auth acks, subscription acks,
// server errors).
type controlFrame struct {
	Type string
	Msg  string
	Code int
}

const (
	msgTypeQuote        = "q"
	msgTypeTrade        = "t"
	msgTypeSuccess      = "success"
	msgTypeError        = "error"
	msgTypeSubscription = "subscription"

	ackConnected     = "connected"
	ackAuthenticated = "authenticated"
)

// decodeFrame parses one inbound frame (a JSON array of messages) into data
// events and control frames.
func decodeFrame(data []byte, receivedAt time.Time) ([]model.Event, []controlFrame, error) {
	var msgs []inboundMsg
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, nil, fmt.Errorf("decode frame: %w", err)
	}

	var events []model.Event
	var controls []controlFrame

	for _, msg := range msgs {
		switch msg.Type {
		case msgTypeQuote:
			events = append(events, model.Event{
				Kind: model.KindQuote,
				Quote: model.Quote{
					Symbol:      msg.Symbol,
					BidPrice:    msg.BidPrice,
					BidSize:     msg.BidSize,
					BidExchange: msg.BidExchange,
					AskPrice:    msg.AskPrice,
					AskSize:     msg.AskSize,
					AskExchange: msg.AskExchange,
					Timestamp:   msg.Timestamp,
					ReceivedAt:  receivedAt,
				},
			})

		case msgTypeTrade:
			events = append(events, model.Event{
				Kind: model.KindTrade,
				Trade: model.Trade{
					Symbol:     msg.Symbol,
					TradeID:    msg.TradeID,
					Price:      msg.Price,
					Size:       msg.Size,
					Exchange:   msg.Exchange,
					Timestamp:  msg.Timestamp,
					ReceivedAt: receivedAt,
				},
			})

		default:
			controls = append(controls, controlFrame{
				Type: msg.Type,
				Msg:  msg.Msg,
				Code: msg.Code,
			})
		}
	}

	return events, controls, nil
}
