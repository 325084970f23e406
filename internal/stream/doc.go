// Package stream implements the market-data streaming connection layer.
//
// The Manager owns the lifecycle of exactly one logical WebSocket connection:
// start/stop/restart, exponential-backoff reconnection gated by a circuit
// breaker, and safe dispatch of inbound quote/trade events to caller-supplied
// handlers. The underlying socket is driven by a Transport; the production
// implementation is a gorilla/websocket client speaking the provider's
// data-stream protocol, and tests inject fakes.
package stream
