// Package feed reconciles the desired symbol set with the live stream.
//
// The subscription manager decides which symbols deserve a slot; the
// coordinator pushes that decision to the WebSocket connection whenever
// the two drift apart, and supplies the full set on every reconnect.
package feed
