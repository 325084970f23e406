// Package api provides the broker REST client used for pre-flight checks.
//
// REST endpoints:
//   - Production: https://api.alpaca.markets
//   - Paper: https://paper-api.alpaca.markets
//
// The streamer only reads from the trading API: the market clock for
// session awareness and the asset list for symbol validation.
package api
