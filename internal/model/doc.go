// Package model defines shared data types for the streaming layer.
//
// Conventions:
//   - Prices and sizes: float64 as delivered by the provider feed
//   - Timestamps: provider exchange timestamp plus local receive time
//   - Symbols: upper-case ticker strings (e.g. "AAPL")
package model
