// Package writer implements batch writers for streamed market data.
//
// Writers:
//   - Quote writer (TimescaleDB quotes table)
//   - Trade writer (TimescaleDB trades table)
//
// All writers use append-only semantics (never update, only insert).
// Timestamps are stored as microseconds since the Unix epoch.
package writer
