// Package database provides connection pool management for TimescaleDB.
//
// Each streamer writes quotes and trades to hypertables keyed on
// (symbol, exchange_ts). Inserts are append-only.
package database
