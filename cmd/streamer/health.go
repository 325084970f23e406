package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/router"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/stream"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/subscription"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/writer"
)

// healthHandler builds the HTTP handler for health checks.
func healthHandler(
	path string,
	db *pgxpool.Pool,
	subs *subscription.Manager,
	streamMgr *stream.Manager,
	rtr router.Router,
	quoteWriter *writer.QuoteWriter,
	tradeWriter *writer.TradeWriter,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		// Check stream connection
		state := streamMgr.State()
		health.Components["stream"] = map[string]interface{}{
			"state":   state.String(),
			"session": streamMgr.SessionID(),
		}
		if !streamMgr.IsConnected() {
			health.Status = "degraded"
		}

		// Subscription stats
		stats := subs.Stats()
		health.Components["subscriptions"] = map[string]interface{}{
			"active":       len(subs.SubscribedSymbols()),
			"total":        stats.TotalSubscriptions,
			"replacements": stats.Replacements,
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"router": rtr.Stats(),
			"writers": map[string]interface{}{
				"quotes": quoteWriter.Stats(),
				"trades": tradeWriter.Stats(),
			},
			"symbols": subs.SubscribedSymbols(),
		})
	})

	return mux
}
