// streamtest connects to the market data WebSocket and prints parsed
// quotes and trades to the console. No database required.
//
// Usage: go run ./cmd/streamtest --feed iex --symbols AAPL,MSFT
//
// Required environment variables:
//
//	ALPACA_API_KEY_ID     - API key ID
//	ALPACA_API_SECRET_KEY - API secret
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/auth"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/stream"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/subscription"
)

func main() {
	feedFlag := flag.String("feed", "iex", "data feed: iex, sip, delayed_sip")
	symbolsFlag := flag.String("symbols", "AAPL,MSFT,SPY", "comma-separated symbols")
	quiet := flag.Bool("quiet", false, "suppress per-message output, print a summary on exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	creds, err := auth.FromEnv()
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	feed, err := stream.ParseFeed(*feedFlag)
	if err != nil {
		logger.Error("invalid feed", "error", err)
		os.Exit(1)
	}

	symbols := subscription.NormalizeSymbols(strings.Split(*symbolsFlag, ","))
	if len(symbols) == 0 {
		logger.Error("no symbols given")
		os.Exit(1)
	}

	var quotes, trades int

	cfg := stream.DefaultConfig()
	cfg.Feed = feed

	mgr, err := stream.NewManager(creds, cfg,
		stream.WithLogger(logger),
		stream.WithQuoteHandler(func(q model.Quote) {
			quotes++
			if !*quiet {
				fmt.Printf("%s  Q %-6s bid %.2fx%d (%s)  ask %.2fx%d (%s)\n",
					q.Timestamp.Format(time.RFC3339Nano),
					q.Symbol, q.BidPrice, q.BidSize, q.BidExchange,
					q.AskPrice, q.AskSize, q.AskExchange)
			}
		}),
		stream.WithTradeHandler(func(tr model.Trade) {
			trades++
			if !*quiet {
				fmt.Printf("%s  T %-6s %.2f x %d (%s)\n",
					tr.Timestamp.Format(time.RFC3339Nano),
					tr.Symbol, tr.Price, tr.Size, tr.Exchange)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create stream manager", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting", "feed", feed, "symbols", symbols)

	if !mgr.Start(func() []string { return symbols }) {
		logger.Warn("stream did not connect before timeout, retrying in background")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	mgr.Stop()

	fmt.Printf("\nreceived %d quotes, %d trades\n", quotes, trades)
}
