// streamer subscribes to the market data WebSocket and persists quotes
// and trades to TimescaleDB.
//
// Required environment variables:
//
//	ALPACA_API_KEY_ID     - API key ID
//	ALPACA_API_SECRET_KEY - API secret
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/api"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/auth"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/breaker"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/config"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/database"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/feed"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/model"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/router"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/stream"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/subscription"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/version"
	"github.com/Josh-moreton/alchemiser-quant-sub012/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/streamer.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"feed", cfg.Stream.Feed,
		"max_symbols", cfg.Subscriptions.MaxSymbols,
	)

	// Credentials come from the environment only
	creds, err := auth.FromEnv()
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)

	db, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("database connected")

	// Create broker REST client
	apiClient := api.NewClient(
		cfg.Broker.RestURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Broker.Timeout),
		api.WithRetries(cfg.Broker.MaxRetries, time.Second),
	)

	// Check the market clock
	logger.Info("checking market clock")
	clock, err := apiClient.GetClock(ctx)
	if err != nil {
		logger.Error("failed to get market clock", "error", err)
		os.Exit(1)
	}
	logger.Info("market clock",
		"is_open", clock.IsOpen,
		"next_open", clock.NextOpen,
		"next_close", clock.NextClose,
	)

	// Create subscription manager and bootstrap the watchlist
	subs, err := subscription.NewManager(cfg.Subscriptions.MaxSymbols, logger)
	if err != nil {
		logger.Error("failed to create subscription manager", "error", err)
		os.Exit(1)
	}

	watchlist := subscription.NormalizeSymbols(cfg.Subscriptions.Watchlist)
	if len(watchlist) > 0 {
		// Drop watchlist symbols the broker does not consider tradable.
		assets, err := apiClient.ListActiveAssets(ctx)
		if err != nil {
			logger.Error("failed to list active assets", "error", err)
			os.Exit(1)
		}
		tradable := api.TradableSymbols(assets)

		kept := watchlist[:0]
		for _, s := range watchlist {
			if tradable[s] {
				kept = append(kept, s)
			} else {
				logger.Warn("dropping non-tradable watchlist symbol", "symbol", s)
			}
		}
		watchlist = kept
	}
	if len(watchlist) > 0 {
		plan := subs.PlanAndExecute(watchlist, float64(time.Now().Unix()))
		logger.Info("watchlist bootstrapped",
			"added", len(plan.Add),
			"rejected", len(plan.Rejected),
		)
	}

	// Events flow: stream handlers -> events channel -> router -> writers
	events := make(chan model.Event, cfg.Stream.BufferSize)

	rtr := router.NewRouter(router.RouterConfig{
		QuoteBufferSize: cfg.Writers.BufferSize,
		TradeBufferSize: cfg.Writers.BufferSize,
	}, events, logger)

	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	quoteWriter := writer.NewQuoteWriter(writerCfg, rtr.Buffers().Quote, db, logger)
	tradeWriter := writer.NewTradeWriter(writerCfg, rtr.Buffers().Trade, db, logger)

	if err := quoteWriter.Start(ctx); err != nil {
		logger.Error("failed to start quote writer", "error", err)
		os.Exit(1)
	}
	if err := tradeWriter.Start(ctx); err != nil {
		logger.Error("failed to start trade writer", "error", err)
		os.Exit(1)
	}

	// Create the stream manager
	feedName, err := stream.ParseFeed(cfg.Stream.Feed)
	if err != nil {
		logger.Error("invalid feed", "error", err)
		os.Exit(1)
	}

	streamCfg := stream.Config{
		Feed:           feedName,
		BaseURL:        cfg.Stream.BaseURL,
		ConnectTimeout: cfg.Stream.ConnectTimeout,
		JoinTimeout:    cfg.Stream.JoinTimeout,
		MaxRetries:     cfg.Stream.MaxRetries,
		RetryBaseDelay: cfg.Stream.RetryBaseDelay,
		RetryMaxDelay:  cfg.Stream.RetryMaxDelay,
		RestartDelay:   cfg.Stream.RestartDelay,
		PingTimeout:    cfg.Stream.PingTimeout,
		WriteTimeout:   cfg.Stream.WriteTimeout,
		BufferSize:     cfg.Stream.BufferSize,
	}

	cb := breaker.New(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
	}, logger)

	streamMgr, err := stream.NewManager(creds, streamCfg,
		stream.WithLogger(logger),
		stream.WithBreaker(cb),
		stream.WithQuoteHandler(func(q model.Quote) {
			events <- model.Event{Kind: model.KindQuote, Quote: q}
		}),
		stream.WithTradeHandler(func(tr model.Trade) {
			events <- model.Event{Kind: model.KindTrade, Trade: tr}
		}),
	)
	if err != nil {
		logger.Error("failed to create stream manager", "error", err)
		os.Exit(1)
	}

	// Coordinator closes the loop between admission and the live stream
	coord := feed.New(feed.Config{
		Interval: cfg.Subscriptions.ReconcileInterval,
	}, subs, streamMgr, logger)

	if !streamMgr.Start(coord.Provider) {
		logger.Warn("stream did not connect before timeout, retrying in background")
	}

	if err := coord.Start(ctx); err != nil {
		logger.Error("failed to start coordinator", "error", err)
		os.Exit(1)
	}

	// Health server and shutdown supervision
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: healthHandler(cfg.Health.Path, db, subs, streamMgr, rtr, quoteWriter, tradeWriter),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("streamer running",
		"instance_id", cfg.Instance.ID,
		"session", streamMgr.SessionID(),
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	// Ordered teardown: stream first so no new events arrive, then the
	// coordinator, then drain the router and writers.
	streamMgr.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	coord.Stop(shutdownCtx)
	close(events)
	rtr.Stop(shutdownCtx)
	quoteWriter.Stop(shutdownCtx)
	tradeWriter.Stop(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.Error("health server error", "error", err)
	}

	logger.Info("streamer stopped")
}
