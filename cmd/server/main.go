package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"precedence/internal/api"
	"precedence/internal/config"
	"precedence/internal/engine"
	"precedence/internal/outbox"
	"precedence/internal/risk"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ---------------- Config ----------------

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	// ---------------- Engine ----------------

	clock := engine.NewClock(time.Now().UnixMicro())
	riskChecker := risk.NewChecker(cfg.Risk.MaxOrderSize, cfg.Risk.MaxPositionSize)
	eng := engine.New(cfg.Engine.AsEngineConfig(), clock, logger, riskChecker)

	for _, symbol := range []string{"AAPL", "MSFT", "GOOG"} {
		eng.AddSymbol(symbol)
	}

	eng.Start()
	defer eng.Stop()

	// ---------------- Outbox (Kafka + pebble ledger) ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Outbox.Enabled {
		ledger, err := outbox.OpenLedger(cfg.Outbox.LedgerDir)
		if err != nil {
			logger.Fatal("open outbox ledger", zap.Error(err))
		}
		defer ledger.Close()

		pub, err := outbox.NewPublisher(outbox.Config{
			Brokers:     cfg.Outbox.Brokers,
			TradeTopic:  cfg.Outbox.TradeTopic,
			MarketTopic: cfg.Outbox.MarketTopic,
		}, ledger, logger)
		if err != nil {
			logger.Fatal("dial kafka", zap.Error(err))
		}
		defer pub.Close()

		eng.SubscribeTrades(pub)
		eng.SubscribeMarketData(pub)
		go pub.Sweep(ctx, 2*time.Second)
	}

	// ---------------- Periodic cleanup ----------------

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				eng.SweepExpired(cfg.Engine.OrderTimeout())
			}
		}
	}()

	// ---------------- HTTP + WebSocket gateway ----------------

	srv := api.NewServer(eng, logger)
	go func() {
		if err := srv.Start(cfg.API.ListenAddr); err != nil {
			logger.Error("api server exited", zap.Error(err))
		}
	}()

	logger.Info("precedence engine running", zap.String("addr", cfg.API.ListenAddr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}
