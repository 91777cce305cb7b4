package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cryptocompliance/btc-screening/internal/audit"
	"github.com/cryptocompliance/btc-screening/internal/config"
	"github.com/cryptocompliance/btc-screening/internal/indexer"
	"github.com/cryptocompliance/btc-screening/internal/pkg/logger"
	"github.com/cryptocompliance/btc-screening/internal/sanctions"
	"github.com/cryptocompliance/btc-screening/internal/screening"
	"github.com/cryptocompliance/btc-screening/internal/server"
)

func main() {
	// 1. Bootstrap logging
	boot, _ := zap.NewProduction()
	defer boot.Sync()
	sugar := boot.Sugar()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("failed to load configuration: %v", err)
	}

	log, err := logger.New("btc-screening", cfg.Logging.Environment, cfg.Logging.Level)
	if err != nil {
		sugar.Fatalf("failed to build logger: %v", err)
	}
	defer log.Sync()

	// 3. Wire components
	sanctionsIndex := sanctions.NewIndex(
		sanctions.NewFileSource(cfg.SanctionsFile()),
		cfg.Sanctions.RefreshInterval,
		log,
	)

	indexerClient := indexer.NewClient(
		cfg.Indexer.BaseURL,
		cfg.Indexer.RequestTimeout,
		cfg.Indexer.APIRateLimit,
		log,
	)

	auditLog := audit.NewLog(cfg.Data.AuditLogsDir, log)
	assessments := audit.NewAssessmentStore(cfg.Data.RiskAssessmentsDir, log)

	walker := screening.NewWalker(indexerClient, sanctionsIndex, screening.WalkerConfig{
		BatchSize:    cfg.Screening.WalkBatchSize,
		TxsPerHop:    cfg.Screening.WalkTxsPerHop,
		AddrFanout:   cfg.Screening.WalkAddrFanout,
		TxsPerTarget: cfg.Screening.WalkTxsPerTarget,
		TxsPerAddr:   cfg.Screening.WalkTxsPerAddr,
		CacheTTL:     cfg.Screening.RiskCacheTTL,
	}, log)

	addressScreener := screening.NewAddressScreener(
		sanctionsIndex,
		walker,
		auditLog,
		assessments,
		screening.AddressScreenerConfig{
			DefaultMaxHops: cfg.Screening.DefaultMaxHops,
			BulkChunkSize:  cfg.Screening.BulkChunkSize,
			BulkChunkPause: cfg.Screening.BulkChunkPause,
		},
		log,
	)

	txScreener := screening.NewTxScreener(indexerClient, addressScreener, auditLog, log)

	// 4. HTTP server with graceful shutdown
	srv := server.New(cfg, log, addressScreener, txScreener, sanctionsIndex, auditLog, indexerClient)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("http server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", logger.ErrorField(err))
	}

	log.Info("server exited")
}
