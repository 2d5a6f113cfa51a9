package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"invoicepilot/internal/amqp"
	"invoicepilot/internal/archive/google"
	"invoicepilot/internal/cli"
	"invoicepilot/internal/log"
	"invoicepilot/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting invoicepilot-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateLedger(); err != nil {
		logger.Error("Ledger configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ledger, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets ledger", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets ledger initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, ledger, cfg.SyncBatchSize)

	// Catch up on invoices saved while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	processor := worker.NewProcessor(syncWorker, cfg.SyncInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeInvoiceSaved(gctx, syncWorker.HandleInvoiceSaved)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, stopCancel := cli.ShutdownContext(30 * time.Second)
		defer stopCancel()
		return processor.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
