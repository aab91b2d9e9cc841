package main

import (
	"context"
	"os"

	"spendwise/internal/amqp"
	"spendwise/internal/cli"
	"spendwise/internal/config"
	"spendwise/internal/log"
	gsheet "spendwise/internal/sheets/google"
	"spendwise/internal/worker"
)

func main() {
	boot := log.New(log.DefaultConfig())
	if err := cli.LoadEnvFile(); err != nil {
		cli.Fatal(boot, "Failed to load .env", err)
	}

	cfg, err := cli.LoadAndValidateConfig("", func(c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		return c.ValidateWorker()
	})
	if err != nil {
		cli.Fatal(boot, "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker, os.Stdout)
	logger.Info("Starting spendwise-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	mirror, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	logger.Info("Google Sheets mirror ready",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer consumer.Close()

	w := worker.NewMirrorWorker(mirror, consumer, cfg.WorkerHealthCheckInterval, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}

	s := w.Stats()
	logger.Info("Worker stopped gracefully",
		"upserted", s.Upserted,
		"deleted", s.Deleted,
		"failed", s.Failed)
}
