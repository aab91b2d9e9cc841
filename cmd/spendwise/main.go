package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/ai"
	"spendwise/internal/amqp"
	"spendwise/internal/cache"
	"spendwise/internal/cli"
	"spendwise/internal/core"
	apphttp "spendwise/internal/http"
	"spendwise/internal/live"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/services"
)

const (
	cacheSweepInterval   = time.Minute
	sessionSweepInterval = time.Hour
)

func main() {
	boot := log.New(log.DefaultConfig())
	if err := cli.LoadEnvFile(); err != nil {
		cli.Fatal(boot, "Failed to load .env", err)
	}

	cfg, err := cli.LoadAndValidateConfig("", nil)
	if err != nil {
		cli.Fatal(boot, "Invalid configuration", err)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp, os.Stdout)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	res, err := cli.InitStore(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize storage", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Storage cleanup failed", log.FieldError, err.Error())
		}
	}()

	m := metrics.New()
	hub := live.NewHub(m.LiveSubscribers)

	model, err := ai.NewClient(ai.Config{
		APIKey:            cfg.LLMAPIKey,
		BaseURL:           cfg.LLMBaseURL,
		Model:             cfg.LLMModel,
		Timeout:           cfg.LLMTimeout,
		RequestsPerSecond: cfg.LLMRequestsPerSec,
		Burst:             cfg.LLMBurst,
	}, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize language model client", err)
	}
	if !model.Enabled() {
		logger.Warn("No LLM API key configured, category inference and summaries are off")
	}

	lists := cache.NewLRUCache[[]core.Expense](cfg.CacheSize, cfg.CacheTTL)
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMin})

	caches := cache.NewManager(logger)
	caches.Register(lists)
	caches.Register(limiter)

	failures := services.NewFailureLog(50)
	opts := []services.ExpenseOption{
		services.WithCache(lists),
		services.WithHub(hub),
		services.WithMetrics(m),
		services.WithLogger(logger),
		services.WithFailureReporter(failures.Report),
	}
	if cfg.AMQPEnabled() {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP publisher", err)
		}
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
		logger.Info("Publishing expense events", "exchange", cfg.AMQPExchange)
	}

	expenses := services.NewExpenseService(res.Store, model, opts...)
	accounts := services.NewAccountService(res.Store, cfg.SessionTTL, logger)

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:          ":" + cfg.Port,
		SecureCookies: cfg.SecureCookies,
	}, apphttp.Deps{
		Expenses:   expenses,
		Accounts:   accounts,
		Summarizer: model,
		Hub:        hub,
		Failures:   failures,
		Store:      res.Store,
		Metrics:    m,
		Limiter:    limiter,
		Detector:   security.NewDetector(logger),
		Logger:     logger,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to build HTTP server", err)
	}
	// Hijacked live connections watch this context, so they close on shutdown.
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting spendwise server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"ai_enabled", model.Enabled(),
			"amqp_enabled", cfg.AMQPEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		caches.StartCleanup(gctx, cacheSweepInterval)
		<-gctx.Done()
		caches.Stop()
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := accounts.SweepSessions(gctx); err != nil {
					logger.Warn("Session sweep failed", log.FieldError, err.Error())
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
