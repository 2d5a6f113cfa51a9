package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"invoicepilot/internal/backend"
	"invoicepilot/internal/cache"
	"invoicepilot/internal/cli"
	apphttp "invoicepilot/internal/http"
	"invoicepilot/internal/log"
	"invoicepilot/internal/profile"
	"invoicepilot/internal/render"
	"invoicepilot/internal/services"
	"invoicepilot/internal/suggest"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	prof, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		logger.Error("Failed to load business profile", "error", err, "path", cfg.ProfilePath)
		os.Exit(1)
	}

	renderer, err := render.New(render.Options{
		Currency: cfg.CurrencySymbol,
		Logger:   logger.WithComponent(log.ComponentRender),
	})
	if err != nil {
		logger.Error("Failed to load invoice templates", "error", err)
		os.Exit(1)
	}

	suggester := suggest.NewClient(suggest.Config{
		BaseURL: cfg.SuggestURL,
		APIKey:  cfg.SuggestAPIKey,
		Timeout: cfg.SuggestTimeout,
	}, logger.WithComponent(log.ComponentSuggest))
	if !suggester.Enabled() {
		logger.Info("Suggestion service not configured, AI fill disabled")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, cfg, apphttp.Deps{
		Archive:   result.Archive,
		Ready:     result.Ready,
		Renderer:  renderer,
		Suggester: suggester,
		Profile:   prof,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	caches := cache.NewManager(logger)
	caches.Register("draft_sessions", srv.Sessions())
	if svc, ok := result.Archive.(*services.InvoiceService); ok {
		caches.Register("invoice_records", svc.Records())
	}
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext(30 * time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting invoicepilot server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"suggestions", suggester.Enabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		cancel()
		os.Exit(1)
	}

	<-shutdownDone
	logger.Info("Server stopped gracefully")
}
