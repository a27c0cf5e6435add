package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promptops/modelrouter/pkg/accounting"
	"github.com/promptops/modelrouter/pkg/cache"
	"github.com/promptops/modelrouter/pkg/logging"
	"github.com/promptops/modelrouter/pkg/metrics"
	"github.com/promptops/modelrouter/pkg/providers"
	"github.com/promptops/modelrouter/pkg/registry"
	"github.com/promptops/modelrouter/pkg/router"
	"github.com/promptops/modelrouter/pkg/router/httpserver"
	"github.com/promptops/modelrouter/pkg/tracing"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		healthcheck()
	}

	port := os.Getenv("MODELROUTER_PORT")
	if port == "" {
		port = "8080"
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		log.Fatal("failed to create logger:", err)
	}
	defer logger.Sync()

	// Registry: explicit config file, else the built-in defaults.
	loader := registry.NewLoader(os.Getenv("MODELROUTER_CONFIG"))
	reg, err := loader.LoadRegistry()
	if err != nil {
		logger.Warn("failed to load registry, using default", "error", err)
		reg = registry.GetDefaultRegistry()
	}

	factory := providers.NewAdapterFactory()
	supported := make(map[string]bool)
	for _, p := range factory.GetSupportedProviders() {
		supported[p] = true
	}
	for _, p := range reg.GetAllProviders() {
		if !supported[p] {
			logger.Warn("registry declares models for an unsupported provider", "provider", p)
		}
	}

	modelRouter := router.New(reg, factory, router.DefaultConfig(), logger)
	modelRouter.AttachMetrics(metrics.New())

	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		tracer, err := tracing.NewTracer(tracing.Config{
			ServiceName:    "modelrouter",
			ServiceVersion: "1.0.0",
			JaegerEndpoint: endpoint,
			Environment:    os.Getenv("ENVIRONMENT"),
		})
		if err != nil {
			logger.Warn("failed to create tracer, tracing disabled", "error", err)
		} else {
			modelRouter.AttachTracer(tracer)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tracer.Shutdown(ctx)
			}()
		}
	}

	accountingManager, err := accounting.NewManager(accounting.Config{
		UseSQLite: os.Getenv("MODELROUTER_DB") != "",
		DBPath:    os.Getenv("MODELROUTER_DB"),
	})
	if err != nil {
		logger.Warn("failed to create accounting manager, accounting disabled", "error", err)
		accountingManager = nil
	} else {
		modelRouter.AttachAccounting(accountingManager)
		defer accountingManager.Close()
	}

	cacheManager, err := cache.NewCacheManager(cache.DefaultCacheConfig())
	if err != nil {
		logger.Warn("failed to create cache manager, caching disabled", "error", err)
		cacheManager = nil
	} else {
		defer cacheManager.Close()
	}

	server := httpserver.NewServer(port, modelRouter, accountingManager, cacheManager, logger.GetSlog())

	logger.Info("starting model router service",
		"port", port,
		"models", reg.GetTotalModels(),
		"providers", reg.GetAllProviders())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
}
