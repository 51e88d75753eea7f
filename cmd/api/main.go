package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/dropcart/internal/api"
	"github.com/timmy/dropcart/internal/app"
	"github.com/timmy/dropcart/internal/config"
	"github.com/timmy/dropcart/internal/logger"
)

func main() {
	// Initialize logger from LOG_* environment variables
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize services")
	}
	defer func() {
		if err := application.Close(); err != nil {
			appLogger.WithError(err).Warn("Failed to release resources")
		}
	}()

	router := api.SetupRouter(api.Dependencies{
		Engine:   application.Engine,
		Resolver: application.Resolver,
		Rules:    application.Rules,
		Pricing:  application.Pricing,
		Checks:   application.Checks,
		Logger:   appLogger,
	}, cfg.Server)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":           cfg.Server.Port,
			"mode":           cfg.Server.Mode,
			"catalog_driver": cfg.Catalog.Driver,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
