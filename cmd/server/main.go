package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pinkchat/backend/pkg/config"
	"pinkchat/backend/pkg/di"
	"pinkchat/backend/pkg/health"
	"pinkchat/backend/pkg/logger"
	"pinkchat/backend/pkg/router"
)

func main() {
	cfg := config.New()

	log := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "pinkchat-relay",
	})
	logger.SetGlobal(log)

	log.Info("Starting relay", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.New(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	container.Start(ctx)

	r := router.New(container)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "HTTP server failed")
			stop()
		}
	}()

	grpcServer := health.NewGRPCServer(container.Health)
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			log.LogError(err, "gRPC listener failed", "port", cfg.Server.GRPCPort)
			return
		}
		log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.LogError(err, "gRPC server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "HTTP server forced to shutdown")
	}
	grpcServer.GracefulStop()

	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Shutdown incomplete")
	}

	log.Info("Relay exited gracefully")
}
