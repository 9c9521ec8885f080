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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"product-discovery-service/internal/analytics"
	"product-discovery-service/internal/api"
	"product-discovery-service/internal/catalog"
	"product-discovery-service/internal/config"
	"product-discovery-service/internal/discovery"
	"product-discovery-service/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Error loading configuration")
	}
	logger := newLogger(cfg)
	logger.WithFields(logrus.Fields{"app_env": cfg.AppEnv, "store_driver": cfg.Store.Driver}).Info("Starting service...")

	// --- Catalog Store ---
	backend, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize catalog store")
	}

	// --- Services ---
	tracker := analytics.NewTracker(backend, backend, logger)
	dispatcher := analytics.NewDispatcher(tracker, analytics.Options{
		Workers:      cfg.Analytics.Workers,
		QueueSize:    cfg.Analytics.QueueSize,
		WriteTimeout: cfg.Analytics.WriteTimeout,
	}, logger)
	dispatcher.Start()

	httpAPIHandler := api.NewHTTPHandler(
		discovery.NewEngine(backend, backend, logger),
		discovery.NewCurator(backend, logger),
		tracker,
		catalog.NewService(backend, backend, backend, dispatcher, logger),
		logger,
	)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, cfg, logger)
	httpRouter.Get("/healthz", api.HealthHandler(backend, logger))
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		logger.WithField("port", cfg.HttpServer.Port).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server ListenAndServe error")
		}
		logger.Info("HTTP server has stopped.")
	}()

	// --- Setup & Start gRPC Server ---
	healthCtx, stopHealth := context.WithCancel(context.Background())
	grpcServer, reporter := setupGRPCServer(backend, cfg, logger)
	go reporter.Run(healthCtx)

	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.WithError(err).WithField("port", cfg.GrpcServer.Port).Fatal("Failed to listen for gRPC")
	}
	go func() {
		logger.WithField("port", cfg.GrpcServer.Port).Info("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.WithError(err).Fatal("gRPC server Serve error")
		}
		logger.Info("gRPC server has stopped.")
	}()

	// --- Graceful Shutdown ---
	waitForShutdown(logger, httpServer, grpcServer, stopHealth, dispatcher, backend, cfg.Store.OpTimeout)
	logger.Info("Service shutdown sequence finished.")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Unknown LOG_LEVEL, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// openStore connects the configured backend and prepares its indexes or schema.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store.Backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		s, err := store.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout, logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.Store.OpTimeout)
		defer cancel()
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := store.ConnectPostgres(ctx, cfg.Postgres.DSN(), cfg.Store.OpTimeout, logger)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.Store.OpTimeout)
		defer cancel()
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, err
		}
		return s, nil
	}
	logger.Warn("Using the in-memory catalog store; data is lost on restart")
	return store.NewMemoryStore(), nil
}

func setupBaseMiddleware(router *chi.Mux, cfg *config.Config, logger *logrus.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.HttpServer.RequestTimeout))
	logger.Debug("Base HTTP middleware registered.")
}

func setupGRPCServer(pinger api.Pinger, cfg *config.Config, logger *logrus.Logger) (*grpc.Server, *api.HealthReporter) {
	s := grpc.NewServer()

	// Register gRPC Health Checking Protocol service.
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	logger.Info("gRPC health check service registered.")

	// Enable gRPC server reflection (useful for tools like grpcurl).
	reflection.Register(s)
	logger.Info("gRPC reflection service registered.")

	return s, api.NewHealthReporter(pinger, healthServer, cfg.GrpcServer.HealthInterval, logger)
}

// waitForShutdown blocks until a termination signal, then stops the servers,
// drains pending hits and closes the store, in that order.
func waitForShutdown(
	logger *logrus.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	stopHealth context.CancelFunc,
	dispatcher *analytics.Dispatcher,
	backend store.Backend,
	storeTimeout time.Duration,
) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.WithField("signal", receivedSignal.String()).Info("Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	stopHealth()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server graceful shutdown failed")
	} else {
		logger.Info("HTTP server gracefully shut down.")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down.")
	case <-shutdownCtx.Done():
		logger.WithError(shutdownCtx.Err()).Warn("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	// Requests are done, so no new hits can arrive.
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Analytics dispatcher did not drain in time")
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), storeTimeout)
	defer cancelClose()
	if err := backend.Close(closeCtx); err != nil {
		logger.WithError(err).Warn("Error closing catalog store")
	}
	logger.Info("Graceful shutdown sequence completed.")
}
