package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront-service/internal/api"
	"storefront-service/internal/config"
	"storefront-service/internal/localstore"
	"storefront-service/internal/logging"
	"storefront-service/internal/store"
)

const (
	defaultAppName = "StorefrontService"
	healthInterval = 15 * time.Second
)

func main() {
	// .env is optional; the environment may be set some other way.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("error loading configuration")
	}
	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, defaultAppName)
	if err != nil {
		logrus.WithError(err).Fatal("error configuring logger")
	}
	if envErr != nil {
		logger.Debug(".env file not found, relying on system environment variables")
	}
	logger.WithFields(logrus.Fields{"app_env": cfg.AppEnv, "log_level": cfg.LogLevel}).Info("configuration loaded")

	// --- Database Connection ---
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database connection")
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLife)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		logger.WithError(err).Fatal("failed to ping database")
	}
	logger.Info("database connection established")
	dbStore := store.NewPostgresStore(db, logger)

	state, err := localstore.NewFileStore(cfg.State.Dir)
	if err != nil {
		logger.WithError(err).Fatal("failed to open local state directory")
	}

	// --- Initialize API Handlers ---
	httpAPIHandler := api.NewHTTPHandler(api.Dependencies{
		Categories:      dbStore,
		Products:        dbStore,
		Wishlists:       dbStore,
		Orders:          dbStore,
		Reviews:         dbStore,
		Settings:        dbStore,
		LocalState:      state,
		Auth:            api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminRole, logger),
		DefaultMaxPrice: decimal.NewFromInt(cfg.Catalog.DefaultMaxPrice),
		SessionTTL:      cfg.State.IdleTTL,
		Log:             logger,
	})

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	httpAPIHandler.RunSweepers(bgCtx, cfg.State.Sweep)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, logger, cfg.HttpServer.RequestTimeout)
	registerHealthCheck(httpRouter, logger, dbStore, httpAPIHandler)
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
		logger.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Health Server ---
	healthServer := health.NewServer()
	grpcServer := setupGRPCServer(logger, healthServer)
	go watchDatabase(bgCtx, logger, dbStore, healthServer)

	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		logger.WithError(err).WithField("port", cfg.GrpcServer.Port).Fatal("failed to listen for gRPC")
	}

	go func() {
		logger.WithField("port", cfg.GrpcServer.Port).Info("gRPC server listening")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.WithError(err).Fatal("gRPC server Serve error")
		}
		logger.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(logger, httpServer, grpcServer, healthServer, dbStore, stopBackground, shutdownComplete)

	<-shutdownComplete
	logger.Info("service shutdown sequence finished")
}

func setupBaseMiddleware(router *chi.Mux, logger logrus.FieldLogger, timeout time.Duration) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))
	logger.Debug("base HTTP middleware registered")
}

func registerHealthCheck(router *chi.Mux, logger logrus.FieldLogger, dbStore *store.PostgresStore, handler *api.HTTPHandler) {
	healthPath := "/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := dbStore.Ping(ctx); err != nil {
			dbStatus = "unhealthy"
			logger.WithError(err).Warn("health check DB ping failed")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // payload carries the detailed status
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
			"sessions":    handler.SessionCounts(),
		})
	})
	logger.WithField("path", healthPath).Debug("HTTP health check registered")
}

func setupGRPCServer(logger logrus.FieldLogger, healthServer *health.Server) *grpc.Server {
	s := grpc.NewServer()

	grpc_health_v1.RegisterHealthServer(s, healthServer)
	logger.Debug("gRPC health check service registered")

	reflection.Register(s)
	logger.Debug("gRPC reflection service registered")

	return s
}

// watchDatabase reports the database as the overall serving status of the
// gRPC health service.
func watchDatabase(ctx context.Context, logger logrus.FieldLogger, dbStore *store.PostgresStore, healthServer *health.Server) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	last := grpc_health_v1.HealthCheckResponse_SERVING
	healthServer.SetServingStatus("", last)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := dbStore.Ping(pingCtx)
		cancel()

		status := grpc_health_v1.HealthCheckResponse_SERVING
		if err != nil {
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			logger.WithError(err).WithField("status", status.String()).Warn("database health changed")
			last = status
		}
		healthServer.SetServingStatus("", status)
	}
}

func waitForShutdown(
	logger logrus.FieldLogger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	dbStore *store.PostgresStore,
	stopBackground context.CancelFunc,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	logger.WithField("signal", receivedSignal.String()).Info("starting graceful shutdown")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	healthServer.Shutdown()
	stopBackground()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server graceful shutdown failed")
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.WithError(shutdownCtx.Err()).Warn("gRPC server graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}

	if err := dbStore.Close(); err != nil {
		logger.WithError(err).Warn("error closing database connection")
	}
	logger.Info("graceful shutdown sequence completed")
}
