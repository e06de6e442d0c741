package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/TomasB/geoalloc/internal/config"
	"github.com/TomasB/geoalloc/internal/data"
	"github.com/TomasB/geoalloc/internal/geofence"
	"github.com/TomasB/geoalloc/internal/handler/allocation"
	"github.com/TomasB/geoalloc/internal/handler/check"
	grpchandler "github.com/TomasB/geoalloc/internal/handler/grpc"
	"github.com/TomasB/geoalloc/internal/handler/health"
	"github.com/TomasB/geoalloc/internal/lookup"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout = 30 * time.Second
	requestIDHeader = "X-Request-ID"
)

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer := setupLogger(cfg, os.Stdout)
	defer closer.Close()

	slog.Info("service starting", "log_level", cfg.LogLevel)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fallback, err := openFallback(cfg)
	if err != nil {
		return err
	}
	if fallback != nil {
		defer fallback.Close()
	}

	return serve(ctx, cfg, logger, store, fallback)
}

// serve runs the HTTP server, the gRPC server and the optional dataset
// watcher until ctx is cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, store *data.AllocationStore, fallback data.LocationLookup) error {
	svc := lookup.NewService(store)
	checker := geofence.NewChecker(svc, fallback)

	// Set Gin mode based on log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(logger, svc, store, checker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcLogger(logger)))
	grpchandler.Register(grpcSrv, grpchandler.NewHandler(svc, checker))
	healthSrv := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(grpchandler.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %s: %w", cfg.GRPCPort, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("grpc server started", "port", cfg.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if cfg.Dataset.Watch {
		watcher, err := data.WatchDataset(cfg.Dataset.Path, store, data.WithReloadFunc(func(_ int, err error) {
			if err == nil {
				stats := store.Stats()
				slog.Info("dataset coverage", "records", stats.Records, "merged_blocks", stats.MergedBlocks)
			}
		}))
		if err != nil {
			grpcSrv.Stop()
			srv.Close()
			return err
		}
		slog.Info("watching dataset", "path", cfg.Dataset.Path)
		g.Go(func() error { return watcher.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("service shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()

		err := srv.Shutdown(shutdownCtx)
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcSrv.Stop()
		}
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("service stopped")
	return err
}

// newRouter registers every HTTP endpoint on a new gin engine.
func newRouter(logger *slog.Logger, svc *lookup.Service, store *data.AllocationStore, checker *geofence.Checker) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	healthHandler := health.NewHandler(store)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	allocHandler := allocation.NewHandler(svc, store)
	checkHandler := check.NewHandler(checker)
	api := router.Group("/api/v1")
	{
		api.GET("/lookup", allocHandler.Lookup)
		api.GET("/stats", allocHandler.Stats)
		api.POST("/check", checkHandler.Check)
	}

	return router
}

// ginLogger creates a Gin middleware that logs using slog and tags each
// request with an X-Request-ID, reusing the caller's when present.
func ginLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		// Process request
		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		attrs := []any{
			"request_id", requestID,
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
		}

		if len(c.Errors) > 0 {
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		} else if statusCode >= 500 {
			logger.Error("request completed", attrs...)
		} else if statusCode >= 400 {
			logger.Warn("request completed", attrs...)
		} else {
			logger.Info("request completed", attrs...)
		}
	}
}

// grpcLogger logs every unary call with its status.
func grpcLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		attrs := []any{
			"method", info.FullMethod,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("rpc completed", append(attrs, "error", err)...)
		} else {
			logger.Info("rpc completed", attrs...)
		}
		return resp, err
	}
}
