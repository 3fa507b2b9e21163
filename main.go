package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chat-gateway/internal/archive"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
	"chat-gateway/internal/db"
	"chat-gateway/internal/grpcserver"
	"chat-gateway/internal/handlers"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/rabbitmq"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/telemetry"
	"chat-gateway/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("chat-gateway: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Env, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	database, err := db.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer database.Close()

	store, closeStore, err := newPresenceStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer func() { _ = publisher.Close() }()
	observability.SetPublisher(publisher)
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	audit := telemetry.NewAuditEmitter(publisher, "audit_log", cfg.ServiceName, cfg.Env, logger)

	messageRepo := repositories.NewMessageRepo(database)
	membershipRepo := repositories.NewMembershipRepo(database)
	archiveRepo := repositories.NewArchiveRepo(database)

	hub := ws.NewHub(logger)
	engine := presence.NewEngine(store, membershipRepo, hub, cfg.Presence.IdleThreshold, presence.WithLogger(logger))
	reset, err := engine.ResetAll(ctx)
	if err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}
	logger.Info("presence reset", zap.Int("users", reset))

	hub.OnFirstConnect(func(userID int64) {
		if err := engine.Connected(context.Background(), userID); err != nil {
			logger.Warn("presence connect failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	})
	hub.OnLastDisconnect(func(userID int64) {
		if err := engine.Disconnected(context.Background(), userID); err != nil {
			logger.Warn("presence disconnect failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	})

	pipeline := chat.NewPipeline(messageRepo, hub, engine, logger)
	router := ws.NewRouter(membershipRepo, messageRepo, hub, pipeline, cfg.WS.SnapshotSize, logger)
	gateway := ws.NewGateway(hub, router, pipeline, engine, audit, ws.GatewayConfig{
		SendBuffer:   cfg.WS.SendBuffer,
		WriteTimeout: cfg.WS.WriteTimeout,
		PongTimeout:  cfg.WS.PongTimeout,
	}, logger)
	indexer := archive.NewIndexer(archiveRepo, logger)

	historyHandler := handlers.NewHistoryHandler(membershipRepo, messageRepo)
	archiveHandler := handlers.NewArchiveHandler(membershipRepo, indexer, audit)
	presenceHandler := handlers.NewPresenceHandler(engine)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	engineHTTP := gin.New()
	engineHTTP.Use(gin.Recovery())
	engineHTTP.Use(otelgin.Middleware(cfg.ServiceName))
	engineHTTP.Use(observability.GinLogger(logger))
	engineHTTP.Use(observability.HTTPMetricsMiddleware())

	engineHTTP.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterHealthRoutes(engineHTTP, database.PingContext)

	authed := engineHTTP.Group("/", middleware.AuthMiddleware(cfg.JWT.Secret))
	authed.GET("/ws/:type/:id", gateway.Handle)
	authed.GET("/rooms/:type/:id/messages", historyHandler.GetMessages)
	authed.GET("/archives/tags", archiveHandler.Autocomplete)
	authed.POST("/archives", archiveHandler.Create)
	authed.GET("/archives/:id", archiveHandler.Get)
	authed.DELETE("/archives/:id", archiveHandler.Delete)
	authed.GET("/presence/:user_id", presenceHandler.Get)
	authed.PUT("/presence/status", presenceHandler.SetStatus)
	authed.POST("/presence/heartbeat", presenceHandler.Heartbeat)
	handlers.RegisterDebugRoutes(authed, audit, hub, cfg.Env == config.EnvDevelopment)

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           engineHTTP,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := grpcserver.New(cfg.ServiceName, logger)
	grpcListener, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	scheduler := &presence.Scheduler{Engine: engine, Period: cfg.Presence.SweepInterval, Logger: logger}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error { return grpcServer.Serve(grpcListener) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		gateway.Shutdown()
		grpcServer.Shutdown(shutdownCtx)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func newPresenceStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (presence.Store, func(), error) {
	if cfg.Presence.Backend != config.PresenceBackendRedis {
		logger.Info("presence store ready", zap.String("backend", config.PresenceBackendMemory))
		return presence.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("presence store ready", zap.String("backend", config.PresenceBackendRedis), zap.String("addr", cfg.Redis.Addr))
	return presence.NewRedisStore(client, "presence"), func() { _ = client.Close() }, nil
}
