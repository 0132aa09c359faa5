package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"conversation-service/internal/auth"
	"conversation-service/internal/cache"
	"conversation-service/internal/chat"
	"conversation-service/internal/config"
	"conversation-service/internal/db"
	"conversation-service/internal/events"
	"conversation-service/internal/handlers"
	"conversation-service/internal/middleware"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/opsgrpc"
	"conversation-service/internal/rabbitmq"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
	"conversation-service/internal/ws"
)

const auditRoutingKey = "audit_logs.conversations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	var users repositories.UserRepository = userRepo
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("profile cache disabled", zap.Error(err))
		} else {
			defer redisCache.Close()
			users = cache.NewCachedUserStore(userRepo, redisCache, cfg.ProfileCacheTTL, logger)
			logger.Info("profile cache enabled", zap.Duration("ttl", cfg.ProfileCacheTTL))
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))

	emitter := events.NewEmitter(publisher, logger)
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Env, logger)

	verifier, closeVerifier, err := newVerifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init credential verifier", zap.Error(err))
	}
	defer closeVerifier()

	service := chat.NewService(conversationRepo, messageRepo, users, emitter, cfg.EmptyConversationWindow, logger)
	hub := ws.NewHub(logger)

	conversationHandler := handlers.NewConversationHandler(service, hub, logger)
	userResource := handlers.NewResource[models.User](users, logger).SelfOnly()
	wsHandler := ws.NewHandler(hub, service, service.Guard(), verifier, emitter, audit, cfg.AllowedOrigins, logger)

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		middleware.Logger(logger),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(verifier)
	guard := middleware.ConversationGuard(service.Guard(), audit)

	conversationHandler.Register(router.Group("/api/chat", authMiddleware), guard)
	userResource.Register(router.Group("/api/users", authMiddleware))
	router.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, authMiddleware, audit, conversationRepo, logger, cfg.Development())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}
	grpcServer := opsgrpc.NewServer(logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	grpcServer.Stop(shutdownCtx)
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Development() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.ServiceName)), nil
}

func newVerifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (auth.Verifier, func(), error) {
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.AuthIssuer, logger)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	}
	return auth.NewHMACVerifier(cfg.JWTSecret, cfg.AuthIssuer), func() {}, nil
}
