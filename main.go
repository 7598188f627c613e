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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/delivery"
	"messaging-service/internal/events"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/push"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/storage/s3"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const (
	serviceName     = "messaging-service"
	auditRoutingKey = "audit.messaging"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.Environment).With().Str("instance_id", cfg.InstanceID).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped")
	}
	log.Info().Msg("service stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.InstanceID)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown tracing")
		}
	}()

	pg, err := db.ConnectPostgres(ctx, cfg.DBDSN, logger.Component(log, "postgres"))
	if err != nil {
		return err
	}
	defer pg.Close()

	mongoClient, mdb, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, logger.Component(log, "mongo"))
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("disconnect mongo")
		}
	}()
	if err := db.EnsureIndexes(ctx, mdb); err != nil {
		return err
	}

	rdb, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	conversations := repositories.NewConversationRepo(mdb)
	messages := repositories.NewMessageRepo(mdb)
	strangerGifts := repositories.NewStrangerGiftRepo(mdb)
	systemMessages := repositories.NewSystemMessageRepo(mdb)
	users := repositories.NewUserRepo(pg)
	relations := repositories.NewRelationshipRepo(pg)
	wallets := repositories.NewWalletRepo(pg)
	stickers := repositories.NewStickerRepo(pg)
	gifts := repositories.NewGiftRepo(pg)
	words := services.NewWordFilter(rdb, repositories.NewForbiddenWordRepo(pg), services.DefaultWordCacheTTL, logger.Component(log, "word_filter"))

	registry := presence.NewRegistry(rdb, cfg.ActiveConversationTTL)
	if n, err := registry.PurgeInstance(ctx, cfg.InstanceID); err != nil {
		log.Warn().Err(err).Msg("purge stale presence")
	} else if n > 0 {
		log.Info().Int("connections", n).Msg("purged stale presence")
	}

	hub := ws.NewHub()
	relay := ws.NewRelay(hub, rdb, cfg.InstanceID, logger.Component(log, "relay"))

	pushPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.PushExchange, logger.Component(log, "amqp_push"))
	defer pushPublisher.Close()
	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange, logger.Component(log, "amqp_audit"))
	defer auditPublisher.Close()
	log.Info().
		Str("push_mode", rabbitmq.PublisherMode(pushPublisher)).
		Str("push_noop_reason", rabbitmq.PublisherNoopReason(pushPublisher)).
		Msg("push publisher ready")

	audit := telemetry.NewAuditEmitter(auditPublisher, telemetry.AuditConfig{
		RoutingKey:  auditRoutingKey,
		Service:     serviceName,
		Environment: cfg.Environment,
		InstanceID:  cfg.InstanceID,
	}, logger.Component(log, "audit"))

	var domainEvents events.Publisher = events.NoopPublisher{}
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		domainEvents = events.NewKafkaPublisher(brokers, cfg.KafkaEventsTopic, logger.Component(log, "kafka"))
	}
	defer domainEvents.Close()

	media, err := s3.New(s3.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.S3Bucket,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		return err
	}
	if err := media.EnsureBucket(ctx); err != nil {
		log.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("ensure bucket")
	}

	dispatcher := delivery.NewDispatcher(registry, relay, users, push.NewAMQPGateway(pushPublisher, logger.Component(log, "push")),
		delivery.Options{}, logger.Component(log, "delivery"))

	wallet := services.NewWalletService(wallets, dispatcher, audit, logger.Component(log, "wallet"))
	ledger := services.NewStrangerGiftService(strangerGifts, gifts, users, dispatcher, domainEvents, logger.Component(log, "stranger_gifts"))
	system := services.NewSystemMessageService(systemMessages, dispatcher, logger.Component(log, "system_messages"))
	chat := services.NewChatService(services.ChatDeps{
		Conversations: conversations,
		Messages:      messages,
		Stickers:      stickers,
		Users:         users,
		Relations:     relations,
		Wallet:        wallet,
		Presence:      registry,
		Dispatcher:    dispatcher,
		Ledger:        ledger,
		Media:         media,
		Events:        domainEvents,
		Filter:        words,
	}, cfg.StrangerMessageCost, logger.Component(log, "chat"))
	cleaner := services.NewMediaCleaner(messages, media, domainEvents, cfg.MediaRetention, logger.Component(log, "media_cleaner"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handlers.RegisterValidators(); err != nil {
		return err
	}

	verifier := middleware.NewJWTVerifier(cfg.JWTSecret)
	wsHandler := ws.NewHandler(hub, registry, relay, chat, verifier, domainEvents, cfg.InstanceID, logger.Component(log, "ws"))

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName),
		observability.HTTPMetricsMiddleware(),
		middleware.RequestContext(log),
	)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		online, err := registry.OnlineCount(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "presence unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "localConnections": hub.Count(), "onlineUsers": online})
	})
	router.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, handlers.DebugDeps{Audit: audit, Presence: registry}, cfg.DebugRoutes)
	handlers.Routes{
		Chat:     handlers.NewChatHandler(chat),
		Inbox:    handlers.NewInboxHandler(system, ledger),
		Admin:    handlers.NewAdminHandler(chat, system, cleaner, audit),
		Internal: handlers.NewInternalHandler(chat),
	}.Register(router, middleware.AuthMiddleware(verifier))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		cleaner.Run(gctx, cfg.CleanupInterval)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return err
		}
		log.Info().Str("addr", lis.Addr().String()).Msg("grpc health server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		hub.CloseAll("server shutting down")
		if _, perr := registry.PurgeInstance(shutdownCtx, cfg.InstanceID); perr != nil {
			log.Warn().Err(perr).Msg("purge presence on shutdown")
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
