package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"teamchat-service/internal/auth"
	"teamchat-service/internal/config"
	"teamchat-service/internal/db"
	"teamchat-service/internal/executor"
	"teamchat-service/internal/handlers"
	"teamchat-service/internal/membership"
	"teamchat-service/internal/middleware"
	"teamchat-service/internal/observability"
	"teamchat-service/internal/presence"
	"teamchat-service/internal/rabbitmq"
	"teamchat-service/internal/repositories"
	"teamchat-service/internal/repositories/memory"
	"teamchat-service/internal/telemetry"
	"teamchat-service/internal/ws"
)

const (
	exitConfig  = 2
	exitStartup = 1
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(exitConfig)
	}

	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", "error", err)
		os.Exit(exitStartup)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment, log)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	repos, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("publisher close failed", "error", err)
		}
	}()
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, log)

	pool := executor.NewPool(cfg.GatewayConcurrency)
	hub := ws.NewHub(log)
	resolver := membership.NewResolver(repos.Teams, repos.Channels, pool, log)
	tracker := presence.NewTracker(repos.Presences, hub, pool, log)
	router := handlers.NewRouter(repos, hub, tracker, pool, audit, cfg.HistoryLimit, log)
	wsHandler := ws.NewHandler(hub, resolver, tracker, router, ws.HandlerConfig{
		SendBuffer:      cfg.SendBuffer,
		MaxMessageBytes: cfg.MaxMessageBytes,
		PingInterval:    cfg.PingInterval,
	}, log)
	authenticator := auth.NewAuthenticator(auth.NewVerifier(cfg.JWTSigningKey), repos.Users, log)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware(cfg.ServiceName))
	engine.Use(observability.HTTPMetricsMiddleware())
	engine.Use(middleware.RequestID())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	wsRoutes := engine.Group("/ws", middleware.Principal(authenticator))
	wsRoutes.GET("/chat/", wsHandler.Handle)
	wsRoutes.GET("/team/:team_id/", wsHandler.Handle)
	wsRoutes.GET("/channel/:channel_id/", wsHandler.Handle)
	wsRoutes.GET("/dm/:user_id/", wsHandler.Handle)

	handlers.RegisterDebugRoutes(engine, audit, hub, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", srv.Addr, "store", cfg.StoreDriver, "gateway_concurrency", pool.Size())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		closed := hub.CloseAll(websocket.CloseGoingAway, "server shutdown")
		log.Info("websocket sessions closed", "count", closed)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repositories.Set, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return memory.New().Set(), func() {}, nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN, cfg.DBMaxOpen, log)
	if err != nil {
		return repositories.Set{}, nil, err
	}
	return repositories.NewPostgres(database), func() {
		if err := database.Close(); err != nil {
			log.Warn("database close failed", "error", err)
		}
	}, nil
}
