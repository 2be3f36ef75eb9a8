package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-chat/internal/auth"
	"dm-chat/internal/broker"
	"dm-chat/internal/config"
	"dm-chat/internal/db"
	"dm-chat/internal/handlers"
	"dm-chat/internal/middleware"
	"dm-chat/internal/observability"
	"dm-chat/internal/repositories"
	"dm-chat/internal/ws"
)

func main() {
	configPath := flag.String("config", os.Getenv("CHAT_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("invalid server config: %v", err)
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Tracing.OTLPEndpoint, cfg.Tracing.ServiceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(ctx, database); err != nil {
		log.Fatalf("failed to migrate db: %v", err)
	}

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hub := ws.NewHub(logger)

	events := broker.New(ctx, broker.Options{
		Kind:      cfg.Broker.Kind,
		RedisAddr: cfg.Broker.RedisAddr,
		AMQPURL:   cfg.Broker.AMQPURL,
		Exchange:  cfg.Broker.Exchange,
	}, hub, logger)
	defer events.Close()
	logger.Info("broker ready", "mode", broker.Mode(events), "fallback_reason", broker.FallbackReason(events))
	go func() {
		if err := events.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("broker stopped", "error", err)
		}
	}()

	issuer := auth.NewJWTIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	authMiddleware := middleware.AuthMiddleware(issuer)

	authHandler := handlers.NewAuthHandler(userRepo, issuer, int(cfg.Auth.TokenTTL.Seconds()), logger)
	messageHandler := handlers.NewMessageHandler(userRepo, messageRepo, events, logger)
	pushHandler := ws.NewPushHandler(hub, issuer)

	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.RequestLogMiddleware(logger))
	router.Use(observability.HTTPMetricsMiddleware())

	authHandler.Register(router)
	messageHandler.Register(router, authMiddleware)
	router.GET("/ws", pushHandler.Handle)

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "broker": broker.Mode(events)})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("chat service listening", "addr", cfg.Server.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
