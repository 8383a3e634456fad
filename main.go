package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/food-delivery/broker"
	"github.com/yeremiapane/food-delivery/config"
	"github.com/yeremiapane/food-delivery/database"
	"github.com/yeremiapane/food-delivery/hub"
	"github.com/yeremiapane/food-delivery/router"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Invalid configuration: %v", err)
	}
	utils.InitLogger(cfg.LogLevel)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}

	rdb, err := config.InitRedis(ctx, cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to Redis: %v", err)
	}

	issuer := utils.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL)

	var store services.CredentialStore
	var janitor *services.SessionJanitor
	if rdb != nil {
		store = services.NewRedisCredentialStore(rdb)
	} else {
		sqlStore := services.NewSQLCredentialStore(db)
		store = sqlStore
		janitor = services.NewSessionJanitor(sqlStore, cfg.SessionGCInterval)
	}

	authn := services.NewSessionAuthenticator(issuer, store)
	liveHub := hub.New(authn, hub.Options{RevalidateInterval: cfg.WSRevalidateInterval})

	var pusher services.LivePusher = liveHub
	if rdb != nil {
		relay := hub.NewRedisRelay(rdb, liveHub)
		pusher = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				utils.ErrorLogger.Printf("Notification relay stopped: %v", err)
			}
		}()
	}

	go func() {
		if err := store.WatchRevocations(ctx, liveHub.HandleRevocation); err != nil {
			utils.ErrorLogger.Printf("Revocation watcher stopped: %v", err)
		}
	}()

	notifications := services.NewNotificationService(db, pusher)
	publisher := services.NewStatusEventPublisher()
	publisher.Subscribe("notifications", notifications)

	if cfg.AMQPURL != "" {
		sink, err := broker.Dial(cfg.AMQPURL)
		if err != nil {
			utils.ErrorLogger.Printf("AMQP sink disabled: %v", err)
		} else {
			defer sink.Close()
			queued := services.NewAsyncSubscriber("amqp", sink, cfg.EventQueueSize, 5*time.Second)
			queued.Start()
			defer queued.Stop()
			publisher.Subscribe("amqp", queued)
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := broker.DialKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			utils.ErrorLogger.Printf("Kafka sink disabled: %v", err)
		} else {
			defer sink.Close()
			queued := services.NewAsyncSubscriber("kafka", sink, cfg.EventQueueSize, 5*time.Second)
			queued.Start()
			defer queued.Stop()
			publisher.Subscribe("kafka", queued)
		}
	}

	if janitor == nil {
		janitor = services.NewSessionJanitor(nil, cfg.SessionGCInterval)
	}
	janitor.Notifications = notifications
	janitor.NotificationMaxAge = cfg.NotificationMaxAge
	janitor.Start()
	defer janitor.Stop()

	r := router.SetupRouter(router.Deps{
		DB:            db,
		Issuer:        issuer,
		Store:         store,
		Orders:        services.NewOrderService(db, publisher),
		Notifications: notifications,
		Hub:           liveHub,
		AllowedOrigin: cfg.AllowedOrigin,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("Graceful shutdown failed: %v", err)
	}
}
