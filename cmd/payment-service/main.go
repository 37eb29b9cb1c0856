package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-payments/internal/adapter"
	"ms-payments/internal/api"
	"ms-payments/internal/config"
	"ms-payments/internal/gateway"
	"ms-payments/internal/gateway/sandbox"
	"ms-payments/internal/gateway/stripegw"
	"ms-payments/internal/kafka"
	"ms-payments/internal/logger"
	"ms-payments/internal/orderstate"
	"ms-payments/internal/session"
	"ms-payments/internal/settings"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	// --- PostgreSQL ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if err := orderstate.Migrate(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	defer redisClient.Close()

	// --- Kafka ---
	var events adapter.EventPublisher
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic setup failed, continuing without broker guarantees: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		events = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, payment events will not be published")
	}

	// --- Shared collaborators ---
	ordersDB := &orderstate.DB{Bun: bunDB}
	mailer := orderstate.NewSMTPMailer(cfg.Email, log)
	orderGateway := orderstate.NewGateway(ordersDB, mailer, log)
	nonceStore := session.NewRedisStore(redisClient, log)
	settingsStore := settings.NewStore(bunDB, log)

	// Shared so sandbox transactions survive across requests.
	sandboxClient := sandbox.New()

	// One adapter per event, built from that event's provider settings.
	newAdapter := func(ctx context.Context, eventID string, notifier adapter.Notifier) (*adapter.Adapter, error) {
		providerCfg, err := settingsStore.Get(ctx, eventID)
		if err != nil {
			return nil, err
		}

		var client gateway.Client
		if providerCfg.Environment == string(gateway.EnvironmentSandbox) {
			client = sandboxClient
		} else {
			client, err = stripegw.New(providerCfg.PrivateKey, providerCfg.Currency, log)
			if err != nil {
				return nil, err
			}
		}

		return adapter.New(adapter.Deps{
			Gateway:      client,
			Orders:       orderGateway,
			Actions:      orderGateway,
			Sessions:     nonceStore,
			Notifier:     notifier,
			Availability: orderGateway,
			Events:       events,
			Logger:       log,
		}), nil
	}

	handler := &api.Handler{
		Orders:     ordersDB,
		NewAdapter: newAdapter,
		Logger:     log,
	}

	// --- Router ---
	r := chi.NewRouter()
	handler.Routes(r)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Payment service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received, cleaning up")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", fmt.Sprintf("Server forced to shutdown: %v", err))
	}
	log.Info("SERVER", "Server exited gracefully")
}
