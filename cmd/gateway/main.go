package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gobwas/ws"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/cmd/gateway/internal/gateway"
	"github.com/goldwatch/goldwatch/cmd/gateway/internal/httpapi"
	"github.com/goldwatch/goldwatch/cmd/gateway/internal/hub"
	"github.com/goldwatch/goldwatch/pkg/bus"
	"github.com/goldwatch/goldwatch/pkg/cache"
	"github.com/goldwatch/goldwatch/pkg/config"
	"github.com/goldwatch/goldwatch/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to open record store", zap.Error(err))
	}

	reader := cache.NewReader(cache.NewRedis(rdb), st, logger)
	wsHub := hub.NewHub(reader, logger)

	eventBus := bus.NewRedis(rdb, bus.ChannelBroadcast)
	ctx, cancel := context.WithCancel(context.Background())
	go eventBus.Listen(ctx, func(channel string, payload []byte) {
		wsHub.HandleUpdate(payload)
	})

	producer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	mux := http.NewServeMux()
	httpapi.NewHandler(reader, producer, logger).Routes(mux)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		gateway.NewClient(conn, wsHub, logger).Start()
	})

	srv := &http.Server{Addr: cfg.App.Port, Handler: mux}

	go func() {
		logger.Info("Gateway started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutdown signal received, stopping gateway...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	if err := eventBus.Close(); err != nil {
		logger.Error("Error closing event bus", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		logger.Error("Error closing producer", zap.Error(err))
	}
	if err := st.Close(); err != nil {
		logger.Error("Error closing store", zap.Error(err))
	}
	rdb.Close()

	logger.Info("Gateway exited cleanly")
}
