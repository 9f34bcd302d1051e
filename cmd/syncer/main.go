package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/cmd/syncer/internal/syncer"
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

	snapshots := cache.NewRedis(rdb)
	eventBus := bus.NewRedis(rdb, bus.ChannelPersist)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 200,
		MaxBytes: 10e6,
		MaxWait:  200 * time.Millisecond,
		// Auto-commit is fine here: redelivery is absorbed by the
		// persister's re-check against the store.
		CommitInterval:    1,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    10 * time.Second,
	})

	publisher := syncer.NewPublisher(st, eventBus, logger)
	persister := syncer.NewPersister(st, snapshots, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		logger.Info("Syncer publisher started", zap.String("topic", cfg.Kafka.Topic))
		publisher.Run(ctx, reader)
	}()

	go func() {
		defer wg.Done()
		logger.Info("Syncer persister started", zap.String("channel", bus.ChannelPersist))
		eventBus.Listen(ctx, func(channel string, payload []byte) {
			// Background context so a shutdown signal cannot abandon a
			// half-applied record set.
			persister.HandleUpdate(context.Background(), payload)
		})
	}()

	<-sigChan
	logger.Info("Shutdown signal received, stopping syncer...")
	cancel()

	logger.Info("Closing Kafka Reader...")
	if err := reader.Close(); err != nil {
		logger.Error("Error closing reader", zap.Error(err))
	}

	logger.Info("Closing event bus...")
	if err := eventBus.Close(); err != nil {
		logger.Error("Error closing event bus", zap.Error(err))
	}

	wg.Wait()

	logger.Info("Closing record store...")
	if err := st.Close(); err != nil {
		logger.Error("Error closing store", zap.Error(err))
	}

	logger.Info("Closing Redis...")
	rdb.Close()

	logger.Info("Syncer exited cleanly")
}
