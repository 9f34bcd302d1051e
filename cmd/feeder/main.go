package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/goldwatch/goldwatch/cmd/feeder/internal/feeder"
	"github.com/goldwatch/goldwatch/pkg/config"
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

	// Ensure the ingestion topic exists before producing.
	creator := feeder.NewTopicCreator(logger, &feeder.RealKafkaDialer{Dialer: kafka.DefaultDialer}, feeder.RealClock{})
	if err := creator.Ensure(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
		logger.Warn("Topic bootstrap incomplete, producing may fail until it exists", zap.Error(err))
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	var source feeder.Source
	if cfg.Feeder.APIURL != "" {
		logger.Info("Feeding from vendor API", zap.String("url", cfg.Feeder.APIURL))
		source = feeder.NewAPIFetcher(cfg.Feeder.APIURL)
	} else {
		logger.Info("No API URL configured, running the price simulator")
		rnd := feeder.RealRand{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
		source = feeder.NewSimulator(rnd, feeder.RealClock{})
	}

	f := feeder.New(logger, source, writer, cfg.Feeder.Interval)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go f.Run(ctx)

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
