package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/cafe-order-core/internal/notification/application"
	notifykafka "github.com/dmehra2102/cafe-order-core/internal/notification/infrastructure/kafka"
	"github.com/dmehra2102/cafe-order-core/internal/notification/infrastructure/logsink"
	"github.com/dmehra2102/cafe-order-core/internal/notification/infrastructure/rabbitmq"
	"github.com/dmehra2102/cafe-order-core/pkg/config"
	"github.com/dmehra2102/cafe-order-core/pkg/idempotency"
	"github.com/dmehra2102/cafe-order-core/pkg/logging"
	"github.com/dmehra2102/cafe-order-core/pkg/shutdown"
	"github.com/dmehra2102/cafe-order-core/pkg/tracing"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load("notification-service", *configPath)
	if err != nil {
		logging.New("notification-service", "info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Service, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Service, cfg.Tracing.Endpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	idem := idempotency.NewStore(redisDB, cfg.Redis.TTL)

	kitchen, err := rabbitmq.Dial(log, cfg.RabbitMQ.URL, cfg.RabbitMQ.KitchenExchange, cfg.RabbitMQ.KitchenQueue)
	if err != nil {
		log.Error("rabbitmq connect failed", "err", err)
		os.Exit(1)
	}

	svc := application.NewService(log, kitchen, logsink.NewNotifier(log))
	reader := notifykafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.InTopic, cfg.Kafka.ConsumerGroup)
	consumer := notifykafka.NewConsumer(log, reader, svc, idem)

	log.Info("notification-service consuming", "topic", cfg.Kafka.InTopic, "group", cfg.Kafka.ConsumerGroup)
	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped", "err", err)
	}

	if err := shutdown.Drain(5*time.Second,
		func(context.Context) error { return kitchen.Close() },
		func(context.Context) error { return redisDB.Close() },
		tp.Shutdown,
	); err != nil {
		log.Warn("shutdown incomplete", "err", err)
	}
	log.Info("notification-service shutdown complete")
}
