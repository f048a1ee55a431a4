package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/config"
	"github.com/ewallet/transfer-saga/internal/dispatcher"
	"github.com/ewallet/transfer-saga/internal/logger"
	"github.com/ewallet/transfer-saga/internal/repo"
	"github.com/ewallet/transfer-saga/internal/saga"
	"github.com/ewallet/transfer-saga/internal/stream"
)

// The worker tails the change topic and runs sagas: Kafka reader →
// dispatcher filter/projection → orchestrator.
func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}

	repository := repo.NewRepository(gdb, rdb, kw, log)

	guard := saga.NewBalanceGuard(repository, log)
	debiter := saga.NewDebitExecutor(repository, log)
	comp := saga.NewLedgerCompensator(repository, log)
	orch := saga.NewOrchestrator(guard, debiter, comp, repository, saga.RetryPolicy{
		MaxRetries:   cfg.Saga.MaxRetries,
		BaseInterval: cfg.Saga.BackoffBase,
		Multiplier:   cfg.Saga.BackoffRatio,
	}, cfg.Saga.Timeout, log)

	disp := dispatcher.New(orch, log)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer reader.Close()

	log.Info("saga worker started")
	ctx := context.Background()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Errorf("read message: %v", err)
			continue
		}
		ev, err := stream.Decode(msg.Value)
		if err != nil {
			log.Errorf("decode change event at offset %d: %v", msg.Offset, err)
			continue
		}
		disp.Handle(ev)
	}
}
