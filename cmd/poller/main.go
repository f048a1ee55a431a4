package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/config"
	"github.com/ewallet/transfer-saga/internal/logger"
	"github.com/ewallet/transfer-saga/internal/repo"
)

// The poller is the ledger's change-stream tail: unpublished change events go
// to Kafka in feed order, keyed by record key, then get marked published.
// Crash between publish and mark re-publishes the event; the stream is
// at-least-once by design.
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

	ticker := time.NewTicker(cfg.Poller.Interval)
	defer ticker.Stop()

	log.Info("change-stream poller started")
	for range ticker.C {
		ctx := context.Background()
		events, err := repository.PollChangeEvents(ctx, cfg.Poller.BatchSize)
		if err != nil {
			log.Errorf("poll change events: %v", err)
			continue
		}
		for _, evt := range events {
			if err := repository.PublishChange(ctx, evt); err != nil {
				log.Errorf("publish id=%d: %v", evt.ID, err)
				continue
			}
			if err := repository.MarkChangePublished(ctx, evt.ID); err != nil {
				log.Errorf("mark published id=%d: %v", evt.ID, err)
			} else {
				log.Infof("change event %d (%s %s) sent", evt.ID, evt.Kind, evt.Key)
			}
		}
	}
}
