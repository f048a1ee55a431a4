package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/config"
	"github.com/ewallet/transfer-saga/internal/ledger"
	"github.com/ewallet/transfer-saga/internal/logger"
	"github.com/ewallet/transfer-saga/internal/model"
	"github.com/ewallet/transfer-saga/internal/repo"
	httptransport "github.com/ewallet/transfer-saga/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres; TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.Account{},
		&model.TransactionRecord{},
		&model.IdempotencyMarker{},
		&model.ChangeEvent{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer (change feed publishing happens in the poller, but the
	// repo keeps one connection config for both binaries)
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}

	// 6. repo & writer
	repository := repo.NewRepository(gdb, rdb, kw, log)
	writer := ledger.NewWriter(repository, log)

	// 7. gin router
	router := httptransport.NewRouter(writer, repository, cfg.RateLimit, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("transfer-saga server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
