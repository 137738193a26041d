package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cinetick/cinetick/config"
	"github.com/cinetick/cinetick/internal/adapter"
	httpDelivery "github.com/cinetick/cinetick/internal/delivery/http"
	"github.com/cinetick/cinetick/internal/events"
	"github.com/cinetick/cinetick/internal/order"
	repo "github.com/cinetick/cinetick/internal/repository/redis"
	"github.com/cinetick/cinetick/internal/resolver"
	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/internal/voucher"
	pkgKafka "github.com/cinetick/cinetick/pkg/kafka"
	pkgLog "github.com/cinetick/cinetick/pkg/logger"
	pkgRedis "github.com/cinetick/cinetick/pkg/redis"
	"github.com/cinetick/cinetick/pkg/retry"
)

const orderEventsTopic = "cinetick.order.events"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := pkgRedis.Connect(ctx, pkgRedis.Config{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer pkgRedis.Disconnect(redisCli)

	repository := repo.NewRepository(redisCli)

	// Order event publisher
	pub := events.NewNopPublisher()
	if cfg.Kafka.Enabled {
		kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		defer kafkaSyncProd.Close()
		pub = events.NewKafkaPublisher(kafkaSyncProd, orderEventsTopic, l)
	}

	registry := tenant.NewRegistry()

	res := resolver.New(registry, adapter.NewProber(registry, cfg.Backend.RequestTimeout, l), l)
	if domains, err := repository.LoadDomains(ctx); err != nil {
		l.Warnf(ctx, "Failed to load persisted domain cache: %v", err)
	} else if len(domains) > 0 {
		res.Seed(domains)
		l.Infof(ctx, "Seeded %d resolved cinema domains", len(domains))
	}

	catalog := adapter.New(registry, res, cfg.Backend.RequestTimeout, l)

	policy := retry.Policy{
		MaxAttempts: uint64(cfg.Retry.MaxAttempts),
		BaseDelay:   cfg.Retry.BaseDelay,
	}
	voucherSvc := voucher.NewService(catalog, policy, l)
	orderMgr := order.NewManager(catalog, repository, pub, cfg.Backend.OrderTTL, l)

	handler := httpDelivery.NewHandler(catalog, voucherSvc, orderMgr, cfg.JWT.Secret, cfg.JWT.Expiry, l)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      httpDelivery.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalf(ctx, "Failed to serve HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info(ctx, "Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Errorf(ctx, "HTTP shutdown: %v", err)
	}

	// Persist the resolved domains so the next start skips the probes.
	if err := repository.SaveDomains(shutdownCtx, res.Snapshot()); err != nil {
		l.Warnf(ctx, "Failed to persist domain cache: %v", err)
	}
	l.Info(ctx, "Server stopped")
}
