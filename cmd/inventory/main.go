package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-ecommerce-saga/internal/config"
	"github.com/ariefcatur/go-ecommerce-saga/internal/httpx"
	"github.com/ariefcatur/go-ecommerce-saga/internal/inventory"
	kafkax "github.com/ariefcatur/go-ecommerce-saga/internal/kafka"
	"github.com/ariefcatur/go-ecommerce-saga/internal/obs"
	"github.com/ariefcatur/go-ecommerce-saga/internal/postgres"
	"github.com/ariefcatur/go-ecommerce-saga/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "inventory-svc")
	}
	if os.Getenv("HTTP_ADDR") == "" {
		_ = os.Setenv("HTTP_ADDR", ":8082")
	}
	cfg := config.Load()

	logger, err := obs.NewLogger(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("inventory service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.TraceContext{})
	// Prices go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	var store inventory.Store
	switch cfg.StorageDriver {
	case "memory":
		store = inventory.NewMemoryStore()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		store = &inventory.PGStore{DB: db}
	}
	seeded, err := inventory.Seed(ctx, store, inventory.DefaultCatalog())
	if err != nil {
		return err
	}
	logger.Info("inventory store ready", zap.String("driver", cfg.StorageDriver), zap.Bool("seeded", seeded))

	opts := []inventory.ApplierOption{inventory.WithMetrics(metrics)}
	if cfg.ConsumerDedup {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		opts = append(opts, inventory.WithDeduper(redisx.NewProcessedSet(rdb, cfg.ServiceName)))
		logger.Info("consumer dedup enabled", zap.String("redis", cfg.RedisAddr))
	}
	applier := inventory.NewStockApplier(store, logger, opts...)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.StockQueue, logger)
	cons.Start(ctx, applier.Handle)
	logger.Info("stock consumer started", zap.String("group", cfg.ConsumerGroup), zap.String("queue", cfg.StockQueue))

	router := httpx.NewRouter(logger, reg)
	(&httpx.ProductsHandler{Store: store, Logger: logger}).Register(router)
	srv := httpx.NewServer(cfg.HTTPAddr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		herr := srv.Shutdown(sctx)
		// Stop returns once the message being applied is committed or abandoned.
		return errors.Join(herr, cons.Stop())
	})
	return g.Wait()
}
