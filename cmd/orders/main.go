package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-ecommerce-saga/internal/config"
	"github.com/ariefcatur/go-ecommerce-saga/internal/httpx"
	kafkax "github.com/ariefcatur/go-ecommerce-saga/internal/kafka"
	"github.com/ariefcatur/go-ecommerce-saga/internal/obs"
	"github.com/ariefcatur/go-ecommerce-saga/internal/orders"
	"github.com/ariefcatur/go-ecommerce-saga/internal/postgres"
)

func main() {
	_ = godotenv.Load()
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
		logger.Fatal("order service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.TraceContext{})
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	var repo orders.Repository
	switch cfg.StorageDriver {
	case "memory":
		repo = orders.NewMemoryStore()
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = &orders.PGStore{DB: db}
	}
	logger.Info("order store ready", zap.String("driver", cfg.StorageDriver))

	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.StockQueue)
	defer func() {
		if err := prod.Close(); err != nil {
			logger.Warn("close producer", zap.Error(err))
		}
	}()
	pub := orders.NewKafkaPublisher(prod)

	orch := orders.NewOrchestrator(
		orders.NewHTTPVerifier(cfg.InventoryURL, cfg.VerifyTimeout),
		repo, pub, logger,
		orders.WithMetrics(metrics),
	)

	router := httpx.NewRouter(logger, reg)
	(&httpx.OrdersHandler{Placer: orch, Orders: repo, Logger: logger}).Register(router)
	srv := httpx.NewServer(cfg.HTTPAddr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("inventory", cfg.InventoryURL))
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
		return srv.Shutdown(sctx)
	})
	if cfg.OutboxInterval > 0 {
		d := orders.NewDispatcher(repo, pub, logger, cfg.OutboxInterval, cfg.OutboxGrace, cfg.OutboxBatch, metrics)
		g.Go(func() error { return d.Run(gctx) })
	}
	return g.Wait()
}
