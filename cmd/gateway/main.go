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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-ecommerce-saga/internal/auth"
	"github.com/ariefcatur/go-ecommerce-saga/internal/config"
	"github.com/ariefcatur/go-ecommerce-saga/internal/httpx"
	"github.com/ariefcatur/go-ecommerce-saga/internal/obs"
)

func main() {
	_ = godotenv.Load()
	if os.Getenv("SERVICE_NAME") == "" {
		_ = os.Setenv("SERVICE_NAME", "gateway")
	}
	if os.Getenv("HTTP_ADDR") == "" {
		_ = os.Setenv("HTTP_ADDR", ":8080")
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
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gw, err := httpx.NewGateway(cfg.OrdersURL, cfg.InventoryURL,
		auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience), logger)
	if err != nil {
		return err
	}
	router := httpx.NewRouter(logger, reg)
	gw.Register(router)
	srv := httpx.NewServer(cfg.HTTPAddr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr),
			zap.String("orders", cfg.OrdersURL), zap.String("inventory", cfg.InventoryURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
