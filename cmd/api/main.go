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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"product-crawler/internal/config"
	"product-crawler/internal/crawler"
	"product-crawler/internal/kafka"
	"product-crawler/internal/logging"
	"product-crawler/internal/metrics"
	"product-crawler/internal/store"
)

func main() {
	cfg, err := config.Load(viper.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	coordinator, err := crawler.NewHTTPCoordinator(cfg.FetchOptions(), logger, m)
	if err != nil {
		logger.Fatal("crawler setup failed", zap.Error(err))
	}

	opts := []serverOption{withGatherer(reg)}
	if cfg.AsyncEnabled {
		prod := kafka.NewProducer(cfg.KafkaBroker, cfg.JobsTopic)
		defer func() {
			if err := prod.Close(); err != nil {
				logger.Warn("failed to close producer", zap.Error(err))
			}
		}()

		sessions := store.NewRedisSessionStore(cfg.RedisAddr, cfg.StatusPrefix, cfg.StatusTTL)
		defer func() {
			if err := sessions.Close(); err != nil {
				logger.Warn("failed to close session store", zap.Error(err))
			}
		}()
		opts = append(opts, withAsync(prod, sessions))
		logger.Info("async crawl endpoints enabled", zap.String("topic", cfg.JobsTopic))
	}

	srv := newServer(coordinator, cfg.Limits, logger, opts...)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api shutdown error", zap.Error(err))
		}
	}()

	logger.Info("api listening", zap.String("addr", cfg.HTTPAddr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api server error", zap.Error(err))
	}
}
