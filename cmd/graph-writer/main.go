package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"product-crawler/internal/config"
	"product-crawler/internal/graph"
	"product-crawler/internal/kafka"
	"product-crawler/internal/logging"
	"product-crawler/internal/metrics"
	"product-crawler/internal/models"
)

type resultWriter interface {
	WriteResult(ctx context.Context, event models.ResultEvent) error
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := graph.NewDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		logger.Fatal("neo4j driver error", zap.Error(err))
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			logger.Warn("neo4j close error", zap.Error(err))
		}
	}()

	reader := kafka.NewReader(cfg.KafkaBroker, cfg.ResultsTopic, cfg.ResultsGroup)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("results reader close error", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, cfg.MetricsAddr, reg, logger)
	}

	logger.Info("graph writer consuming",
		zap.String("topic", cfg.ResultsTopic),
		zap.String("group", cfg.ResultsGroup))
	consumeResults(ctx, reader, graph.NewWriter(driver, cfg.Neo4jDatabase, logger), logger, m)
}

// consumeResults writes every result event to the graph. Malformed events are
// committed and dropped. A failed write is not committed itself, but the next
// successful commit moves the group offset past it, so it is not retried.
func consumeResults(ctx context.Context, reader kafka.MessageReader, writer resultWriter, logger *zap.Logger, m *metrics.Metrics) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("results fetch error", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if err := writeResult(ctx, writer, msg.Value); err != nil {
			if errors.Is(err, errInvalidEvent) {
				m.GraphWrite("invalid")
				logger.Warn("dropping result event", zap.Int64("offset", msg.Offset), zap.Error(err))
			} else {
				m.GraphWrite("failed")
				logger.Error("results write error", zap.Int64("offset", msg.Offset), zap.Error(err))
				continue
			}
		} else {
			m.GraphWrite("written")
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Warn("results commit error", zap.Error(err))
		}
	}
}

var errInvalidEvent = errors.New("invalid result event")

func writeResult(ctx context.Context, writer resultWriter, payload []byte) error {
	var event models.ResultEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if err := writer.WriteResult(ctx, event); err != nil {
		if errors.Is(err, graph.ErrEmptyDomain) {
			return fmt.Errorf("%w: %v", errInvalidEvent, err)
		}
		return err
	}
	return nil
}
