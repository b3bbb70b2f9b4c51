package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	kgo "github.com/segmentio/kafka-go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"product-crawler/internal/config"
	"product-crawler/internal/crawler"
	"product-crawler/internal/kafka"
	"product-crawler/internal/logging"
	"product-crawler/internal/metrics"
	"product-crawler/internal/models"
	"product-crawler/internal/store"
)

type crawlRunner interface {
	CrawlDomains(ctx context.Context, domains []string, limits models.Limits) []models.CrawlResult
}

type resultPublisher interface {
	PublishResults(ctx context.Context, sessionID string, results []models.CrawlResult) error
}

type worker struct {
	reader    kafka.MessageReader
	sessions  store.SessionStore
	crawler   crawlRunner
	publisher resultPublisher
	ttl       time.Duration
	commitCh  chan<- kgo.Message
	sem       chan struct{}
	wg        *sync.WaitGroup
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func newWorker(
	reader kafka.MessageReader,
	sessions store.SessionStore,
	runner crawlRunner,
	publisher resultPublisher,
	ttl time.Duration,
	concurrency int,
	commitCh chan<- kgo.Message,
	wg *sync.WaitGroup,
	logger *zap.Logger,
	m *metrics.Metrics,
) *worker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &worker{
		reader:    reader,
		sessions:  sessions,
		crawler:   runner,
		publisher: publisher,
		ttl:       ttl,
		commitCh:  commitCh,
		sem:       make(chan struct{}, concurrency),
		wg:        wg,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
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

	reader := kafka.NewReader(cfg.KafkaBroker, cfg.JobsTopic, cfg.GroupID)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("failed to close reader", zap.Error(err))
		}
	}()

	publisher := kafka.NewResultPublisher(kafka.NewWriter(cfg.KafkaBroker, cfg.ResultsTopic))
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("failed to close results writer", zap.Error(err))
		}
	}()

	sessions := store.NewRedisSessionStore(cfg.RedisAddr, cfg.StatusPrefix, cfg.StatusTTL)
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("failed to close session store", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, cfg.MetricsAddr, reg, logger)
	}

	commitCh := make(chan kgo.Message, cfg.WorkerConcurrency*2)
	commits := newCommitCoordinator(reader, commitCh, logger, m)
	var coordWg sync.WaitGroup
	coordWg.Add(1)
	go commits.run(ctx, &coordWg)

	var wg sync.WaitGroup
	logger.Info("worker consuming",
		zap.String("topic", cfg.JobsTopic),
		zap.String("group", cfg.GroupID),
		zap.String("broker", cfg.KafkaBroker),
		zap.Int("concurrency", cfg.WorkerConcurrency))
	w := newWorker(reader, sessions, coordinator, publisher, cfg.DedupeTTL, cfg.WorkerConcurrency, commitCh, &wg, logger, m)
	w.run(ctx)
	stopWorker(&wg, commitCh, &coordWg)
}

// stopWorker waits for in-flight sessions, whose commits are still accepted,
// then closes commitCh and waits for the coordinator to flush.
func stopWorker(sessions *sync.WaitGroup, commitCh chan kgo.Message, commits *sync.WaitGroup) {
	sessions.Wait()
	close(commitCh)
	commits.Wait()
}

// run consumes the jobs topic until ctx is cancelled. Sessions run on their own
// goroutines, bounded by the semaphore. Every dispatched message ends up on
// commitCh; one interrupted by shutdown is left for redelivery.
func (w *worker) run(ctx context.Context) {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("fetch error", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if err := w.dispatchMessage(ctx, msg); err != nil {
			w.logger.Error("message dispatch error", zap.Error(err))
		}
	}
}

// dispatchMessage decodes and claims the job, then hands it to processJob.
func (w *worker) dispatchMessage(ctx context.Context, msg kgo.Message) error {
	var job models.CrawlJob
	if err := json.Unmarshal(msg.Value, &job); err != nil || job.SessionID == "" {
		if err == nil {
			err = errors.New("missing session_id")
		}
		w.metrics.JobHandled("invalid")
		w.logger.Warn("invalid job payload", zap.Int64("offset", msg.Offset), zap.Error(err))
		w.commitCh <- msg
		return nil
	}

	w.metrics.JobHandled("received")
	// The slot is taken before the claim: a claimed session must always run.
	// Left uncommitted on cancellation so the job is redelivered.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.sem <- struct{}{}:
	}

	ok, err := w.sessions.Claim(ctx, job.SessionID, w.ttl)
	if err != nil {
		<-w.sem
		// Committing keeps the partition moving; the session stays queued.
		w.commitCh <- msg
		return fmt.Errorf("claim session %s: %w", job.SessionID, err)
	}
	if !ok {
		<-w.sem
		w.metrics.JobHandled("skipped")
		w.logger.Info("duplicate job skipped", zap.String("session_id", job.SessionID))
		w.commitCh <- msg
		return nil
	}

	w.metrics.JobsInFlight(1)
	w.wg.Add(1)
	go w.processJob(ctx, msg, job)
	return nil
}

// processJob crawls the session's domains, stores the results and publishes them.
func (w *worker) processJob(ctx context.Context, msg kgo.Message, job models.CrawlJob) {
	defer func() {
		w.metrics.JobsInFlight(-1)
		<-w.sem
		w.commitCh <- msg
		w.wg.Done()
	}()

	// A started session finishes even when the worker is shutting down.
	jobCtx := context.WithoutCancel(ctx)
	log := w.logger.With(zap.String("session_id", job.SessionID),
		zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

	session := models.NewSession(job)
	session.Status = models.SessionRunning
	session.UpdatedAt = w.now().UTC()
	if err := w.sessions.SetStatus(jobCtx, session); err != nil {
		log.Warn("mark running failed", zap.Error(err))
	}

	log.Info("crawl started", zap.Int("domains", len(job.Domains)))
	results := w.crawler.CrawlDomains(jobCtx, job.Domains, job.Limits)

	session.Status = models.SessionCompleted
	session.Results = results
	session.UpdatedAt = w.now().UTC()
	if err := w.sessions.SetStatus(jobCtx, session); err != nil {
		w.metrics.JobHandled("failed")
		log.Error("store results failed", zap.Error(err))
		return
	}

	if err := w.publisher.PublishResults(jobCtx, job.SessionID, results); err != nil {
		log.Warn("publish results failed", zap.Error(err))
	}
	w.metrics.JobHandled("completed")
	log.Info("crawl completed", zap.Int("results", len(results)))
}
