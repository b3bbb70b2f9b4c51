package main

import (
	"context"
	"sync"
	"time"

	kgo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"product-crawler/internal/kafka"
	"product-crawler/internal/metrics"
)

// commitCoordinator buffers finished messages per partition and commits in
// offset order, so a slow session never lets a later offset commit past it.
type commitCoordinator struct {
	reader     kafka.MessageReader
	commitCh   <-chan kgo.Message
	nextOffset map[int]int64                 // per partition: next offset to commit
	pending    map[int]map[int64]kgo.Message // per partition: finished messages by offset
	mu         sync.Mutex                    // protects nextOffset and pending
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func newCommitCoordinator(reader kafka.MessageReader, commitCh <-chan kgo.Message, logger *zap.Logger, m *metrics.Metrics) *commitCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &commitCoordinator{
		reader:     reader,
		commitCh:   commitCh,
		nextOffset: make(map[int]int64),
		pending:    make(map[int]map[int64]kgo.Message),
		logger:     logger,
		metrics:    m,
	}
}

// run commits until commitCh is closed, then flushes. Commits use a context
// detached from ctx so sessions finishing during shutdown are still committed.
func (c *commitCoordinator) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	commitCtx := context.WithoutCancel(ctx)
	for msg := range c.commitCh {
		c.enqueue(msg)
		c.drain(commitCtx, msg.Partition)
	}
	c.flush(commitCtx)
}

// enqueue buffers msg. The first offset seen on a partition becomes its starting point.
func (c *commitCoordinator) enqueue(msg kgo.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := msg.Partition
	if c.pending[p] == nil {
		c.pending[p] = make(map[int64]kgo.Message)
	}
	c.pending[p][msg.Offset] = msg
	c.metrics.CommitPending(1)
	if next, exists := c.nextOffset[p]; !exists || msg.Offset < next {
		c.nextOffset[p] = msg.Offset
	}
}

// commitNext commits the next contiguous offset of partition. Caller holds c.mu;
// the lock is released around the commit call. A failed commit is re-queued
// and stops the drain.
func (c *commitCoordinator) commitNext(ctx context.Context, partition int) bool {
	next := c.nextOffset[partition]
	m, ok := c.pending[partition][next]
	if !ok {
		return false
	}
	delete(c.pending[partition], next)
	c.metrics.CommitPending(-1)
	c.mu.Unlock()
	start := time.Now()
	err := c.reader.CommitMessages(ctx, m)
	c.metrics.ObserveCommit(time.Since(start), err)
	c.mu.Lock()
	if err != nil {
		c.logger.Warn("commit error", zap.Int("partition", partition), zap.Int64("offset", next), zap.Error(err))
		c.pending[partition][next] = m
		c.metrics.CommitPending(1)
		return false
	}
	c.nextOffset[partition] = next + 1
	return true
}

func (c *commitCoordinator) drain(ctx context.Context, partition int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.commitNext(ctx, partition) {
	}
}

func (c *commitCoordinator) flush(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.pending {
		for c.commitNext(ctx, p) {
		}
	}
}
