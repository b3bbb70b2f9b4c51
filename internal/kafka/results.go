package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"product-crawler/internal/models"
)

// ResultPublisher emits one results-topic message per completed domain.
type ResultPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewResultPublisher wraps writer.
func NewResultPublisher(writer MessageWriter) *ResultPublisher {
	return &ResultPublisher{writer: writer, now: time.Now}
}

// PublishResults writes every result of a session in a single batch, keyed by
// domain so a domain's results always land on the same partition.
func (p *ResultPublisher) PublishResults(ctx context.Context, sessionID string, results []models.CrawlResult) error {
	if len(results) == 0 {
		return nil
	}
	now := p.now().UTC()
	msgs := make([]kafka.Message, 0, len(results))
	for _, res := range results {
		payload, err := models.NewResultEvent(sessionID, res, now)
		if err != nil {
			return fmt.Errorf("encode result for %s: %w", res.Domain, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(res.Domain),
			Value: payload,
			Time:  now,
		})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close shuts down the underlying writer.
func (p *ResultPublisher) Close() error {
	return p.writer.Close()
}
