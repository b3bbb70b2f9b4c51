package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	kgo "github.com/segmentio/kafka-go"

	pkafka "product-crawler/internal/kafka"
	"product-crawler/internal/models"
	"product-crawler/mocks"
)

func TestPublishResultsKeysByDomain(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	writer := mocks.NewMockMessageWriter(ctrl)
	pub := pkafka.NewResultPublisher(writer)

	results := []models.CrawlResult{
		{Domain: "https://a.test", ProductURLs: []string{"https://a.test/p/1"}, Status: models.StatusCompleted},
		{Domain: "https://b.test", ProductURLs: []string{}, Status: models.StatusCompleted},
	}

	writer.EXPECT().
		WriteMessages(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kgo.Message) error {
			if len(msgs) != 2 {
				t.Fatalf("expected 2 messages, got %d", len(msgs))
			}
			for i, msg := range msgs {
				if string(msg.Key) != results[i].Domain {
					t.Fatalf("message %d key = %s", i, msg.Key)
				}
				var event models.ResultEvent
				if err := json.Unmarshal(msg.Value, &event); err != nil {
					t.Fatalf("decode event: %v", err)
				}
				if event.SessionID != "s-1" || event.Domain != results[i].Domain || event.Status != models.StatusCompleted {
					t.Fatalf("unexpected event: %+v", event)
				}
				if event.CrawledAt.IsZero() {
					t.Fatal("crawled_at not set")
				}
			}
			return nil
		})

	if err := pub.PublishResults(context.Background(), "s-1", results); err != nil {
		t.Fatalf("PublishResults returned error: %v", err)
	}
}

func TestPublishResultsNothingToSend(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	writer := mocks.NewMockMessageWriter(ctrl)
	pub := pkafka.NewResultPublisher(writer)
	if err := pub.PublishResults(context.Background(), "s-1", nil); err != nil {
		t.Fatalf("PublishResults returned error: %v", err)
	}
}

func TestPublishResultsWriteError(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	writer := mocks.NewMockMessageWriter(ctrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	pub := pkafka.NewResultPublisher(writer)

	err := pub.PublishResults(context.Background(), "s-1", []models.CrawlResult{
		{Domain: "https://a.test", Status: models.StatusCompleted},
		{Domain: "https://b.test", Status: models.StatusCompleted},
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
