package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	kgo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"product-crawler/internal/graph"
	"product-crawler/internal/metrics"
	"product-crawler/internal/models"
	"product-crawler/mocks"
)

type fakeWriter struct {
	events []models.ResultEvent
	err    error
}

func (f *fakeWriter) WriteResult(_ context.Context, event models.ResultEvent) error {
	if f.err != nil {
		return f.err
	}
	if event.Domain == "" {
		return graph.ErrEmptyDomain
	}
	f.events = append(f.events, event)
	return nil
}

func resultPayload(t *testing.T, event models.ResultEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return payload
}

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestConsumeResultsCommitsOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	reader := mocks.NewMockMessageReader(ctrl)
	writer := &fakeWriter{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	payload := resultPayload(t, models.ResultEvent{
		SessionID:   "s1",
		Domain:      "https://shop.example",
		ProductURLs: []string{"https://shop.example/product/1"},
		Status:      models.StatusCompleted,
		CrawledAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{Value: payload}, nil),
		reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, ...kgo.Message) error {
				cancel()
				return nil
			},
		),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{}, context.Canceled),
	)

	consumeResults(ctx, reader, writer, zap.NewNop(), m)

	if len(writer.events) != 1 || writer.events[0].Domain != "https://shop.example" {
		t.Fatalf("unexpected events: %+v", writer.events)
	}
	if body := scrape(t, reg); !strings.Contains(body, `product_crawler_graph_writes_total{result="written"} 1`) {
		t.Fatalf("expected one written result, got:\n%s", body)
	}
}

func TestConsumeResultsCommitsInvalidEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	reader := mocks.NewMockMessageReader(ctrl)
	writer := &fakeWriter{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noDomain := resultPayload(t, models.ResultEvent{SessionID: "s2"})
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{Offset: 1, Value: []byte("{oops")}, nil),
		reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Return(nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{Offset: 2, Value: noDomain}, nil),
		reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, ...kgo.Message) error {
				cancel()
				return nil
			},
		),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{}, context.Canceled),
	)

	consumeResults(ctx, reader, writer, zap.NewNop(), m)

	if len(writer.events) != 0 {
		t.Fatalf("expected no writes, got %+v", writer.events)
	}
	if body := scrape(t, reg); !strings.Contains(body, `product_crawler_graph_writes_total{result="invalid"} 2`) {
		t.Fatalf("expected two invalid results, got:\n%s", body)
	}
}

func TestConsumeResultsSkipsCommitOnWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	reader := mocks.NewMockMessageReader(ctrl)
	writer := &fakeWriter{err: errors.New("neo4j unavailable")}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := resultPayload(t, models.ResultEvent{SessionID: "s3", Domain: "https://shop.example"})
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{Value: payload}, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(context.Context) (kgo.Message, error) {
			cancel()
			return kgo.Message{}, context.Canceled
		}),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).Times(0)

	consumeResults(ctx, reader, writer, zap.NewNop(), m)

	if body := scrape(t, reg); !strings.Contains(body, `product_crawler_graph_writes_total{result="failed"} 1`) {
		t.Fatalf("expected one failed write, got:\n%s", body)
	}
}

func TestWriteResultWrapsInvalidEvents(t *testing.T) {
	err := writeResult(context.Background(), &fakeWriter{}, []byte("nope"))
	if !errors.Is(err, errInvalidEvent) {
		t.Fatalf("expected errInvalidEvent, got %v", err)
	}

	err = writeResult(context.Background(), &fakeWriter{err: errors.New("boom")}, []byte(`{"domain":"https://a.example"}`))
	if err == nil || errors.Is(err, errInvalidEvent) {
		t.Fatalf("expected plain write error, got %v", err)
	}
}

func TestConsumeResultsWithGraphWriter(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	reader := mocks.NewMockMessageReader(ctrl)
	driver := mocks.NewMockDriverSessioner(ctrl)
	session := mocks.NewMockSessionRunner(ctrl)

	driver.EXPECT().NewSession(gomock.Any(), gomock.Any()).Return(session)
	session.EXPECT().Close(gomock.Any()).Return(nil)
	session.EXPECT().ExecuteWrite(gomock.Any(), gomock.Any()).Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := resultPayload(t, models.ResultEvent{SessionID: "s4", Domain: "https://shop.example"})
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{Value: payload}, nil),
		reader.EXPECT().CommitMessages(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, ...kgo.Message) error {
				cancel()
				return nil
			},
		),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kgo.Message{}, context.Canceled),
	)

	consumeResults(ctx, reader, graph.NewWriter(driver, "", nil), zap.NewNop(), nil)
}
