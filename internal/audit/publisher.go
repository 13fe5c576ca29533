package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/news-monitor/backend/internal/models"
)

// QueryStat is the outcome of one planned query.
type QueryStat struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Event summarises a completed search. It never carries result items.
type Event struct {
	ID          string      `json:"id"`
	RequestedAt time.Time   `json:"requested_at"`
	Logic       string      `json:"logic"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
	Queries     []QueryStat `json:"queries"`
}

// NewEvent builds an event for a finished run.
func NewEvent(params models.SearchParams, window models.DateWindow, results *models.ResultSet, now time.Time) Event {
	logic := params.Logic
	if logic == "" {
		logic = models.LogicOR
	}

	ev := Event{
		ID:          uuid.NewString(),
		RequestedAt: now.UTC(),
		Logic:       string(logic),
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Queries:     []QueryStat{},
	}
	if results == nil {
		return ev
	}
	for _, query := range results.Queries() {
		items, _ := results.Get(query)
		ev.Queries = append(ev.Queries, QueryStat{Query: query, Count: len(items)})
	}
	return ev
}

// Publisher ships audit events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *slog.Logger
}

// NewKafka creates an asynchronous publisher; delivery errors are logged by
// the writer and never reach the caller.
func NewKafka(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
		Async:       true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Warn("audit publish failed", slog.String("detail", fmt.Sprintf(msg, args...)))
		}),
	})

	return newKafkaPublisher(w, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, log: logger}
}

// Publish encodes ev and hands it to the writer.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("news_search")},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write audit event to %s: %w", p.topic, err)
	}

	p.log.Debug("audit event queued", slog.String("id", ev.ID), slog.Int("queries", len(ev.Queries)))
	return nil
}

// Close flushes pending events.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
