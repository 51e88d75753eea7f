package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/timmy/dropcart/internal/domain"
)

// Type names a job lifecycle transition.
type Type string

const (
	TypeCreated   Type = "job.created"
	TypeStarted   Type = "job.started"
	TypeStep      Type = "job.step"
	TypeSucceeded Type = "job.succeeded"
	TypeFailed    Type = "job.failed"
	TypeCanceled  Type = "job.canceled"
)

// JobEvent is the payload published for every lifecycle transition.
type JobEvent struct {
	Type   Type             `json:"type"`
	JobID  string           `json:"job_id"`
	Kind   domain.JobKind   `json:"kind"`
	Status domain.JobStatus `json:"status"`
	Totals domain.JobTotals `json:"totals"`
	Added  int              `json:"added,omitempty"`
	Error  string           `json:"error,omitempty"`
	At     time.Time        `json:"at"`
}

// NewJobEvent snapshots job into an event of type t.
func NewJobEvent(t Type, job *domain.Job) JobEvent {
	return JobEvent{
		Type:   t,
		JobID:  job.ID,
		Kind:   job.Kind,
		Status: job.Status,
		Totals: job.Totals,
		Error:  job.Error,
		At:     time.Now().UTC(),
	}
}

// Publisher emits job events. Publishing is best effort: callers log failures and go on.
type Publisher interface {
	Publish(ctx context.Context, ev JobEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by job id, so one job's events stay
// ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
	}
}

// NewKafkaPublisherWithWriter builds a publisher using a custom writer (tests).
func NewKafkaPublisherWithWriter(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish marshals ev and writes it.
func (p *KafkaPublisher) Publish(ctx context.Context, ev JobEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(ev.JobID),
		Value: payload,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for job %s: %w", ev.Type, ev.JobID, err)
	}
	return nil
}

// Close shuts down the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, JobEvent) error { return nil }
func (NopPublisher) Close() error { return nil }
