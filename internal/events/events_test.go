package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/dropcart/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(w)

	job := &domain.Job{
		ID:     "job-1",
		Kind:   domain.JobKindFinder,
		Status: domain.JobStatusSuccess,
		Totals: domain.JobTotals{Steps: 2, ItemsAdded: 20},
	}
	require.NoError(t, p.Publish(context.Background(), NewJobEvent(TypeSucceeded, job)))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "job-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "job.succeeded", string(msg.Headers[0].Value))

	var got JobEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, TypeSucceeded, got.Type)
	assert.Equal(t, domain.JobStatusSuccess, got.Status)
	assert.Equal(t, 20, got.Totals.ItemsAdded)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("write failed")})
	err := p.Publish(context.Background(), JobEvent{Type: TypeFailed, JobID: "job-2"})
	assert.ErrorContains(t, err, "write failed")
}
