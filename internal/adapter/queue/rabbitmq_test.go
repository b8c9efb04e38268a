package queue

import (
	"context"
	"errors"
	"testing"

	"cv-generator/internal/domain"
	"cv-generator/internal/usecase"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acks++; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}
func (a *ackRecorder) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func delivery(t *testing.T, task usecase.Task, attempt int) (amqp.Delivery, *ackRecorder) {
	t.Helper()
	msg, err := encodeTask(task, attempt)
	require.NoError(t, err)
	ack := &ackRecorder{}
	return amqp.Delivery{Acknowledger: ack, Body: msg.Body, Headers: msg.Headers}, ack
}

func sampleTask() usecase.Task {
	return usecase.Task{
		ID:         "task-1",
		JobID:      "job-1",
		UserID:     "user-1",
		TemplateID: "modern",
		Features:   []domain.FeatureID{domain.FeatureQRCode},
		Options:    map[string]string{"qrUrl": "https://example.com"},
	}
}

func TestTaskRoundTrip(t *testing.T) {
	d, _ := delivery(t, sampleTask(), 2)
	got, attempt, err := decodeTask(d)
	require.NoError(t, err)
	assert.Equal(t, 2, attempt)
	assert.Equal(t, sampleTask().Features, got.Features)
	assert.Equal(t, "https://example.com", got.Options["qrUrl"])

	_, _, err = decodeTask(amqp.Delivery{Body: []byte(`{"id":"x"}`)})
	assert.Error(t, err)
}

func TestConsumerDeliver(t *testing.T) {
	var retried []amqp.Publishing
	retry := func(m amqp.Publishing) error { retried = append(retried, m); return nil }

	t.Run("success acks", func(t *testing.T) {
		c := NewRabbitConsumer("", "cv", func(context.Context, usecase.Task) error { return nil })
		d, ack := delivery(t, sampleTask(), 0)
		c.deliver(context.Background(), 0, d, retry)
		assert.Equal(t, 1, ack.acks)
		assert.Zero(t, ack.nacks)
	})

	t.Run("failure schedules redelivery", func(t *testing.T) {
		retried = nil
		c := NewRabbitConsumer("", "cv", func(context.Context, usecase.Task) error { return errors.New("db down") })
		d, ack := delivery(t, sampleTask(), 0)
		c.deliver(context.Background(), 0, d, retry)
		assert.Equal(t, 1, ack.acks)
		require.Len(t, retried, 1)
		assert.Equal(t, int32(1), retried[0].Headers[attemptHeader])
		assert.Equal(t, "30000", retried[0].Expiration)
	})

	t.Run("last attempt dead-letters", func(t *testing.T) {
		retried = nil
		c := NewRabbitConsumer("", "cv", func(context.Context, usecase.Task) error { return errors.New("db down") }, WithMaxDelivery(2))
		d, ack := delivery(t, sampleTask(), 1)
		c.deliver(context.Background(), 0, d, retry)
		assert.Equal(t, 1, ack.nacks)
		assert.False(t, ack.requeue)
		assert.Empty(t, retried)
	})

	t.Run("malformed message dead-letters", func(t *testing.T) {
		c := NewRabbitConsumer("", "cv", func(context.Context, usecase.Task) error { return nil })
		ack := &ackRecorder{}
		c.deliver(context.Background(), 0, amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}, retry)
		assert.Equal(t, 1, ack.nacks)
		assert.False(t, ack.requeue)
	})
}

func TestPublisherCannotCancel(t *testing.T) {
	assert.False(t, (&RabbitPublisher{}).Cancel("job-1"))
}
