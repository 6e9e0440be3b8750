package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"iris-backend/internal/core"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	queue := NewInMemoryQueue()

	payload := TrainTaskPayload{
		ModelId:    uuid.New(),
		Options:    core.ModelOptions{NEstimators: 10},
		TestSize:   0.2,
		Seed:       42,
		Experiment: "iris",
	}
	require.NoError(t, queue.PublishTrainTask(context.Background(), payload))

	task := <-queue.Tasks()
	assert.Equal(t, TrainingQueue, task.Type())

	var received TrainTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &received))
	assert.Equal(t, payload, received)
	assert.NoError(t, task.Ack())

	queue.Close()
	queue.Close()
	_, ok := <-queue.Tasks()
	assert.False(t, ok)
}

func TestInMemoryQueuePublishRespectsContext(t *testing.T) {
	queue := NewInMemoryQueue()
	for i := 0; i < cap(queue.tasks); i++ {
		require.NoError(t, queue.PublishTrainTask(context.Background(), TrainTaskPayload{ModelId: uuid.New()}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, queue.PublishTrainTask(ctx, TrainTaskPayload{}), context.Canceled)
}

func TestInMemoryQueueCloseUnblocksPublishers(t *testing.T) {
	queue := NewInMemoryQueue()
	for i := 0; i < cap(queue.tasks); i++ {
		require.NoError(t, queue.PublishTrainTask(context.Background(), TrainTaskPayload{ModelId: uuid.New()}))
	}

	published := make(chan error, 1)
	go func() {
		published <- queue.PublishTrainTask(context.Background(), TrainTaskPayload{ModelId: uuid.New()})
	}()

	queue.Close()

	select {
	case err := <-published:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("publish still blocked after close")
	}

	assert.ErrorIs(t, queue.PublishTrainTask(context.Background(), TrainTaskPayload{}), ErrQueueClosed)
}
