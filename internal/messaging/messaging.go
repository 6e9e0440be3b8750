package messaging

import (
	"context"
	"iris-backend/internal/core"
	"time"

	"github.com/google/uuid"
)

const (
	TrainingQueue   = "training_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type TrainTaskPayload struct {
	ModelId uuid.UUID

	Options    core.ModelOptions
	TestSize   float64
	Seed       int64
	Experiment string
}

type Publisher interface {
	PublishTrainTask(ctx context.Context, payload TrainTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
