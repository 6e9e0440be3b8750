package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func connectToRabbitMQ(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < MaxConnectRetry; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			slog.Info("connected to rabbitmq")
			return conn, nil
		}
		slog.Warn("failed to connect to rabbitmq", "attempt", i+1, "max_attempts", MaxConnectRetry, "error", err)
		time.Sleep(RetryDelay)
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", MaxConnectRetry, err)
}

// dialTrainingQueue opens a channel on which the durable training queue is
// declared.
func dialTrainingQueue(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := connectToRabbitMQ(url)
	if err != nil {
		return nil, nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if _, err := channel.QueueDeclare(TrainingQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare rabbitmq queue %s: %w", TrainingQueue, err)
	}

	return conn, channel, nil
}

// watchChannel blocks until the channel closes or stop fires. When the broker
// drops the channel, reopen is retried until it succeeds.
func watchChannel(channel *amqp.Channel, stop <-chan struct{}, reopen func() error) {
	closed := channel.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case err, ok := <-closed:
		if !ok {
			slog.Info("rabbitmq channel closed")
			return
		}
		slog.Warn("rabbitmq channel lost, reconnecting", "error", err)

		for reopen() != nil {
			select {
			case <-stop:
				return
			case <-time.After(RetryDelay * 10):
			}
		}
		slog.Info("reconnected to rabbitmq")

	case <-stop:
	}
}

type RabbitMQPublisher struct {
	url string

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closeOnce sync.Once
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{url: rabbitMQURL}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQPublisher) connect() error {
	conn, channel, err := dialTrainingQueue(p.url)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.conn, p.channel = conn, channel
	p.mu.Unlock()

	go watchChannel(channel, nil, p.connect)
	return nil
}

func (p *RabbitMQPublisher) PublishTrainTask(ctx context.Context, payload TrainTaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal training task: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.channel == nil || p.channel.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}

	err = p.channel.PublishWithContext(ctx, "", TrainingQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		slog.Error("failed to publish training task", "model_id", payload.ModelId, "error", err)
		return fmt.Errorf("failed to publish training task: %w", err)
	}

	slog.Info("published training task", "model_id", payload.ModelId)
	return nil
}

func (p *RabbitMQPublisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if err := p.conn.Close(); err != nil {
			slog.Error("error closing rabbitmq connection", "error", err)
		}
	})
}

type RabbitMQTask struct {
	d amqp.Delivery
}

func (t *RabbitMQTask) Type() string {
	return t.d.RoutingKey
}

func (t *RabbitMQTask) Payload() []byte {
	return t.d.Body
}

func (t *RabbitMQTask) Ack() error {
	return t.d.Ack(false)
}

// Nack does not requeue: a failed training run is recorded as FAILED and is
// resubmitted explicitly rather than retried by the broker.
func (t *RabbitMQTask) Nack() error {
	return t.d.Nack(false, false)
}

func (t *RabbitMQTask) Reject() error {
	return t.d.Reject(false)
}

type RabbitMQReceiver struct {
	url   string
	tasks chan Task

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRabbitMQReceiver(rabbitMQURL string) (*RabbitMQReceiver, error) {
	c := &RabbitMQReceiver{
		url:   rabbitMQURL,
		tasks: make(chan Task),
		stop:  make(chan struct{}),
	}

	if err := c.subscribe(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *RabbitMQReceiver) subscribe() error {
	conn, channel, err := dialTrainingQueue(c.url)
	if err != nil {
		return err
	}

	// one unacked training run per consumer
	if err := channel.Qos(1, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set channel qos: %w", err)
	}

	msgs, err := channel.Consume(TrainingQueue, "", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to consume from rabbitmq queue %s: %w", TrainingQueue, err)
	}

	go c.forward(msgs)
	go func() {
		watchChannel(channel, c.stop, c.subscribe)

		select {
		case <-c.stop:
			slog.Info("stopping rabbitmq consumer")
			if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
				slog.Error("error closing rabbitmq connection", "error", err)
			}
		default:
		}
	}()

	return nil
}

func (c *RabbitMQReceiver) forward(msgs <-chan amqp.Delivery) {
	for d := range msgs {
		select {
		case c.tasks <- &RabbitMQTask{d: d}:
		case <-c.stop:
			return
		}
	}
}

func (c *RabbitMQReceiver) Tasks() <-chan Task {
	return c.tasks
}

func (c *RabbitMQReceiver) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
