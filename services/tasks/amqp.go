package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sourcegraph/conc/pool"
)

// AMQPOptions configures the broker connection.
type AMQPOptions struct {
	URL          string
	Queue        string
	DialAttempts uint
}

type amqpConn struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func dialAMQP(ctx context.Context, opts AMQPOptions) (*amqpConn, error) {
	attempts := opts.DialAttempts
	if attempts == 0 {
		attempts = 5
	}

	conn, err := retry.DoWithData(
		func() (*amqp.Connection, error) { return amqp.Dial(opts.URL) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[tasks] amqp dial failed (attempt %d/%d): %v", n+1, attempts, err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	q, err := ch.QueueDeclare(opts.Queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("error declaring queue: %w", err)
	}

	return &amqpConn{conn: conn, ch: ch, queue: q.Name}, nil
}

func (c *amqpConn) close() error {
	if err := c.ch.Close(); err != nil && err != amqp.ErrClosed {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := c.conn.Close(); err != nil && err != amqp.ErrClosed {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// AMQPDispatcher publishes tasks to a durable queue.
type AMQPDispatcher struct {
	mu     sync.Mutex
	c      *amqpConn
	closed bool
}

// NewAMQPDispatcher connects to the broker, retrying the dial.
func NewAMQPDispatcher(ctx context.Context, opts AMQPOptions) (*AMQPDispatcher, error) {
	c, err := dialAMQP(ctx, opts)
	if err != nil {
		return nil, err
	}
	slog.Info("amqp dispatcher ready", slog.String("queue", c.queue))
	return &AMQPDispatcher{c: c}, nil
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, task Task) error {
	if err := validate(task); err != nil {
		return err
	}
	msg, err := encodeTask(task)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.c.ch.PublishWithContext(ctx, "", d.c.queue, false, false, msg); err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	return nil
}

func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.c.close()
}

func encodeTask(task Task) (amqp.Publishing, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode task: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    task.ID,
		Type:         task.Name,
		Timestamp:    task.CreatedAt,
		Body:         body,
	}, nil
}

// Consumer executes tasks read from the queue.
type Consumer struct {
	c        *amqpConn
	registry *Registry
	workers  int
	timeout  time.Duration
}

// NewConsumer connects a worker to the broker.
func NewConsumer(ctx context.Context, opts AMQPOptions, registry *Registry, workers int, timeout time.Duration) (*Consumer, error) {
	if workers <= 0 {
		workers = 4
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	c, err := dialAMQP(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := c.ch.Qos(workers, 0, false); err != nil {
		c.close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{c: c, registry: registry, workers: workers, timeout: timeout}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
// In-flight tasks finish before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.c.ch.Consume(c.c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}
	slog.Info("worker consuming", slog.String("queue", c.c.queue), slog.Int("workers", c.workers))

	p := pool.New().WithMaxGoroutines(c.workers)
	defer p.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			p.Go(func() {
				taskCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
				defer cancel()
				handleDelivery(taskCtx, c.registry, d)
			})
		}
	}
}

func (c *Consumer) Close() error {
	return c.c.close()
}

// handleDelivery runs one message. Malformed messages are dropped; a failed
// handler gets one redelivery.
func handleDelivery(ctx context.Context, registry *Registry, d amqp.Delivery) {
	var task Task
	if err := json.Unmarshal(d.Body, &task); err != nil {
		slog.Error("dropping malformed task", slog.String("messageId", d.MessageId), slog.String("error", err.Error()))
		_ = d.Nack(false, false)
		return
	}
	if err := validate(task); err != nil {
		slog.Error("dropping invalid task", slog.String("messageId", d.MessageId), slog.String("error", err.Error()))
		_ = d.Nack(false, false)
		return
	}

	if err := registry.Run(ctx, task); err != nil {
		requeue := !d.Redelivered
		log.Printf("[tasks] %s %s failed (requeue=%v): %v", task.Name, task.ID, requeue, err)
		_ = d.Nack(false, requeue)
		return
	}
	if err := d.Ack(false); err != nil {
		log.Printf("[tasks] error acknowledging message %s: %v", task.ID, err)
	}
}
