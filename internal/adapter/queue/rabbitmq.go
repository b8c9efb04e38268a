package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"cv-generator/internal/usecase"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	attemptHeader       = "x-cvgen-attempt"
	DefaultMaxDelivery  = 5
	DefaultRedeliveryIn = 30 * time.Second
	publishTimeout      = 5 * time.Second
)

// Queue names derived from the main queue.
func retryQueue(q string) string { return q + ".retry" }
func deadQueue(q string) string  { return q + ".dlq" }

// declare sets up the main queue, a retry queue that dead-letters back into
// it once a message's TTL expires, and a dead-letter queue for rejects.
func declare(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(deadQueue(queue), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", deadQueue(queue), err)
	}
	if _, err := ch.QueueDeclare(retryQueue(queue), true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", retryQueue(queue), err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": deadQueue(queue),
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func dial(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func encodeTask(t usecase.Task, attempt int) (amqp.Publishing, error) {
	body, err := json.Marshal(t)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    t.ID,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{attemptHeader: int32(attempt)},
		Body:         body,
	}, nil
}

func decodeTask(d amqp.Delivery) (usecase.Task, int, error) {
	var t usecase.Task
	if err := json.Unmarshal(d.Body, &t); err != nil {
		return t, 0, err
	}
	if t.JobID == "" {
		return t, 0, errors.New("task without job id")
	}
	return t, headerInt(d.Headers[attemptHeader]), nil
}

func headerInt(v interface{}) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// RabbitPublisher is a Dispatcher that publishes tasks to a durable queue.
type RabbitPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *RabbitPublisher) Dispatch(ctx context.Context, t usecase.Task) error {
	msg, err := encodeTask(t, 0)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx, "", p.queue, false, false, msg)
}

// Cancel cannot reach tasks held by remote consumers. Those consumers skip
// or discard the run once they see the cancelled job record.
func (p *RabbitPublisher) Cancel(string) bool { return false }

func (p *RabbitPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Handler processes one task. A returned error asks for redelivery.
type Handler func(ctx context.Context, t usecase.Task) error

// RabbitConsumer feeds tasks from the queue into a handler with bounded
// concurrency. Failed deliveries go to the retry queue until maxDelivery is
// reached and then to the dead-letter queue.
type RabbitConsumer struct {
	url         string
	queue       string
	handler     Handler
	concurrency int
	maxDelivery int
	redelivery  time.Duration
	logger      *slog.Logger
}

type ConsumerOption func(*RabbitConsumer)

func WithConcurrency(n int) ConsumerOption {
	return func(c *RabbitConsumer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithMaxDelivery(n int) ConsumerOption {
	return func(c *RabbitConsumer) {
		if n > 0 {
			c.maxDelivery = n
		}
	}
}

func WithRedeliveryDelay(d time.Duration) ConsumerOption {
	return func(c *RabbitConsumer) {
		if d > 0 {
			c.redelivery = d
		}
	}
}

func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *RabbitConsumer) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewRabbitConsumer(url, queue string, h Handler, opts ...ConsumerOption) *RabbitConsumer {
	c := &RabbitConsumer{
		url:         url,
		queue:       queue,
		handler:     h,
		concurrency: DefaultWorkers,
		maxDelivery: DefaultMaxDelivery,
		redelivery:  DefaultRedeliveryIn,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume blocks until ctx is done or the delivery channel closes.
// In-flight tasks finish before it returns.
func (c *RabbitConsumer) Consume(ctx context.Context) error {
	conn, ch, err := dial(c.url, c.queue)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()

	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.logger.Info("consumer started", "queue", c.queue, "concurrency", c.concurrency)

	var pubMu sync.Mutex
	deliveries := make(chan amqp.Delivery, c.concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(id int) {
			defer wg.Done()
			for d := range deliveries {
				c.deliver(ctx, id, d, func(msg amqp.Publishing) error {
					pubMu.Lock()
					defer pubMu.Unlock()
					pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
					defer cancel()
					return ch.PublishWithContext(pctx, "", retryQueue(c.queue), false, false, msg)
				})
			}
		}(i)
	}

	defer func() {
		close(deliveries)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer shutting down", "queue", c.queue)
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			deliveries <- d
		}
	}
}

func (c *RabbitConsumer) deliver(ctx context.Context, worker int, d amqp.Delivery, retry func(amqp.Publishing) error) {
	t, attempt, err := decodeTask(d)
	if err != nil {
		c.logger.Warn("bad message", "worker", worker, "error", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	herr := c.handler(ctx, t)
	if herr == nil {
		if err := d.Ack(false); err != nil {
			c.logger.Warn("ack failed", "worker", worker, "job_id", t.JobID, "error", err)
		}
		return
	}

	attempt++
	if attempt >= c.maxDelivery {
		c.logger.Error("task dead-lettered", "job_id", t.JobID, "attempts", attempt, "error", herr)
		_ = d.Nack(false, false)
		return
	}
	msg, err := encodeTask(t, attempt)
	if err == nil {
		msg.Expiration = strconv.FormatInt(c.redelivery.Milliseconds(), 10)
		err = retry(msg)
	}
	if err != nil {
		c.logger.Error("could not schedule redelivery", "job_id", t.JobID, "error", err)
		_ = d.Nack(false, true)
		return
	}
	c.logger.Warn("task scheduled for redelivery", "job_id", t.JobID, "attempt", attempt, "cost", time.Since(start), "error", herr)
	_ = d.Ack(false)
}
