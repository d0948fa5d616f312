package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/clinicdesk/notify-backend/pkg/logger"
)

// TriggersQueue is the queue carrying trigger runs. Runs are sequential
// by design, so the queue carries whole runs, never individual messages.
const TriggersQueue = "notification_triggers"

// TriggerJob asks a worker to execute one trigger run.
type TriggerJob struct {
	Trigger    string `json:"trigger"` // reminder | survey | upsell | campaign
	CampaignID string `json:"campaign_id,omitempty"`
}

// Queue interface
type Queue interface {
	Publish(topic string, job TriggerJob) error
	Subscribe(topic string, handler func(job TriggerJob) error) error
}

// ====================== In-memory queue ======================

// InMemoryQueue dispatches jobs to in-process subscribers with retry.
// Used when no broker is configured, and in tests.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(job TriggerJob) error
	logger   *logger.Logger
}

func NewInMemoryQueue(log *logger.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(job TriggerJob) error),
		logger:   log,
	}
}

func (q *InMemoryQueue) Publish(topic string, job TriggerJob) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(job TriggerJob) error, job TriggerJob) {
	const maxRetries = 3
	for attempt := 1; ; attempt++ {
		err := handler(job)
		if err == nil {
			return
		}

		q.logger.WithComponent("queue").WithFields(map[string]interface{}{
			"trigger": job.Trigger,
			"attempt": attempt,
		}).WithError(err).Warn("trigger job failed")

		if attempt >= maxRetries {
			q.logger.WithComponent("queue").WithField("trigger", job.Trigger).
				Error("trigger job permanently failed")
			return
		}

		// Backoff before retry
		time.Sleep(time.Duration(attempt*500) * time.Millisecond)
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(job TriggerJob) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// ====================== RabbitMQ publisher ======================

// AMQPQueue publishes trigger jobs to a durable RabbitMQ queue consumed
// by cmd/worker. Subscribing is the worker's side and is not implemented
// on the publisher.
type AMQPQueue struct {
	channel *amqp.Channel
}

func NewAMQPQueue(conn *amqp.Connection) (*AMQPQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open queue channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		TriggersQueue, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPQueue{channel: ch}, nil
}

func (q *AMQPQueue) Publish(topic string, job TriggerJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.channel.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (q *AMQPQueue) Subscribe(topic string, handler func(job TriggerJob) error) error {
	return fmt.Errorf("subscribe is handled by the worker consumer, not the publisher")
}

// DeliveryRetryCount reads the x-retry-count header from a delivery.
// Brokers hand numeric headers back with varying integer widths.
func DeliveryRetryCount(headers amqp.Table) int {
	switch v := headers["x-retry-count"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// RetryPublishing builds the republished form of a failed delivery with
// the retry count incremented. A Nack requeue cannot bound retries: it
// redelivers with the original header table, so the count never grows.
func RetryPublishing(d amqp.Delivery) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-retry-count"] = int32(DeliveryRetryCount(d.Headers) + 1)
	return amqp.Publishing{
		Headers:      headers,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
	}
}

var _ Queue = (*InMemoryQueue)(nil)
var _ Queue = (*AMQPQueue)(nil)
