package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/unclebandit/crm-campaign-service/internal/model"
)

// AMQPQueue backs the receipt FIFO with a durable RabbitMQ queue. Pop uses
// basic.get so the reconciler keeps its own one-item-per-tick pace.
type AMQPQueue struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewAMQPQueue(url, queueName string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return &AMQPQueue{conn: conn, ch: ch, queue: queueName}, nil
}

func (q *AMQPQueue) Push(_ context.Context, r model.Receipt) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.Publish(
		"",
		q.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         b,
		},
	)
}

// Pop acks a message once it has been decoded; an undecodable message is
// rejected without requeue so it cannot block the queue.
func (q *AMQPQueue) Pop(_ context.Context) (*model.Receipt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	d, ok, err := q.ch.Get(q.queue, false)
	if err != nil {
		return nil, fmt.Errorf("basic.get %s: %w", q.queue, err)
	}
	if !ok {
		return nil, nil
	}
	r, err := decode(d.Body)
	if err != nil {
		_ = d.Reject(false)
		return nil, err
	}
	if err := d.Ack(false); err != nil {
		return nil, fmt.Errorf("ack receipt: %w", err)
	}
	return r, nil
}

func (q *AMQPQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, err := q.ch.QueueInspect(q.queue)
	if err != nil {
		return 0, err
	}
	return info.Messages, nil
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

var _ ReceiptQueue = (*AMQPQueue)(nil)
